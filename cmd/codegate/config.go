package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ShayCichocki/codegate/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Show the effective codegate configuration.

Without arguments, displays every value. With a key, displays that value.
Secrets are masked.

Sources, highest precedence first:
  environment (LLM_URL, SSH_PORT, GITHUB_TOKEN, ... or CODEGATE_<SECTION>_<KEY>)
  .env in the working directory
  .codegate.yaml in this or a parent directory
  ~/.config/codegate/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) == 0 {
			displayAllConfig(cfg)
			return
		}

		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

// configKeys lists displayable keys in display order.
var configKeys = []string{
	"generation.provider",
	"generation.url",
	"generation.model",
	"generation.api_key",
	"generation.max_tokens",
	"generation.use_bedrock",
	"sandbox.name",
	"sandbox.image",
	"sandbox.host",
	"sandbox.ssh_port",
	"sandbox.user",
	"sandbox.password",
	"stages.profile",
	"stages.profile_path",
	"stages.gate_on_exit_status",
	"publish.provider",
	"publish.repo",
	"publish.token",
	"publish.local_repo_path",
	"publish.branch_prefix",
	"timeouts.generation",
	"timeouts.sandbox_ready",
	"timeouts.transfer",
	"timeouts.install",
	"timeouts.stage",
	"timeouts.execute",
	"timeouts.publish",
	"console.exit_keyword",
	"console.assume_yes",
	"console.signal_dir",
	"log.path",
	"log.debug",
}

var secretKeys = map[string]bool{
	"generation.api_key": true,
	"sandbox.password":   true,
	"publish.token":      true,
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("user config: %s\n\n", config.GetUserConfigPath())
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		if secretKeys[key] {
			fmt.Printf("%s: %s (%s)\n", key, value, config.CredentialSource(cfg, key))
			continue
		}
		fmt.Printf("%s: %s\n", key, value)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
// Secrets are returned masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "generation.provider":
		return cfg.Generation.Provider, nil
	case "generation.url":
		return cfg.Generation.URL, nil
	case "generation.model":
		return cfg.Generation.Model, nil
	case "generation.api_key":
		return config.MaskSecret(cfg.Generation.APIKey), nil
	case "generation.max_tokens":
		return strconv.Itoa(cfg.Generation.MaxTokens), nil
	case "generation.use_bedrock":
		return strconv.FormatBool(cfg.Generation.UseBedrock), nil
	case "sandbox.name":
		return cfg.Sandbox.Name, nil
	case "sandbox.image":
		return cfg.Sandbox.Image, nil
	case "sandbox.host":
		return cfg.Sandbox.Host, nil
	case "sandbox.ssh_port":
		return strconv.Itoa(cfg.Sandbox.SSHPort), nil
	case "sandbox.user":
		return cfg.Sandbox.User, nil
	case "sandbox.password":
		return config.MaskSecret(cfg.Sandbox.Password), nil
	case "stages.profile":
		return cfg.Stages.Profile, nil
	case "stages.profile_path":
		return cfg.Stages.ProfilePath, nil
	case "stages.gate_on_exit_status":
		return strconv.FormatBool(cfg.Stages.GateOnExitStatus), nil
	case "publish.provider":
		return cfg.Publish.Provider, nil
	case "publish.repo":
		return cfg.Publish.Repo, nil
	case "publish.token":
		return config.MaskSecret(cfg.Publish.Token), nil
	case "publish.local_repo_path":
		return cfg.Publish.LocalRepoPath, nil
	case "publish.branch_prefix":
		return cfg.Publish.BranchPrefix, nil
	case "timeouts.generation":
		return cfg.Timeouts.Generation.String(), nil
	case "timeouts.sandbox_ready":
		return cfg.Timeouts.SandboxReady.String(), nil
	case "timeouts.transfer":
		return cfg.Timeouts.Transfer.String(), nil
	case "timeouts.install":
		return cfg.Timeouts.Install.String(), nil
	case "timeouts.stage":
		return cfg.Timeouts.Stage.String(), nil
	case "timeouts.execute":
		return cfg.Timeouts.Execute.String(), nil
	case "timeouts.publish":
		return cfg.Timeouts.Publish.String(), nil
	case "console.exit_keyword":
		return cfg.Console.ExitKeyword, nil
	case "console.assume_yes":
		return strconv.FormatBool(cfg.Console.AssumeYes), nil
	case "console.signal_dir":
		return cfg.Console.SignalDir, nil
	case "log.path":
		return cfg.Log.Path, nil
	case "log.debug":
		return strconv.FormatBool(cfg.Log.Debug), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
