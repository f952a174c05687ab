package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codegate/internal/config"
	"github.com/ShayCichocki/codegate/internal/sandbox"
)

var (
	initForce       bool
	initSkipDocker  bool
	initNoGitignore bool
)

var warnColor = color.New(color.FgYellow)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Prepare a directory for codegate",
	Long: `Prepare a directory for use with codegate.

This command:
  - Checks that the docker daemon is reachable
  - Reports which credentials are configured
  - Creates the .codegate directory (logs, signals)
  - Adds .codegate/ to .gitignore
  - Writes a commented .codegate.yaml template

Examples:
  codegate init               # Initialize current directory
  codegate init ./project     # Initialize specific directory
  codegate init --force       # Overwrite an existing .codegate.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .codegate.yaml")
	initCmd.Flags().BoolVar(&initSkipDocker, "skip-docker-check", false, "Skip the docker daemon check")
	initCmd.Flags().BoolVar(&initNoGitignore, "no-gitignore", false, "Leave .gitignore untouched")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing codegate in %s...\n\n", absPath)

	cfg, err := config.LoadFrom(absPath)
	if err != nil {
		printStatus("⚠", fmt.Sprintf("Existing configuration is invalid: %v", err), color.FgYellow)
		cfg = config.Default()
	}

	if !initSkipDocker {
		checkDocker(cmd.Context(), cfg)
	}
	reportCredentials(cfg)

	for _, dir := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(absPath, ".codegate", dir), 0755); err != nil {
			return fmt.Errorf("creating .codegate/%s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .codegate directory structure", color.FgGreen)

	if !initNoGitignore {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore", color.FgGreen)
	}

	created, err := createProjectConfig(absPath, initForce)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if created {
		printStatus("✓", "Created .codegate.yaml template", color.FgGreen)
	} else {
		printStatus("•", ".codegate.yaml already exists (use --force to overwrite)", color.FgCyan)
	}

	fmt.Printf("\n%s codegate initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Prepare the sandbox (optional, first run does it too):")
	fmt.Println("     codegate sandbox acquire")
	fmt.Println()
	fmt.Println("  2. Run codegate:")
	fmt.Println("     codegate")
	fmt.Println("     # or: codegate run \"your task here\" --yes")
	fmt.Println()
	fmt.Println("  3. Stop an interactive session from another terminal:")
	fmt.Printf("     touch %s\n", filepath.Join(cfg.Console.SignalDir, "stop"))

	return nil
}

// checkDocker reports whether the docker daemon answers and whether the
// sandbox already exists.
func checkDocker(parent context.Context, cfg *config.Config) {
	engine, err := sandbox.NewDockerEngine()
	if err != nil {
		printStatus("✗", fmt.Sprintf("Docker client unavailable: %v", err), color.FgRed)
		return
	}
	defer engine.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	info, err := engine.FindContainer(ctx, cfg.Sandbox.Name)
	switch {
	case err != nil:
		printStatus("✗", fmt.Sprintf("Docker daemon not reachable: %v", err), color.FgRed)
	case info == nil:
		printStatus("✓", fmt.Sprintf("Docker reachable; sandbox %s will be created on first run", cfg.Sandbox.Name), color.FgGreen)
	default:
		printStatus("✓", fmt.Sprintf("Docker reachable; sandbox %s exists", cfg.Sandbox.Name), color.FgGreen)
	}
}

func reportCredentials(cfg *config.Config) {
	switch cfg.Publish.Provider {
	case "local":
		if cfg.Publish.LocalRepoPath == "" {
			printStatus("⚠", "publish.local_repo_path not set (publishing disabled)", color.FgYellow)
		} else {
			printStatus("✓", "Publishing to local repository "+cfg.Publish.LocalRepoPath, color.FgGreen)
		}
	default:
		if _, _, err := config.PublishTarget(cfg); err != nil {
			printStatus("⚠", fmt.Sprintf("%v (set GITHUB_TOKEN and GITHUB_REPO to publish)", err), color.FgYellow)
		} else {
			printStatus("✓", fmt.Sprintf("Publishing to %s (token from %s)", cfg.Publish.Repo,
				config.CredentialSource(cfg, "publish.token")), color.FgGreen)
		}
	}

	if cfg.Generation.Provider != "ollama" && config.CredentialSource(cfg, "generation.api_key") == config.KeySourceNone {
		printStatus("⚠", fmt.Sprintf("No API key for %s (set LLM_API_KEY)", cfg.Generation.Provider), color.FgYellow)
	}
}

// updateGitignore adds the .codegate/ entry to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	for _, line := range strings.Split(existingContent, "\n") {
		if strings.TrimSpace(line) == ".codegate/" {
			return nil
		}
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# codegate\n.codegate/\n")

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

const projectConfigTemplate = `# codegate project configuration
# Overrides ~/.config/codegate/config.yaml. Environment variables win over both.

# generation:
#   provider: ollama          # ollama, openai or anthropic
#   url: http://localhost:11434/api/generate
#   model: mistral:latest

# sandbox:
#   name: python_sandbox
#   image: python:3.10-slim
#   ssh_port: 2222
#   user: devuser

# stages:
#   profile: python
#   gate_on_exit_status: true

# publish:
#   provider: github          # github or local
#   repo: owner/name
#   branch_prefix: feature-

# timeouts:
#   generation: 2m
#   install: 10m
#   execute: 1m
`

// createProjectConfig writes the .codegate.yaml template. It reports false
// when a file exists and force is not set.
func createProjectConfig(repoPath string, force bool) (bool, error) {
	configPath := filepath.Join(repoPath, ".codegate.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}
	if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
