// Package config handles configuration loading for codegate.
// Settings come from the environment first, then an optional .env file,
// the project .codegate.yaml, the user config file, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for codegate.
// It is built once at startup and passed to each component's constructor.
type Config struct {
	Generation GenerationConfig `mapstructure:"generation"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	Stages     StagesConfig     `mapstructure:"stages"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts"`
	Console    ConsoleConfig    `mapstructure:"console"`
	Log        LogConfig        `mapstructure:"log"`
}

// GenerationConfig holds settings for the text-generation backend.
type GenerationConfig struct {
	// Provider selects the backend: ollama, openai or anthropic.
	Provider string `mapstructure:"provider"`
	// URL is the generation endpoint (ollama) or base URL (openai).
	URL string `mapstructure:"url"`
	// Model is the model identifier sent with each request.
	Model string `mapstructure:"model"`
	// APIKey authenticates against hosted providers.
	APIKey string `mapstructure:"api_key"`
	// MaxTokens caps the response length for providers that require it.
	MaxTokens int `mapstructure:"max_tokens"`
	// UseBedrock routes anthropic requests through AWS Bedrock.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional shared-config profile for Bedrock.
	AWSProfile string `mapstructure:"aws_profile"`
}

// SandboxConfig holds settings for the isolated execution environment.
type SandboxConfig struct {
	// Name is the stable container name used for lookup and reuse.
	Name string `mapstructure:"name"`
	// Image is the base image reference.
	Image string `mapstructure:"image"`
	// Host is the address the SSH port is published on.
	Host string `mapstructure:"host"`
	// SSHPort is the host port mapped to the container's 22/tcp.
	SSHPort int `mapstructure:"ssh_port"`
	// User is the login identity provisioned inside the sandbox.
	User string `mapstructure:"user"`
	// Password is the login password for User.
	Password string `mapstructure:"password"`
}

// StagesConfig holds validation stage settings.
type StagesConfig struct {
	// Profile is the name of a built-in toolchain profile.
	Profile string `mapstructure:"profile"`
	// ProfilePath overrides Profile with a YAML file.
	ProfilePath string `mapstructure:"profile_path"`
	// GateOnExitStatus also requires a zero exit status from the execute
	// stage when the transport reports one.
	GateOnExitStatus bool `mapstructure:"gate_on_exit_status"`
}

// PublishConfig holds settings for the change-publishing backend.
type PublishConfig struct {
	// Provider selects the backend: github or local.
	Provider string `mapstructure:"provider"`
	// Token authenticates against GitHub.
	Token string `mapstructure:"token"`
	// Repo is the target repository as owner/name.
	Repo string `mapstructure:"repo"`
	// BaseURL points at a GitHub Enterprise API; empty means github.com.
	BaseURL string `mapstructure:"base_url"`
	// LocalRepoPath is the repository used by the local provider.
	LocalRepoPath string `mapstructure:"local_repo_path"`
	// BranchPrefix is prepended to the timestamp in branch names.
	BranchPrefix string `mapstructure:"branch_prefix"`
}

// TimeoutsConfig holds timeouts for every blocking operation.
type TimeoutsConfig struct {
	Generation   time.Duration `mapstructure:"generation"`
	SandboxReady time.Duration `mapstructure:"sandbox_ready"`
	Transfer     time.Duration `mapstructure:"transfer"`
	Install      time.Duration `mapstructure:"install"`
	Stage        time.Duration `mapstructure:"stage"`
	Execute      time.Duration `mapstructure:"execute"`
	Publish      time.Duration `mapstructure:"publish"`
}

// ConsoleConfig holds operator console settings.
type ConsoleConfig struct {
	// ExitKeyword ends the interactive loop.
	ExitKeyword string `mapstructure:"exit_keyword"`
	// NoColor disables colored output.
	NoColor bool `mapstructure:"no_color"`
	// AssumeYes skips the validation confirmation prompt.
	AssumeYes bool `mapstructure:"assume_yes"`
	// SignalDir is watched for a "stop" file that ends the loop between runs.
	SignalDir string `mapstructure:"signal_dir"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// Path is the debug log file; empty uses .codegate/logs in the working directory.
	Path string `mapstructure:"path"`
	// Debug enables debug-level lines.
	Debug bool `mapstructure:"debug"`
}

// legacyEnv maps config keys to the unprefixed variable names operators
// already use for these settings.
var legacyEnv = map[string][]string{
	"generation.url":      {"LLM_URL"},
	"generation.model":    {"LLM_MODEL"},
	"generation.provider": {"LLM_PROVIDER"},
	"generation.api_key":  {"LLM_API_KEY"},
	"sandbox.image":       {"DOCKER_IMAGE"},
	"sandbox.user":        {"SSH_USER"},
	"sandbox.password":    {"SSH_PASSWORD"},
	"sandbox.ssh_port":    {"SSH_PORT"},
	"publish.token":       {"GITHUB_TOKEN"},
	"publish.repo":        {"GITHUB_REPO"},
}

// Load loads configuration relative to the current working directory.
// Precedence (highest to lowest):
// 1. Environment variables (CODEGATE_* and the legacy names above)
// 2. .env in the working directory
// 3. Project config (.codegate.yaml in the working directory or a parent)
// 4. User config (~/.config/codegate/config.yaml)
// 5. Built-in defaults
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration as Load does, rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(dir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	if err := applyDotEnv(v, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file plus environment.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Generation.APIKey = os.ExpandEnv(cfg.Generation.APIKey)
	cfg.Publish.Token = os.ExpandEnv(cfg.Publish.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envNames returns every environment variable consulted for key, highest
// precedence first.
func envNames(key string) []string {
	names := []string{"CODEGATE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	return append(names, legacyEnv[key]...)
}

// bindEnv binds every known key to its environment variables.
func bindEnv(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		args := append([]string{key}, envNames(key)...)
		_ = v.BindEnv(args...)
	}
}

// applyDotEnv fills keys whose variables are unset in the process
// environment from a dotenv file. A missing file is not an error.
func applyDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	dot := viper.New()
	dot.SetConfigFile(path)
	dot.SetConfigType("env")
	if err := dot.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		names := envNames(key)
		if processEnvSet(names) {
			continue
		}
		for _, name := range names {
			if dot.IsSet(strings.ToLower(name)) {
				v.Set(key, dot.GetString(strings.ToLower(name)))
				break
			}
		}
	}
	return nil
}

// processEnvSet reports whether any of names is set in the process
// environment. Any of them beats every .env entry.
func processEnvSet(names []string) bool {
	for _, name := range names {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("generation.provider", "ollama")
	v.SetDefault("generation.url", "http://localhost:11434/api/generate")
	v.SetDefault("generation.model", "mistral:latest")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.max_tokens", 4096)
	v.SetDefault("generation.use_bedrock", false)
	v.SetDefault("generation.aws_region", "")
	v.SetDefault("generation.aws_profile", "")

	v.SetDefault("sandbox.name", "python_sandbox")
	v.SetDefault("sandbox.image", "python:3.10-slim")
	v.SetDefault("sandbox.host", "127.0.0.1")
	v.SetDefault("sandbox.ssh_port", 2222)
	v.SetDefault("sandbox.user", "devuser")
	v.SetDefault("sandbox.password", "devpass")

	v.SetDefault("stages.profile", "python")
	v.SetDefault("stages.profile_path", "")
	v.SetDefault("stages.gate_on_exit_status", true)

	v.SetDefault("publish.provider", "github")
	v.SetDefault("publish.token", "")
	v.SetDefault("publish.repo", "")
	v.SetDefault("publish.base_url", "")
	v.SetDefault("publish.local_repo_path", "")
	v.SetDefault("publish.branch_prefix", "feature-")

	v.SetDefault("timeouts.generation", "2m")
	v.SetDefault("timeouts.sandbox_ready", "3m")
	v.SetDefault("timeouts.transfer", "30s")
	v.SetDefault("timeouts.install", "10m")
	v.SetDefault("timeouts.stage", "2m")
	v.SetDefault("timeouts.execute", "1m")
	v.SetDefault("timeouts.publish", "1m")

	v.SetDefault("console.exit_keyword", "exit")
	v.SetDefault("console.no_color", false)
	v.SetDefault("console.assume_yes", false)
	v.SetDefault("console.signal_dir", filepath.Join(".codegate", "signals"))

	v.SetDefault("log.path", "")
	v.SetDefault("log.debug", false)
}

// Validate checks values that would otherwise fail late inside a run.
func (c *Config) Validate() error {
	switch c.Generation.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Publish.Provider {
	case "github", "local":
	default:
		return fmt.Errorf("unknown publish provider %q", c.Publish.Provider)
	}
	if c.Sandbox.SSHPort <= 0 || c.Sandbox.SSHPort > 65535 {
		return fmt.Errorf("invalid sandbox ssh_port %d", c.Sandbox.SSHPort)
	}
	if c.Sandbox.Name == "" {
		return errors.New("sandbox name must not be empty")
	}
	if c.Console.ExitKeyword == "" {
		return errors.New("console exit_keyword must not be empty")
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// getUserConfigDir returns the XDG config directory for codegate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "codegate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "codegate")
	}
	return filepath.Join(home, ".config", "codegate")
}

// findProjectConfig searches for .codegate.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ".codegate.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Provider:  "ollama",
			URL:       "http://localhost:11434/api/generate",
			Model:     "mistral:latest",
			MaxTokens: 4096,
		},
		Sandbox: SandboxConfig{
			Name:     "python_sandbox",
			Image:    "python:3.10-slim",
			Host:     "127.0.0.1",
			SSHPort:  2222,
			User:     "devuser",
			Password: "devpass",
		},
		Stages: StagesConfig{
			Profile:          "python",
			GateOnExitStatus: true,
		},
		Publish: PublishConfig{
			Provider:     "github",
			BranchPrefix: "feature-",
		},
		Timeouts: TimeoutsConfig{
			Generation:   2 * time.Minute,
			SandboxReady: 3 * time.Minute,
			Transfer:     30 * time.Second,
			Install:      10 * time.Minute,
			Stage:        2 * time.Minute,
			Execute:      time.Minute,
			Publish:      time.Minute,
		},
		Console: ConsoleConfig{
			ExitKeyword: "exit",
			SignalDir:   filepath.Join(".codegate", "signals"),
		},
	}
}
