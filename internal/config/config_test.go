package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the user config at an empty directory and clears every
// variable the loader consults.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for key := range legacyEnv {
		for _, name := range envNames(key) {
			t.Setenv(name, "")
		}
	}
	for _, name := range []string{"CODEGATE_SANDBOX_NAME", "CODEGATE_STAGES_GATE_ON_EXIT_STATUS", "CODEGATE_TIMEOUTS_STAGE"} {
		t.Setenv(name, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Generation.URL != "http://localhost:11434/api/generate" {
		t.Errorf("expected default generation url, got %q", cfg.Generation.URL)
	}
	if cfg.Generation.Model != "mistral:latest" {
		t.Errorf("expected default model 'mistral:latest', got %q", cfg.Generation.Model)
	}
	if cfg.Sandbox.Name != "python_sandbox" {
		t.Errorf("expected sandbox name 'python_sandbox', got %q", cfg.Sandbox.Name)
	}
	if cfg.Sandbox.SSHPort != 2222 {
		t.Errorf("expected ssh port 2222, got %d", cfg.Sandbox.SSHPort)
	}
	if !cfg.Stages.GateOnExitStatus {
		t.Error("expected gate_on_exit_status to be true")
	}
	if cfg.Timeouts.Install != 10*time.Minute {
		t.Errorf("expected install timeout 10m, got %v", cfg.Timeouts.Install)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromDefaultsMatchDefault(t *testing.T) {
	isolate(t)

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	want := Default()
	if cfg.Sandbox != want.Sandbox {
		t.Errorf("sandbox = %+v, want %+v", cfg.Sandbox, want.Sandbox)
	}
	if cfg.Timeouts != want.Timeouts {
		t.Errorf("timeouts = %+v, want %+v", cfg.Timeouts, want.Timeouts)
	}
	if cfg.Generation != want.Generation {
		t.Errorf("generation = %+v, want %+v", cfg.Generation, want.Generation)
	}
}

func TestLoadFromPath(t *testing.T) {
	isolate(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
generation:
  provider: openai
  url: https://api.example.com/v1
  model: gpt-4o-mini
sandbox:
  ssh_port: 2022
  image: python:3.12-slim
stages:
  gate_on_exit_status: false
timeouts:
  stage: 45s
publish:
  repo: acme/widgets
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Generation.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Generation.Provider)
	}
	if cfg.Sandbox.SSHPort != 2022 {
		t.Errorf("expected ssh port 2022, got %d", cfg.Sandbox.SSHPort)
	}
	if cfg.Sandbox.Image != "python:3.12-slim" {
		t.Errorf("expected image override, got %q", cfg.Sandbox.Image)
	}
	if cfg.Sandbox.User != "devuser" {
		t.Errorf("expected default user to survive, got %q", cfg.Sandbox.User)
	}
	if cfg.Stages.GateOnExitStatus {
		t.Error("expected gate_on_exit_status false")
	}
	if cfg.Timeouts.Stage != 45*time.Second {
		t.Errorf("expected stage timeout 45s, got %v", cfg.Timeouts.Stage)
	}
	if cfg.Publish.Repo != "acme/widgets" {
		t.Errorf("expected repo 'acme/widgets', got %q", cfg.Publish.Repo)
	}
}

func TestLegacyEnvironmentNames(t *testing.T) {
	isolate(t)
	t.Setenv("LLM_URL", "http://llm.internal:11434/api/generate")
	t.Setenv("LLM_MODEL", "codellama")
	t.Setenv("DOCKER_IMAGE", "python:3.11-slim")
	t.Setenv("SSH_USER", "builder")
	t.Setenv("SSH_PORT", "2300")
	t.Setenv("GITHUB_TOKEN", "ghp_exampletoken1234")
	t.Setenv("GITHUB_REPO", "acme/widgets")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Generation.URL != "http://llm.internal:11434/api/generate" {
		t.Errorf("LLM_URL not applied: %q", cfg.Generation.URL)
	}
	if cfg.Generation.Model != "codellama" {
		t.Errorf("LLM_MODEL not applied: %q", cfg.Generation.Model)
	}
	if cfg.Sandbox.Image != "python:3.11-slim" {
		t.Errorf("DOCKER_IMAGE not applied: %q", cfg.Sandbox.Image)
	}
	if cfg.Sandbox.User != "builder" {
		t.Errorf("SSH_USER not applied: %q", cfg.Sandbox.User)
	}
	if cfg.Sandbox.SSHPort != 2300 {
		t.Errorf("SSH_PORT not applied: %d", cfg.Sandbox.SSHPort)
	}
	if cfg.Publish.Token != "ghp_exampletoken1234" {
		t.Errorf("GITHUB_TOKEN not applied")
	}
	if cfg.Publish.Repo != "acme/widgets" {
		t.Errorf("GITHUB_REPO not applied: %q", cfg.Publish.Repo)
	}
}

func TestPrefixedEnvironmentWinsOverLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("LLM_MODEL", "legacy")
	t.Setenv("CODEGATE_GENERATION_MODEL", "prefixed")
	t.Setenv("CODEGATE_SANDBOX_NAME", "other_sandbox")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Generation.Model != "prefixed" {
		t.Errorf("expected prefixed variable to win, got %q", cfg.Generation.Model)
	}
	if cfg.Sandbox.Name != "other_sandbox" {
		t.Errorf("expected CODEGATE_SANDBOX_NAME, got %q", cfg.Sandbox.Name)
	}
}

func TestDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	dotenv := "LLM_MODEL=from-dotenv\nSSH_PASSWORD=secret-from-file\nCODEGATE_TIMEOUTS_STAGE=90s\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("SSH_PASSWORD", "secret-from-env")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Generation.Model != "from-dotenv" {
		t.Errorf("expected .env model, got %q", cfg.Generation.Model)
	}
	if cfg.Sandbox.Password != "secret-from-env" {
		t.Errorf("process environment should win over .env, got %q", cfg.Sandbox.Password)
	}
	if cfg.Timeouts.Stage != 90*time.Second {
		t.Errorf("expected stage timeout 90s from .env, got %v", cfg.Timeouts.Stage)
	}
}

func TestDotEnvNeverBeatsLegacyProcessEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	dotenv := "CODEGATE_GENERATION_URL=http://from-dotenv:11434/api/generate\nLLM_MODEL=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("LLM_URL", "http://from-env:11434/api/generate")
	t.Setenv("CODEGATE_GENERATION_MODEL", "from-env")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Generation.URL != "http://from-env:11434/api/generate" {
		t.Errorf("legacy process variable should win over .env CODEGATE_ name, got %q", cfg.Generation.URL)
	}
	if cfg.Generation.Model != "from-env" {
		t.Errorf("CODEGATE_ process variable should win over .env legacy name, got %q", cfg.Generation.Model)
	}
}

func TestProjectConfigInParent(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatal(err)
	}
	project := "console:\n  exit_keyword: salir\n"
	if err := os.WriteFile(filepath.Join(root, ".codegate.yaml"), []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	if got := findProjectConfig(child); got != filepath.Join(root, ".codegate.yaml") {
		t.Fatalf("findProjectConfig = %q", got)
	}

	cfg, err := LoadFrom(child)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Console.ExitKeyword != "salir" {
		t.Errorf("expected exit keyword 'salir', got %q", cfg.Console.ExitKeyword)
	}
}

func TestExpandEnv(t *testing.T) {
	isolate(t)
	t.Setenv("MY_GH_TOKEN", "expanded-token")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("publish:\n  token: ${MY_GH_TOKEN}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Publish.Token != "expanded-token" {
		t.Errorf("expected expanded token, got %q", cfg.Publish.Token)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"anthropic provider", func(c *Config) { c.Generation.Provider = "anthropic" }, false},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "gpt" }, true},
		{"local publish", func(c *Config) { c.Publish.Provider = "local" }, false},
		{"unknown publish", func(c *Config) { c.Publish.Provider = "gitlab" }, true},
		{"zero port", func(c *Config) { c.Sandbox.SSHPort = 0 }, true},
		{"port too high", func(c *Config) { c.Sandbox.SSHPort = 70000 }, true},
		{"empty name", func(c *Config) { c.Sandbox.Name = "" }, true},
		{"empty exit keyword", func(c *Config) { c.Console.ExitKeyword = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if got := getUserConfigDir(); got != "/custom/config/codegate" {
		t.Errorf("expected '/custom/config/codegate', got %q", got)
	}
	if got := GetUserConfigPath(); got != "/custom/config/codegate/config.yaml" {
		t.Errorf("unexpected user config path %q", got)
	}
}
