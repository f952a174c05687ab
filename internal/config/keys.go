// Package config provides credential helpers.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoPublishToken is returned when no GitHub token is configured.
var ErrNoPublishToken = errors.New("no GitHub token configured")

// ErrNoPublishRepo is returned when no target repository is configured.
var ErrNoPublishRepo = errors.New("no GitHub repository configured")

// PublishTarget returns the GitHub token and owner/name repository.
// Both must be present for publishing to be enabled.
func PublishTarget(cfg *Config) (token, repo string, err error) {
	if cfg == nil {
		return "", "", ErrNoPublishToken
	}

	token = os.ExpandEnv(cfg.Publish.Token)
	if token == "" || strings.HasPrefix(token, "${") {
		return "", "", ErrNoPublishToken
	}

	repo = strings.TrimSpace(cfg.Publish.Repo)
	if repo == "" {
		return "", "", ErrNoPublishRepo
	}
	if err := ValidateRepo(repo); err != nil {
		return "", "", err
	}
	return token, repo, nil
}

// ValidateRepo checks that repo has the owner/name form.
func ValidateRepo(repo string) error {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return errors.New("invalid repository: expected 'owner/name'")
	}
	return nil
}

// MaskSecret returns a masked version of a secret for display.
// Shows the first 4 and last 4 characters of long values.
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}

	if len(secret) <= 12 {
		return "***"
	}

	return secret[:4] + "..." + secret[len(secret)-4:]
}

// KeySource represents where a credential was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// CredentialSource reports where the value for key came from.
// key is a dotted config key such as "publish.token".
func CredentialSource(cfg *Config, key string) KeySource {
	for _, name := range envNames(key) {
		if os.Getenv(name) != "" {
			return KeySourceEnv
		}
	}

	if cfg == nil {
		return KeySourceNone
	}

	var value string
	switch key {
	case "publish.token":
		value = cfg.Publish.Token
	case "generation.api_key":
		value = cfg.Generation.APIKey
	case "sandbox.password":
		value = cfg.Sandbox.Password
	}
	if value != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
