package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShayCichocki/codegate/internal/config"
)

func TestFromConfig(t *testing.T) {
	t.Run("missing token disables publishing", func(t *testing.T) {
		cfg := config.Default()
		cfg.Publish.Repo = "acme/widgets"
		_, ok := FromConfig(cfg, nil).(Disabled)
		assert.True(t, ok)
	})

	t.Run("github with credentials", func(t *testing.T) {
		cfg := config.Default()
		cfg.Publish.Token = "ghp_test"
		cfg.Publish.Repo = "acme/widgets"
		_, ok := FromConfig(cfg, nil).(*GitHubPublisher)
		assert.True(t, ok)
	})

	t.Run("local without path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Publish.Provider = "local"
		_, ok := FromConfig(cfg, nil).(Disabled)
		assert.True(t, ok)
	})

	t.Run("local with path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Publish.Provider = "local"
		cfg.Publish.LocalRepoPath = t.TempDir()
		_, ok := FromConfig(cfg, nil).(*LocalPublisher)
		assert.True(t, ok)
	})
}
