package publish

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/codegate/internal/config"
	"github.com/ShayCichocki/codegate/internal/git"
	"github.com/ShayCichocki/codegate/internal/logging"
)

// FromConfig builds the Publisher selected by cfg.Publish.Provider.
// Missing credentials yield a Disabled publisher and a logged error rather
// than a failure, so validation still runs.
func FromConfig(cfg *config.Config, logger *logging.Logger) Publisher {
	switch cfg.Publish.Provider {
	case "local":
		if cfg.Publish.LocalRepoPath == "" {
			reason := errors.New("publish.local_repo_path is not set")
			logger.Errorf("publishing disabled: %v", reason)
			return Disabled{Reason: reason}
		}
		return NewLocalPublisher(git.NewRunner(cfg.Publish.LocalRepoPath), cfg.Publish.BranchPrefix, logger)

	default:
		token, repo, err := config.PublishTarget(cfg)
		if err != nil {
			logger.Errorf("publishing disabled: %v", err)
			return Disabled{Reason: err}
		}
		p, err := NewGitHubPublisher(GitHubConfig{
			Token:        token,
			Repo:         repo,
			BaseURL:      cfg.Publish.BaseURL,
			BranchPrefix: cfg.Publish.BranchPrefix,
			Logger:       logger,
		})
		if err != nil {
			logger.Errorf("publishing disabled: %v", err)
			return Disabled{Reason: fmt.Errorf("github: %w", err)}
		}
		return p
	}
}
