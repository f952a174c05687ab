package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/ShayCichocki/codegate/internal/logging"
)

// GitHubConfig configures a GitHubPublisher.
type GitHubConfig struct {
	Token string
	// Repo is owner/name.
	Repo string
	// BaseURL points at a GitHub Enterprise API; empty means api.github.com.
	BaseURL string
	// BranchPrefix defaults to "feature-".
	BranchPrefix string
	Logger       *logging.Logger
}

// GitHubPublisher publishes a change as a branch plus pull request.
type GitHubPublisher struct {
	client *github.Client
	owner  string
	repo   string
	prefix string
	now    func() time.Time
	log    *logging.Logger
}

// NewGitHubPublisher creates a new GitHubPublisher.
func NewGitHubPublisher(cfg GitHubConfig) (*GitHubPublisher, error) {
	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q: expected owner/name", cfg.Repo)
	}

	client := github.NewClient(nil).WithAuthToken(cfg.Token)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		client.BaseURL = u
	}

	prefix := cfg.BranchPrefix
	if prefix == "" {
		prefix = "feature-"
	}

	return &GitHubPublisher{
		client: client,
		owner:  owner,
		repo:   repo,
		prefix: prefix,
		now:    time.Now,
		log:    cfg.Logger.With("github"),
	}, nil
}

// Publish creates a timestamped branch at the default branch tip, creates or
// updates change.Path on it, and opens a pull request into the default
// branch. It returns the pull request URL.
func (p *GitHubPublisher) Publish(ctx context.Context, change Change) (string, error) {
	repo, _, err := p.client.Repositories.Get(ctx, p.owner, p.repo)
	if err != nil {
		return "", &PublishError{Step: "default-branch", Err: err}
	}
	base := repo.GetDefaultBranch()

	tip, _, err := p.client.Repositories.GetBranch(ctx, p.owner, p.repo, base, 1)
	if err != nil {
		return "", &PublishError{Step: "default-branch", Err: err}
	}

	branch := BranchName(p.prefix, p.now())
	_, _, err = p.client.Git.CreateRef(ctx, p.owner, p.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(tip.GetCommit().GetSHA())},
	})
	if err != nil {
		return "", &PublishError{Step: "create-branch", Branch: branch, Err: err}
	}
	p.log.Infof("created branch %s at %s", branch, tip.GetCommit().GetSHA())

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(change.CommitMessage),
		Content: []byte(change.Content),
		Branch:  github.String(branch),
	}

	existing, _, resp, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, change.Path,
		&github.RepositoryContentGetOptions{Ref: base})
	switch {
	case err == nil && existing != nil:
		opts.SHA = github.String(existing.GetSHA())
		if _, _, err := p.client.Repositories.UpdateFile(ctx, p.owner, p.repo, change.Path, opts); err != nil {
			return "", &PublishError{Step: "update-file", Branch: branch, Err: err}
		}
	case err == nil:
		return "", &PublishError{Step: "lookup-file", Branch: branch, Err: fmt.Errorf("%s is a directory", change.Path)}
	case isNotFound(resp, err):
		if _, _, err := p.client.Repositories.CreateFile(ctx, p.owner, p.repo, change.Path, opts); err != nil {
			return "", &PublishError{Step: "create-file", Branch: branch, Err: err}
		}
	default:
		return "", &PublishError{Step: "lookup-file", Branch: branch, Err: err}
	}

	pr, _, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, &github.NewPullRequest{
		Title: github.String(change.Title),
		Head:  github.String(branch),
		Base:  github.String(base),
		Body:  github.String(change.Body),
	})
	if err != nil {
		return "", &PublishError{Step: "pull-request", Branch: branch, Err: err}
	}

	p.log.Infof("opened pull request %s", pr.GetHTMLURL())
	return pr.GetHTMLURL(), nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
