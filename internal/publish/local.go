package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ShayCichocki/codegate/internal/git"
	"github.com/ShayCichocki/codegate/internal/logging"
)

// LocalPublisher commits a change to a new branch of a local repository.
// The repository's working tree must be clean.
type LocalPublisher struct {
	git    git.Runner
	prefix string
	now    func() time.Time
	log    *logging.Logger
}

// NewLocalPublisher creates a new LocalPublisher over runner.
func NewLocalPublisher(runner git.Runner, branchPrefix string, logger *logging.Logger) *LocalPublisher {
	if branchPrefix == "" {
		branchPrefix = "feature-"
	}
	return &LocalPublisher{
		git:    runner,
		prefix: branchPrefix,
		now:    time.Now,
		log:    logger.With("local-publish"),
	}
}

// Publish branches from the default branch, writes change.Path, commits it,
// and switches back to the branch that was checked out. It returns the new
// branch name.
func (p *LocalPublisher) Publish(ctx context.Context, change Change) (string, error) {
	dirty, err := p.git.HasChanges(ctx)
	if err != nil {
		return "", &PublishError{Step: "status", Err: err}
	}
	if dirty {
		return "", &PublishError{Step: "status", Err: errors.New("working tree has uncommitted changes")}
	}

	base, err := p.git.DefaultBranch(ctx)
	if err != nil {
		return "", &PublishError{Step: "default-branch", Err: err}
	}
	previous, err := p.git.CurrentBranch(ctx)
	if err != nil {
		return "", &PublishError{Step: "default-branch", Err: err}
	}

	branch := BranchName(p.prefix, p.now())
	if err := p.git.CreateBranchAt(ctx, branch, base); err != nil {
		return "", &PublishError{Step: "create-branch", Branch: branch, Err: err}
	}

	existed, err := p.git.FileExistsAt(ctx, base, change.Path)
	if err != nil {
		return "", &PublishError{Step: "lookup-file", Branch: branch, Err: err}
	}

	if err := p.git.CheckoutBranch(ctx, branch); err != nil {
		return "", &PublishError{Step: "checkout", Branch: branch, Err: err}
	}
	defer func() {
		if err := p.git.CheckoutBranch(context.WithoutCancel(ctx), previous); err != nil {
			p.log.Errorf("restore branch %s: %v", previous, err)
		}
	}()

	step := "create-file"
	if existed {
		step = "update-file"
	}
	target := filepath.Join(p.git.RepoPath(), filepath.FromSlash(change.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", &PublishError{Step: step, Branch: branch, Err: err}
	}
	if err := os.WriteFile(target, []byte(change.Content), 0644); err != nil {
		return "", &PublishError{Step: step, Branch: branch, Err: err}
	}

	if err := p.git.Add(ctx, change.Path); err != nil {
		return "", &PublishError{Step: "commit", Branch: branch, Err: err}
	}
	message := change.CommitMessage
	if change.Body != "" {
		message = fmt.Sprintf("%s\n\n%s", change.CommitMessage, change.Body)
	}
	if err := p.git.Commit(ctx, message); err != nil {
		return "", &PublishError{Step: "commit", Branch: branch, Err: err}
	}

	p.log.Infof("committed %s to %s (based on %s)", change.Path, branch, base)
	return branch, nil
}
