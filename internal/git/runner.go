package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExecRunner implements Runner using exec.Command.
type ExecRunner struct {
	repoPath    string
	authorName  string
	authorEmail string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// WithAuthor sets the identity used for commits, overriding git config.
func (r *ExecRunner) WithAuthor(name, email string) *ExecRunner {
	r.authorName = name
	r.authorEmail = email
	return r
}

// run executes a git command and returns its trimmed output.
func (r *ExecRunner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoPath
	if r.authorName != "" {
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME="+r.authorName,
			"GIT_AUTHOR_EMAIL="+r.authorEmail,
			"GIT_COMMITTER_NAME="+r.authorName,
			"GIT_COMMITTER_EMAIL="+r.authorEmail,
		)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, args...)
}

// RepoPath returns the repository's working directory.
func (r *ExecRunner) RepoPath() string {
	return r.repoPath
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// DefaultBranch returns origin's HEAD branch, falling back to main, then
// master, then the current branch.
func (r *ExecRunner) DefaultBranch(ctx context.Context) (string, error) {
	if ref, err := r.run(ctx, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil && ref != "" {
		return strings.TrimPrefix(ref, "origin/"), nil
	}
	for _, candidate := range []string{"main", "master"} {
		if ok, err := r.BranchExists(ctx, candidate); err == nil && ok {
			return candidate, nil
		}
	}
	return r.CurrentBranch(ctx)
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git show-ref %s: %w", name, err)
}

// CreateBranchAt creates a branch pointing at base.
func (r *ExecRunner) CreateBranchAt(ctx context.Context, name, base string) error {
	_, err := r.run(ctx, "branch", name, base)
	return err
}

// CheckoutBranch switches to the specified branch.
func (r *ExecRunner) CheckoutBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, "checkout", name)
	return err
}

// RevParse resolves ref to a commit sha.
func (r *ExecRunner) RevParse(ctx context.Context, ref string) (string, error) {
	return r.run(ctx, "rev-parse", "--verify", ref+"^{commit}")
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges(ctx context.Context) (bool, error) {
	status, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// Add stages the specified files for commit.
func (r *ExecRunner) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := r.run(ctx, args...)
	return err
}

// Commit creates a new commit with the given message.
func (r *ExecRunner) Commit(ctx context.Context, message string) error {
	_, err := r.run(ctx, "commit", "-m", message)
	return err
}

// FileExistsAt reports whether path exists in the tree of ref.
func (r *ExecRunner) FileExistsAt(ctx context.Context, ref, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "cat-file", "-e", ref+":"+path)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// cat-file -e exits non-zero for a missing path; verify the ref
		// itself resolves so a bad ref is not mistaken for a missing file.
		if _, refErr := r.RevParse(ctx, ref); refErr != nil {
			return false, refErr
		}
		return false, nil
	}
	return false, fmt.Errorf("git cat-file %s:%s: %w", ref, path, err)
}

// ShowFile returns the contents of a file at a specific ref.
func (r *ExecRunner) ShowFile(ctx context.Context, ref, path string) (string, error) {
	return r.run(ctx, "show", ref+":"+path)
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
