// Package git provides an interface for git operations.
package git

import "context"

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch(ctx context.Context) (string, error)
	// DefaultBranch returns the branch new work is based on: origin's HEAD
	// when a remote is configured, otherwise main or master.
	DefaultBranch(ctx context.Context) (string, error)
	// BranchExists returns true if the branch exists.
	BranchExists(ctx context.Context, name string) (bool, error)
	// CreateBranchAt creates a branch pointing at base without switching to it.
	CreateBranchAt(ctx context.Context, name, base string) error
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(ctx context.Context, name string) error
	// RevParse resolves a ref to a commit sha.
	RevParse(ctx context.Context, ref string) (string, error)
}

// CommitOperations defines the interface for git commit operations.
type CommitOperations interface {
	// HasChanges returns true if there are uncommitted changes.
	HasChanges(ctx context.Context) (bool, error)
	// Add stages the specified files for commit.
	Add(ctx context.Context, paths ...string) error
	// Commit creates a new commit with the given message.
	Commit(ctx context.Context, message string) error
}

// FileOperations defines the interface for reading files at a ref.
type FileOperations interface {
	// FileExistsAt reports whether path exists in the tree of ref.
	FileExistsAt(ctx context.Context, ref, path string) (bool, error)
	// ShowFile returns the contents of a file at a specific ref.
	ShowFile(ctx context.Context, ref, path string) (string, error)
}

// Runner defines the complete interface for git operations.
// Consumers should prefer using focused interfaces when possible.
type Runner interface {
	BranchOperations
	CommitOperations
	FileOperations
	// RepoPath returns the repository's working directory.
	RepoPath() string
	// Run executes an arbitrary git command with the given arguments.
	// Returns the command output and an error if the command fails.
	Run(ctx context.Context, args ...string) (string, error)
}
