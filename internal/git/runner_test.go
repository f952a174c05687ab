package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initRepo creates a repository with one commit on main.
func initRepo(t *testing.T) *ExecRunner {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	r := NewRunner(dir).WithAuthor("codegate test", "test@example.com")
	ctx := context.Background()

	if _, err := r.Run(ctx, "init", "-q", "-b", "main"); err != nil {
		t.Fatalf("git init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# repo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ctx, "README.md"); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(ctx, "initial"); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestDefaultBranchWithoutRemote(t *testing.T) {
	r := initRepo(t)

	got, err := r.DefaultBranch(context.Background())
	if err != nil {
		t.Fatalf("DefaultBranch() error = %v", err)
	}
	if got != "main" {
		t.Errorf("DefaultBranch() = %q, want main", got)
	}
}

func TestBranchLifecycle(t *testing.T) {
	r := initRepo(t)
	ctx := context.Background()

	exists, err := r.BranchExists(ctx, "feature-x")
	if err != nil || exists {
		t.Fatalf("BranchExists() = %v, %v before creation", exists, err)
	}

	if err := r.CreateBranchAt(ctx, "feature-x", "main"); err != nil {
		t.Fatalf("CreateBranchAt() error = %v", err)
	}
	exists, err = r.BranchExists(ctx, "feature-x")
	if err != nil || !exists {
		t.Fatalf("BranchExists() = %v, %v after creation", exists, err)
	}

	mainSHA, _ := r.RevParse(ctx, "main")
	featureSHA, _ := r.RevParse(ctx, "feature-x")
	if mainSHA == "" || mainSHA != featureSHA {
		t.Errorf("branch should start at main tip: %q vs %q", featureSHA, mainSHA)
	}

	current, _ := r.CurrentBranch(ctx)
	if current != "main" {
		t.Errorf("CreateBranchAt must not switch branches, on %q", current)
	}
}

func TestFileExistsAt(t *testing.T) {
	r := initRepo(t)
	ctx := context.Background()

	ok, err := r.FileExistsAt(ctx, "main", "README.md")
	if err != nil || !ok {
		t.Errorf("README.md should exist: %v, %v", ok, err)
	}

	ok, err = r.FileExistsAt(ctx, "main", "main.py")
	if err != nil || ok {
		t.Errorf("main.py should not exist: %v, %v", ok, err)
	}

	if _, err := r.FileExistsAt(ctx, "no-such-branch", "README.md"); err == nil {
		t.Error("expected error for unknown ref")
	}
}

func TestHasChangesAndShowFile(t *testing.T) {
	r := initRepo(t)
	ctx := context.Background()

	changed, err := r.HasChanges(ctx)
	if err != nil || changed {
		t.Fatalf("fresh repo should be clean: %v, %v", changed, err)
	}

	if err := os.WriteFile(filepath.Join(r.RepoPath(), "main.py"), []byte("print(1)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	changed, _ = r.HasChanges(ctx)
	if !changed {
		t.Error("untracked file should count as a change")
	}

	if err := r.Add(ctx, "main.py"); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(ctx, "add main"); err != nil {
		t.Fatal(err)
	}

	content, err := r.ShowFile(ctx, "HEAD", "main.py")
	if err != nil {
		t.Fatalf("ShowFile() error = %v", err)
	}
	if content != "print(1)" {
		t.Errorf("ShowFile() = %q", content)
	}
}
