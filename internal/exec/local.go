package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// LocalRunner implements CommandRunner by running commands through "sh -c"
// on the local host. The endpoint is ignored.
type LocalRunner struct {
	// Dir is the working directory; empty means the current directory.
	Dir string
}

// NewLocalRunner creates a new LocalRunner.
func NewLocalRunner(dir string) *LocalRunner {
	return &LocalRunner{Dir: dir}
}

// Run executes command and captures stdout and stderr separately.
func (r *LocalRunner) Run(ctx context.Context, ep Endpoint, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%w: %v", ErrCommandTimeout, ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitKnown = true
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		res.ExitKnown = res.ExitCode >= 0
	default:
		return res, &RemoteExecutionError{Op: "run", Endpoint: ep, Err: err}
	}
	return res, nil
}

// Verify LocalRunner implements CommandRunner at compile time.
var _ CommandRunner = (*LocalRunner)(nil)
