package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/codegate/internal/exec"
	"github.com/ShayCichocki/codegate/internal/logging"
	"github.com/ShayCichocki/codegate/pkg/models"
)

// ToolingMissingError is returned when the presence check prints nothing.
// No later stage has run when it is returned.
type ToolingMissingError struct {
	Result models.StageResult
	Hint   string
}

func (e *ToolingMissingError) Error() string {
	msg := "validation tooling not found on PATH"
	if e.Hint != "" {
		msg += "; install it manually with: " + e.Hint
	}
	return msg
}

// Timeouts bounds each stage.
type Timeouts struct {
	// Install bounds the dependency install stage; zero means 10m.
	Install time.Duration
	// Stage bounds presence, format and test; zero means 2m.
	Stage time.Duration
	// Execute bounds the execute stage; zero means 1m.
	Execute time.Duration
}

func (t Timeouts) For(name models.StageName) time.Duration {
	switch name {
	case models.StageInstall:
		if t.Install > 0 {
			return t.Install
		}
		return 10 * time.Minute
	case models.StageExecute:
		if t.Execute > 0 {
			return t.Execute
		}
		return time.Minute
	default:
		if t.Stage > 0 {
			return t.Stage
		}
		return 2 * time.Minute
	}
}

// Hooks observe stage progress. Either field may be nil.
type Hooks struct {
	Start func(name models.StageName, command string)
	Done  func(result models.StageResult)
}

// Options configures a Runner.
type Options struct {
	Timeouts Timeouts
	// GateOnExitStatus also requires a zero exit status from the execute
	// stage when the transport reports one.
	GateOnExitStatus bool
	Hooks            Hooks
	Logger           *logging.Logger
}

// Runner executes the validation stages of a Profile.
type Runner struct {
	runner  exec.CommandRunner
	profile *Profile
	opts    Options
	log     *logging.Logger
}

// NewRunner creates a new Runner.
func NewRunner(runner exec.CommandRunner, profile *Profile, opts Options) *Runner {
	return &Runner{
		runner:  runner,
		profile: profile,
		opts:    opts,
		log:     opts.Logger.With("validation"),
	}
}

// Profile returns the toolchain profile the runner uses.
func (r *Runner) Profile() *Profile {
	return r.profile
}

// RunStages runs every stage in order against filename on ep and returns
// their results. Results gathered so far are returned alongside any error.
//
// A *ToolingMissingError stops the run after the presence check. A transport
// failure (*exec.RemoteExecutionError) stops it at the failing stage.
// Failed advisory stages never stop it.
func (r *Runner) RunStages(ctx context.Context, ep exec.Endpoint, filename string) ([]models.StageResult, error) {
	results := make([]models.StageResult, 0, len(models.StageOrder))

	for _, name := range models.StageOrder {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := r.runStage(ctx, ep, name, filename)
		if err != nil {
			return results, fmt.Errorf("stage %s: %w", name, err)
		}
		results = append(results, result)

		if r.opts.Hooks.Done != nil {
			r.opts.Hooks.Done(result)
		}
		r.log.Infof("stage %s: %s (exit=%s, %v)", name, result.Status(), exitLabel(result), result.Duration.Round(time.Millisecond))

		if models.PolicyFor(name) == models.PolicyRequireStdout && !result.Succeeded {
			r.log.Errorf("presence check printed nothing; skipping remaining stages")
			return results, &ToolingMissingError{Result: result, Hint: r.profile.InstallHint}
		}
	}

	return results, nil
}

func (r *Runner) runStage(ctx context.Context, ep exec.Endpoint, name models.StageName, filename string) (models.StageResult, error) {
	command, err := r.profile.Command(name, filename)
	if err != nil {
		return models.StageResult{}, err
	}

	if r.opts.Hooks.Start != nil {
		r.opts.Hooks.Start(name, command)
	}

	stageCtx, cancel := context.WithTimeout(ctx, r.opts.Timeouts.For(name))
	defer cancel()

	start := time.Now()
	res, err := r.runner.Run(stageCtx, ep, command)
	result := models.StageResult{
		Name:      name,
		Command:   command,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		ExitKnown: res.ExitKnown,
		Duration:  time.Since(start),
	}

	if err != nil {
		if !errors.Is(err, exec.ErrCommandTimeout) {
			return result, err
		}
		// Only the stage deadline counts as a stage timeout.
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.TimedOut = true
		r.log.Warnf("stage %s timed out after %v", name, r.opts.Timeouts.For(name))
	}

	result.Succeeded = Evaluate(result, r.opts.GateOnExitStatus)
	return result, nil
}

// Evaluate derives whether a stage succeeded from its captured output.
//
//   - advisory stages: no timeout, and a zero exit status when known,
//     otherwise empty stderr
//   - presence: no timeout and non-empty stdout
//   - execute: no timeout, no stderr bytes at all (whitespace counts), and
//     a zero exit status when known and gateOnExit is set
func Evaluate(r models.StageResult, gateOnExit bool) bool {
	if r.TimedOut {
		return false
	}
	stderrEmpty := strings.TrimSpace(r.Stderr) == ""

	switch models.PolicyFor(r.Name) {
	case models.PolicyRequireStdout:
		return strings.TrimSpace(r.Stdout) != ""
	case models.PolicyGate:
		if r.Stderr != "" {
			return false
		}
		if gateOnExit && r.ExitKnown {
			return r.ExitCode == 0
		}
		return true
	default:
		if r.ExitKnown {
			return r.ExitCode == 0
		}
		return stderrEmpty
	}
}

func exitLabel(r models.StageResult) string {
	if !r.ExitKnown {
		return "?"
	}
	return fmt.Sprintf("%d", r.ExitCode)
}
