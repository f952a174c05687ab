// Package pipeline runs one generate, validate and publish cycle per
// operator instruction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/codegate/internal/artifact"
	"github.com/ShayCichocki/codegate/internal/exec"
	"github.com/ShayCichocki/codegate/internal/generate"
	"github.com/ShayCichocki/codegate/internal/logging"
	"github.com/ShayCichocki/codegate/internal/publish"
	"github.com/ShayCichocki/codegate/internal/sandbox"
	"github.com/ShayCichocki/codegate/internal/validation"
	"github.com/ShayCichocki/codegate/pkg/models"
)

// Environment acquires the sandbox.
type Environment interface {
	Acquire(ctx context.Context) (*sandbox.Handle, error)
}

// ArtifactWriter places an artifact in the sandbox.
type ArtifactWriter interface {
	Write(ctx context.Context, ep exec.Endpoint, filename, content string) error
}

// StageRunner runs the validation stages.
type StageRunner interface {
	RunStages(ctx context.Context, ep exec.Endpoint, filename string) ([]models.StageResult, error)
}

// Operator is the human at the console.
type Operator interface {
	// ReadInstruction blocks for the next instruction. io.EOF ends the loop.
	ReadInstruction(ctx context.Context) (string, error)
	// Confirm asks a yes/no question. It returns ctx.Err() if ctx ends
	// before an answer arrives.
	Confirm(ctx context.Context, question string) (bool, error)
	// ShowArtifact displays generated code before validation.
	ShowArtifact(a artifact.Artifact)
	// Report displays the finished run.
	Report(run *models.PipelineRun, err error)
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Environment Environment
	Generator   generate.Generator
	Transfer    ArtifactWriter
	Validator   StageRunner
	Publisher   publish.Publisher
	Profile     *validation.Profile
	Operator    Operator
	Logger      *logging.Logger
}

// Options tune a Controller.
type Options struct {
	// AssumeYes skips the confirmation before validation.
	AssumeYes bool
	// ExitKeyword ends Loop; defaults to "exit".
	ExitKeyword string
	// TransferTimeout and PublishTimeout bound those steps; zero means 30s
	// and 1m.
	TransferTimeout time.Duration
	PublishTimeout  time.Duration
	// Stopped is polled between runs; true ends Loop.
	Stopped func() bool
	// OnNewSandbox is called when Acquire returns a different container
	// than the previous run used.
	OnNewSandbox func(h *sandbox.Handle)
}

// Controller owns the sandbox handle and runs pipeline cycles one at a time.
// It is not safe for concurrent use.
type Controller struct {
	deps Deps
	opts Options
	log  *logging.Logger

	handle *sandbox.Handle
}

// New creates a new Controller.
func New(deps Deps, opts Options) *Controller {
	if opts.ExitKeyword == "" {
		opts.ExitKeyword = "exit"
	}
	if opts.TransferTimeout == 0 {
		opts.TransferTimeout = 30 * time.Second
	}
	if opts.PublishTimeout == 0 {
		opts.PublishTimeout = time.Minute
	}
	return &Controller{deps: deps, opts: opts, log: deps.Logger.With("pipeline")}
}

// Handle returns the sandbox handle held by the controller, or nil before
// the first successful acquisition.
func (c *Controller) Handle() *sandbox.Handle {
	return c.handle
}

// SetStopped replaces the stop check polled between runs.
func (c *Controller) SetStopped(fn func() bool) {
	c.opts.Stopped = fn
}

// Loop reads instructions and runs one cycle per instruction until the exit
// keyword, end of input, a stop signal, or ctx cancellation. A failed run
// never ends the loop.
func (c *Controller) Loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.opts.Stopped != nil && c.opts.Stopped() {
			c.log.Infof("stop signal received")
			return nil
		}

		instruction, err := c.deps.Operator.ReadInstruction(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		instruction = strings.TrimSpace(instruction)
		if instruction == "" {
			continue
		}
		if strings.EqualFold(instruction, c.opts.ExitKeyword) {
			return nil
		}

		run, err := c.RunTask(ctx, instruction)
		if err != nil {
			c.log.Warnf("run %s ended %s: %v", run.ID, run.Outcome, err)
		}
	}
}

// RunTask runs one full cycle for instruction. The returned run always has
// a terminal outcome; the error, if any, is the cause of a non-published
// outcome other than a failed gate.
func (c *Controller) RunTask(ctx context.Context, instruction string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		ID:          uuid.NewString(),
		Instruction: instruction,
		Filename:    c.deps.Profile.Filename,
		StartedAt:   time.Now(),
	}
	c.log.Infof("run %s: %q", run.ID, instruction)

	err := c.runTask(ctx, run)
	if run.Outcome == models.OutcomePending {
		run.Finish(models.OutcomeAborted, "run did not complete")
	}

	c.log.Infof("run %s: %s (%s) in %v", run.ID, run.Outcome, run.Reason, run.Duration().Round(time.Millisecond))
	if r, ok := c.deps.Generator.(generate.UsageReporter); ok {
		if tr := r.Tracker(); tr != nil {
			in, out := tr.Total()
			c.log.Infof("generation usage: %d calls, %d input / %d output tokens", tr.Calls(), in, out)
		}
	}
	c.deps.Operator.Report(run, err)
	return run, err
}

func (c *Controller) runTask(ctx context.Context, run *models.PipelineRun) error {
	prompt, err := c.deps.Profile.RenderPrompt(run.Instruction)
	if err != nil {
		run.Finish(models.OutcomeAborted, "prompt template failed")
		return err
	}

	text, err := c.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		run.Finish(models.OutcomeSkipped, "no usable code was generated")
		return err
	}

	art := artifact.New(run.Filename, text, c.deps.Profile.LanguageTags)
	if art.Empty() {
		run.Finish(models.OutcomeSkipped, "generated text was empty after normalization")
		return &generate.GenerationError{Provider: "normalize", Err: generate.ErrEmptyResponse}
	}
	run.Content = art.Content

	c.deps.Operator.ShowArtifact(art)
	if !c.opts.AssumeYes {
		ok, err := c.deps.Operator.Confirm(ctx, "Validate this code in the sandbox?")
		if err != nil {
			run.Finish(models.OutcomeSkipped, "confirmation failed")
			return err
		}
		if !ok {
			run.Finish(models.OutcomeSkipped, "declined by operator")
			return nil
		}
	}

	handle, err := c.deps.Environment.Acquire(ctx)
	if err != nil {
		run.Finish(models.OutcomeAborted, "sandbox unavailable")
		return err
	}
	if c.handle != nil && c.handle.ID != handle.ID && c.opts.OnNewSandbox != nil {
		c.opts.OnNewSandbox(handle)
	}
	c.handle = handle

	tctx, cancel := context.WithTimeout(ctx, c.opts.TransferTimeout)
	err = c.deps.Transfer.Write(tctx, handle.Endpoint, art.Filename, art.Content)
	cancel()
	if err != nil {
		run.Finish(models.OutcomeAborted, "transfer failed")
		return err
	}

	results, err := c.deps.Validator.RunStages(ctx, handle.Endpoint, art.Filename)
	run.Stages = results
	if err != nil {
		var missing *validation.ToolingMissingError
		if errors.As(err, &missing) {
			run.Finish(models.OutcomeAborted, "validation tooling missing")
		} else {
			run.Finish(models.OutcomeAborted, "validation could not complete")
		}
		return err
	}

	decision := Decide(results)
	if !decision.Publish {
		run.Finish(models.OutcomeValidationFailed, decision.Reason)
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, c.opts.PublishTimeout)
	defer cancel()
	location, err := c.deps.Publisher.Publish(pctx, BuildChange(run))
	if err != nil {
		if errors.Is(err, publish.ErrPublishDisabled) {
			run.Finish(models.OutcomeValidationFailed, "validation passed but publishing is disabled")
		} else {
			run.Finish(models.OutcomeValidationFailed, "validation passed but publishing failed")
		}
		return fmt.Errorf("publish: %w", err)
	}

	run.Location = location
	run.Finish(models.OutcomePublished, decision.Reason)
	return nil
}
