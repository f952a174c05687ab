package models

import "time"

// StageName identifies one validation stage.
type StageName string

const (
	// StageInstall installs the formatter and test runner.
	StageInstall StageName = "install"
	// StagePresence checks that the installed tools are on PATH.
	StagePresence StageName = "presence"
	// StageFormat runs the formatter in check-only mode.
	StageFormat StageName = "format"
	// StageTest runs the test runner against the artifact.
	StageTest StageName = "test"
	// StageExecute runs the artifact as a standalone program.
	StageExecute StageName = "execute"
)

// StageOrder is the fixed order in which stages run.
var StageOrder = []StageName{
	StageInstall,
	StagePresence,
	StageFormat,
	StageTest,
	StageExecute,
}

// Valid returns true if the stage name is a known value.
func (s StageName) Valid() bool {
	switch s {
	case StageInstall, StagePresence, StageFormat, StageTest, StageExecute:
		return true
	default:
		return false
	}
}

// StagePolicy controls how a stage outcome affects the rest of the run.
type StagePolicy string

const (
	// PolicyAdvisory records the outcome and always continues.
	PolicyAdvisory StagePolicy = "advisory"
	// PolicyRequireStdout aborts the run when the stage prints nothing.
	PolicyRequireStdout StagePolicy = "require_stdout"
	// PolicyGate makes the stage the sole input to the publish decision.
	PolicyGate StagePolicy = "gate"
)

// PolicyFor returns the fixed policy of a stage.
func PolicyFor(name StageName) StagePolicy {
	switch name {
	case StagePresence:
		return PolicyRequireStdout
	case StageExecute:
		return PolicyGate
	default:
		return PolicyAdvisory
	}
}

// StageResult holds the captured outcome of a single stage.
type StageResult struct {
	// Name is the stage that produced this result.
	Name StageName `json:"name"`
	// Command is the shell command that was run.
	Command string `json:"command"`
	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`
	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`
	// ExitCode is the remote exit status, valid only when ExitKnown is true.
	ExitCode int `json:"exit_code"`
	// ExitKnown reports whether the transport delivered an exit status.
	ExitKnown bool `json:"exit_known"`
	// TimedOut is set when the stage exceeded its timeout.
	TimedOut bool `json:"timed_out,omitempty"`
	// Succeeded is derived from the captured output per the stage policy.
	Succeeded bool `json:"succeeded"`
	// Duration is how long the stage took.
	Duration time.Duration `json:"duration"`
}

// Status returns a short label for display.
func (r StageResult) Status() string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.Succeeded:
		return "pass"
	default:
		return "fail"
	}
}
