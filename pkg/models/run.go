package models

import "time"

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomePending means the run has not finished.
	OutcomePending Outcome = ""
	// OutcomePublished means validation passed and the change was published.
	OutcomePublished Outcome = "published"
	// OutcomeValidationFailed means the execute stage failed or publishing failed.
	OutcomeValidationFailed Outcome = "validation-failed"
	// OutcomeAborted means a fatal error stopped the run early.
	OutcomeAborted Outcome = "aborted"
	// OutcomeSkipped means no usable artifact was produced or the operator declined.
	OutcomeSkipped Outcome = "skipped"
)

// Valid returns true if the outcome is a known terminal value.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePublished, OutcomeValidationFailed, OutcomeAborted, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// PipelineRun is one operator task submission, discarded at cycle end.
type PipelineRun struct {
	// ID is a unique identifier for log correlation.
	ID string `json:"id"`
	// Instruction is the operator's natural-language task.
	Instruction string `json:"instruction"`
	// Filename is the logical filename of the artifact.
	Filename string `json:"filename"`
	// Content is the normalized artifact content.
	Content string `json:"content"`
	// Stages holds stage results in execution order.
	Stages []StageResult `json:"stages"`
	// Outcome is the terminal state.
	Outcome Outcome `json:"outcome"`
	// Reason explains the outcome.
	Reason string `json:"reason,omitempty"`
	// Location is the publish collaborator's opaque result (PR URL or branch).
	Location string `json:"location,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached its outcome.
	FinishedAt time.Time `json:"finished_at"`
}

// Stage returns the result for the named stage, if it ran.
func (r *PipelineRun) Stage(name StageName) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Finish records the terminal outcome.
func (r *PipelineRun) Finish(outcome Outcome, reason string) {
	r.Outcome = outcome
	r.Reason = reason
	r.FinishedAt = time.Now()
}

// Duration returns the elapsed run time.
func (r *PipelineRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
