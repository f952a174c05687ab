package models

import (
	"testing"
	"time"
)

func TestOutcome_Valid(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomePublished, true},
		{OutcomeValidationFailed, true},
		{OutcomeAborted, true},
		{OutcomeSkipped, true},
		{OutcomePending, false},
		{Outcome("merged"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			if got := tt.outcome.Valid(); got != tt.want {
				t.Errorf("Outcome(%q).Valid() = %v, want %v", tt.outcome, got, tt.want)
			}
		})
	}
}

func TestPipelineRun_Stage(t *testing.T) {
	run := &PipelineRun{
		Stages: []StageResult{
			{Name: StageInstall, Succeeded: true},
			{Name: StageExecute, Stderr: "boom"},
		},
	}

	got, ok := run.Stage(StageExecute)
	if !ok {
		t.Fatal("expected execute stage to be found")
	}
	if got.Stderr != "boom" {
		t.Errorf("Stderr = %q, want %q", got.Stderr, "boom")
	}

	if _, ok := run.Stage(StageFormat); ok {
		t.Error("format stage should not be found")
	}
}

func TestPipelineRun_Finish(t *testing.T) {
	run := &PipelineRun{StartedAt: time.Now().Add(-time.Second)}
	run.Finish(OutcomeAborted, "sandbox unavailable")

	if run.Outcome != OutcomeAborted {
		t.Errorf("Outcome = %q, want %q", run.Outcome, OutcomeAborted)
	}
	if run.Reason != "sandbox unavailable" {
		t.Errorf("Reason = %q", run.Reason)
	}
	if run.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}
	if run.Duration() < time.Second {
		t.Errorf("Duration() = %v, want >= 1s", run.Duration())
	}
}
