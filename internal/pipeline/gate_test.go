package pipeline

import (
	"testing"

	"github.com/ShayCichocki/codegate/pkg/models"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		results     []models.StageResult
		wantPublish bool
		wantReason  string
	}{
		{
			name:       "no execute stage",
			results:    []models.StageResult{{Name: models.StageFormat, Succeeded: true}},
			wantReason: "execute stage did not run",
		},
		{
			name:        "execute passed",
			results:     []models.StageResult{{Name: models.StageExecute, Stdout: "5\n", ExitKnown: true, Succeeded: true}},
			wantPublish: true,
			wantReason:  "execute stage passed",
		},
		{
			name:       "execute timed out",
			results:    []models.StageResult{{Name: models.StageExecute, TimedOut: true}},
			wantReason: "execute stage timed out",
		},
		{
			name:       "stderr output",
			results:    []models.StageResult{{Name: models.StageExecute, Stderr: "Traceback", ExitCode: 1, ExitKnown: true}},
			wantReason: "execute stage wrote to stderr",
		},
		{
			name:       "whitespace-only stderr",
			results:    []models.StageResult{{Name: models.StageExecute, Stderr: "\n", ExitKnown: true}},
			wantReason: "execute stage wrote to stderr",
		},
		{
			name:       "nonzero exit without stderr",
			results:    []models.StageResult{{Name: models.StageExecute, ExitCode: 3, ExitKnown: true}},
			wantReason: "execute stage exited with status 3",
		},
		{
			name: "advisory failures do not matter",
			results: []models.StageResult{
				{Name: models.StageFormat, Stderr: "would reformat", ExitCode: 1, ExitKnown: true},
				{Name: models.StageTest, ExitCode: 5, ExitKnown: true},
				{Name: models.StageExecute, ExitKnown: true, Succeeded: true},
			},
			wantPublish: true,
			wantReason:  "execute stage passed",
		},
		{
			name: "advisory passes do not rescue execute",
			results: []models.StageResult{
				{Name: models.StageFormat, Succeeded: true},
				{Name: models.StageTest, Succeeded: true},
				{Name: models.StageExecute},
			},
			wantReason: "execute stage failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.results)
			if got.Publish != tt.wantPublish {
				t.Errorf("Publish = %v, want %v", got.Publish, tt.wantPublish)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}
