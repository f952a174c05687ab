package pipeline

import (
	"fmt"

	"github.com/ShayCichocki/codegate/pkg/models"
)

// Decision is the outcome of the publish gate.
type Decision struct {
	Publish bool
	Reason  string
}

// Decide inspects stage results and decides whether to publish. Only the
// execute stage counts: format and test results are informational and can
// neither block nor trigger a publish.
func Decide(results []models.StageResult) Decision {
	var exec *models.StageResult
	for i := range results {
		if results[i].Name == models.StageExecute {
			exec = &results[i]
		}
	}

	switch {
	case exec == nil:
		return Decision{Reason: "execute stage did not run"}
	case exec.Succeeded:
		return Decision{Publish: true, Reason: "execute stage passed"}
	case exec.TimedOut:
		return Decision{Reason: "execute stage timed out"}
	case exec.Stderr != "":
		return Decision{Reason: "execute stage wrote to stderr"}
	case exec.ExitKnown && exec.ExitCode != 0:
		return Decision{Reason: fmt.Sprintf("execute stage exited with status %d", exec.ExitCode)}
	default:
		return Decision{Reason: "execute stage failed"}
	}
}
