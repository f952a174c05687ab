package pipeline

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/codegate/internal/publish"
	"github.com/ShayCichocki/codegate/pkg/models"
)

const (
	maxSubjectLen = 72
	maxOutputLen  = 2000
)

// BuildChange assembles the change request for a validated run. The file
// content is the normalized artifact exactly as it was validated.
func BuildChange(run *models.PipelineRun) publish.Change {
	summary := summarize(run.Instruction, maxSubjectLen-len("feat: "))

	return publish.Change{
		Path:          run.Filename,
		Content:       run.Content,
		CommitMessage: "feat: " + summary,
		Title:         summary,
		Body:          changeBody(run),
	}
}

// summarize returns the first line of s, cut to at most n bytes on a word
// boundary where possible.
func summarize(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) <= n {
		return s
	}
	cut := s[:n-3]
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

func changeBody(run *models.PipelineRun) string {
	var b strings.Builder

	b.WriteString("Generated from the instruction:\n\n")
	for _, line := range strings.Split(strings.TrimSpace(run.Instruction), "\n") {
		b.WriteString("> " + line + "\n")
	}

	fmt.Fprintf(&b, "\n`%s` was validated in the sandbox before this change was opened.\n\n", run.Filename)
	b.WriteString("| stage | result | exit |\n|---|---|---|\n")
	for _, st := range run.Stages {
		exit := "?"
		if st.ExitKnown {
			exit = fmt.Sprintf("%d", st.ExitCode)
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", st.Name, st.Status(), exit)
	}
	b.WriteString("\nFormat and test results are informational; only the execute stage gates this change.\n")

	if exec, ok := run.Stage(models.StageExecute); ok && strings.TrimSpace(exec.Stdout) != "" {
		out := strings.TrimSpace(exec.Stdout)
		if len(out) > maxOutputLen {
			out = out[:maxOutputLen] + "\n..."
		}
		fmt.Fprintf(&b, "\nExecute output:\n\n```\n%s\n```\n", out)
	}

	fmt.Fprintf(&b, "\nRun id: `%s`\n", run.ID)
	return b.String()
}
