// Package console is the operator-facing line interface: it reads
// instructions, asks for confirmation, echoes stage output and reports
// run outcomes.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/codegate/internal/artifact"
	"github.com/ShayCichocki/codegate/internal/validation"
	"github.com/ShayCichocki/codegate/pkg/models"
)

// Console reads from in and writes to out. It implements pipeline.Operator.
type Console struct {
	in      *bufio.Reader
	pending chan lineResult
	out     io.Writer
	prompt  string

	header  lipgloss.Style
	dim     lipgloss.Style
	code    lipgloss.Style
	ok      *color.Color
	bad     *color.Color
	warn    *color.Color
	neutral *color.Color
}

// New creates a new Console. noColor disables all styling.
func New(in io.Reader, out io.Writer, noColor bool) *Console {
	r := lipgloss.NewRenderer(out)
	c := &Console{
		in:     bufio.NewReader(in),
		out:    out,
		prompt: "codegate> ",
		header: r.NewStyle().Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),
		dim: r.NewStyle().Foreground(lipgloss.Color("244")),
		code: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		ok:      color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		neutral: color.New(color.FgCyan),
	}
	if noColor {
		c.header = lipgloss.NewStyle().Bold(false)
		c.dim = lipgloss.NewStyle()
		c.code = lipgloss.NewStyle()
		for _, col := range []*color.Color{c.ok, c.bad, c.warn, c.neutral} {
			col.DisableColor()
		}
	}
	return c
}

// Banner prints the greeting shown before the interactive loop.
func (c *Console) Banner(profile, exitKeyword string) {
	fmt.Fprintln(c.out, c.header.Render("codegate"))
	fmt.Fprintf(c.out, "Toolchain profile: %s\n", profile)
	fmt.Fprintf(c.out, "Describe the code you want. Type '%s' to quit.\n\n", exitKeyword)
}

// ReadInstruction prints the prompt and reads one line. It returns io.EOF
// when input is exhausted, or ctx.Err() if ctx ends first.
func (c *Console) ReadInstruction(ctx context.Context) (string, error) {
	fmt.Fprint(c.out, c.prompt)
	line, err := c.readLine(ctx)
	if err != nil && ctx.Err() != nil {
		fmt.Fprintln(c.out)
	}
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no; end of
// input is a no. It returns ctx.Err() if ctx ends before an answer.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", question)
	line, err := c.readLine(ctx)
	if err != nil && err != io.EOF {
		if ctx.Err() != nil {
			fmt.Fprintln(c.out)
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine reads one raw line. A read abandoned by a cancelled ctx stays
// pending and its line is returned by the next call.
func (c *Console) readLine(ctx context.Context) (string, error) {
	if c.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := c.in.ReadString('\n')
			ch <- lineResult{line, err}
		}()
		c.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-c.pending:
		c.pending = nil
		return res.line, res.err
	}
}

// ShowArtifact prints the normalized artifact.
func (c *Console) ShowArtifact(a artifact.Artifact) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.header.Render("generated "+a.Filename))
	fmt.Fprintln(c.out, c.code.Render(strings.TrimRight(a.Content, "\n")))
}

// StageHooks returns validation hooks that echo every stage's command and
// both output streams.
func (c *Console) StageHooks() validation.Hooks {
	return validation.Hooks{
		Start: func(name models.StageName, command string) {
			fmt.Fprintln(c.out)
			fmt.Fprintln(c.out, c.header.Render(string(name)))
			fmt.Fprintln(c.out, c.dim.Render("$ "+command))
		},
		Done: c.stageDone,
	}
}

func (c *Console) stageDone(r models.StageResult) {
	c.streams(r)

	symbol, col := "✓", c.ok
	switch {
	case r.TimedOut:
		symbol, col = "⏱", c.warn
	case !r.Succeeded && models.PolicyFor(r.Name) == models.PolicyAdvisory:
		symbol, col = "⚠", c.warn
	case !r.Succeeded:
		symbol, col = "✗", c.bad
	}
	fmt.Fprintf(c.out, "%s %s %s %s\n", col.Sprint(symbol), r.Name, r.Status(),
		c.dim.Render(fmt.Sprintf("(exit %s, %v)", exitLabel(r), r.Duration.Round(time.Millisecond))))
}

func (c *Console) streams(r models.StageResult) {
	if out := strings.TrimRight(r.Stdout, "\n"); out != "" {
		fmt.Fprintln(c.out, c.dim.Render("stdout:"))
		fmt.Fprintln(c.out, out)
	}
	if errOut := strings.TrimRight(r.Stderr, "\n"); errOut != "" {
		fmt.Fprintln(c.out, c.dim.Render("stderr:"))
		fmt.Fprintln(c.out, c.bad.Sprint(errOut))
	}
}

// Report prints the outcome of a finished run. Execute output is repeated
// when the run did not publish.
func (c *Console) Report(run *models.PipelineRun, err error) {
	fmt.Fprintln(c.out)

	switch run.Outcome {
	case models.OutcomePublished:
		c.Status("✓", fmt.Sprintf("Published: %s", run.Location), c.ok)
	case models.OutcomeValidationFailed:
		c.Status("✗", "Not published: "+run.Reason, c.bad)
		if exec, ok := run.Stage(models.StageExecute); ok {
			c.streams(exec)
		}
	case models.OutcomeAborted:
		c.Status("✗", "Aborted: "+run.Reason, c.bad)
	case models.OutcomeSkipped:
		c.Status("⚠", "Skipped: "+run.Reason, c.warn)
	}
	if err != nil {
		fmt.Fprintln(c.out, c.dim.Render("  "+err.Error()))
	}
	fmt.Fprintln(c.out)
}

// Status prints a single coloured status line.
func (c *Console) Status(symbol, message string, col *color.Color) {
	fmt.Fprintf(c.out, "%s %s\n", col.Sprint(symbol), message)
}

// Infof prints a neutral status line.
func (c *Console) Infof(format string, args ...any) {
	c.Status("•", fmt.Sprintf(format, args...), c.neutral)
}

func exitLabel(r models.StageResult) string {
	if !r.ExitKnown {
		return "unknown"
	}
	return fmt.Sprintf("%d", r.ExitCode)
}
