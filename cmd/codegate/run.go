package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codegate/pkg/models"
)

// Process exit codes for one-shot runs.
const (
	exitPublished        = 0
	exitError            = 1
	exitValidationFailed = 2
	exitAborted          = 3
	exitSkipped          = 4
)

var runCmd = &cobra.Command{
	Use:   "run <instruction>",
	Short: "Run a single instruction and exit",
	Long: `Run one generate, validate and publish cycle for the instruction and
exit with a status describing the outcome:

  0  published
  1  error before the run started
  2  validation failed (or publishing failed)
  3  aborted (sandbox, transfer or tooling problem)
  4  skipped (nothing usable generated, or declined)

Combine with --yes for unattended use.

Examples:
  codegate run "write a function that adds two integers" --yes`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runOnce(cmd.Context(), strings.Join(args, " ")))
	},
}

func runOnce(parent context.Context, instruction string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitError
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer a.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	a.warnDisabledPublish()
	run, _ := a.controller.RunTask(ctx, instruction)
	return exitCodeFor(run.Outcome)
}

func exitCodeFor(outcome models.Outcome) int {
	switch outcome {
	case models.OutcomePublished:
		return exitPublished
	case models.OutcomeValidationFailed:
		return exitValidationFailed
	case models.OutcomeAborted:
		return exitAborted
	case models.OutcomeSkipped:
		return exitSkipped
	default:
		return exitError
	}
}
