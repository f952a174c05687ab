package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/codegate/internal/console"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running interactive session to exit",
	Long: `Writes the stop file into the configured signals directory.

A session started from the same directory finishes its current run and
exits before reading the next instruction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir := signalDir(cfg)
		if err := console.SendStop(dir); err != nil {
			return fmt.Errorf("send stop: %w", err)
		}
		printStatus("✓", "Stop signal sent to "+dir, color.FgGreen)
		return nil
	},
}
