package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	assumeYes  bool
	noColor    bool
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "codegate",
	Short: "Generate code, validate it in a sandbox, publish what passes",
	Long: `codegate turns natural-language instructions into code and only
publishes code that actually runs.

Each instruction goes through one cycle:
- a generation backend (ollama, openai or anthropic) writes a single file
- the file is copied into a long-lived docker sandbox over SSH
- install, presence, format, test and execute stages run inside it
- if the execute stage passes, the file is published as a pull request

With no arguments, starts an interactive prompt. Type "exit" to quit.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Load configuration from this file only")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Validate generated code without asking")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Write debug lines to the log file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sandboxCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}
