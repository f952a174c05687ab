package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Inspect or prepare the validation sandbox",
}

var sandboxStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sandbox container state without changing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sandboxStatus(cmd.Context())
	},
}

var sandboxAcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Create or start the sandbox and wait until SSH answers",
	Long: `Create the sandbox container if it does not exist, start it if it is
stopped, and wait for its SSH endpoint. Running this ahead of time keeps
the first instruction from paying for image pulls and package installs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sandboxAcquire(cmd.Context())
	},
}

func init() {
	sandboxCmd.AddCommand(sandboxStatusCmd)
	sandboxCmd.AddCommand(sandboxAcquireCmd)
}

func sandboxStatus(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)
	defer log.Close()

	manager, engine, err := newSandboxManager(cfg, log)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer engine.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	h, err := manager.Status(ctx)
	if err != nil {
		return err
	}

	switch {
	case h.Running():
		printStatus("✓", h.String(), color.FgGreen)
	case h.ID != "":
		printStatus("⚠", h.String(), color.FgYellow)
	default:
		printStatus("✗", fmt.Sprintf("%s does not exist (image %s)", cfg.Sandbox.Name, cfg.Sandbox.Image), color.FgRed)
	}
	return nil
}

func sandboxAcquire(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)
	defer log.Close()

	manager, engine, err := newSandboxManager(cfg, log)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer engine.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	fmt.Printf("Acquiring sandbox %s...\n", cfg.Sandbox.Name)
	h, err := manager.Acquire(ctx)
	if err != nil {
		printStatus("✗", err.Error(), color.FgRed)
		return err
	}
	printStatus("✓", h.String(), color.FgGreen)
	return nil
}
