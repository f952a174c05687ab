package main

import (
	"context"
	"errors"
	"fmt"
)

func runInteractive(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	a.watchStop()
	a.console.Banner(a.profile.Name, cfg.Console.ExitKeyword)
	a.warnDisabledPublish()
	a.log.Infof("interactive session started (profile=%s, provider=%s, publish=%s)",
		a.profile.Name, cfg.Generation.Provider, cfg.Publish.Provider)

	err = a.controller.Loop(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.log.Infof("interactive session ended")
	return err
}
