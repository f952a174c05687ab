package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/ShayCichocki/codegate/internal/artifact"
	"github.com/ShayCichocki/codegate/internal/config"
	"github.com/ShayCichocki/codegate/internal/console"
	"github.com/ShayCichocki/codegate/internal/exec"
	"github.com/ShayCichocki/codegate/internal/generate"
	"github.com/ShayCichocki/codegate/internal/logging"
	"github.com/ShayCichocki/codegate/internal/pipeline"
	"github.com/ShayCichocki/codegate/internal/publish"
	"github.com/ShayCichocki/codegate/internal/sandbox"
	"github.com/ShayCichocki/codegate/internal/validation"
)

// app holds every component built from one Config.
type app struct {
	cfg        *config.Config
	log        *logging.Logger
	console    *console.Console
	engine     *sandbox.DockerEngine
	sandbox    *sandbox.Manager
	ssh        *exec.SSHRunner
	profile    *validation.Profile
	publisher  publish.Publisher
	controller *pipeline.Controller
	stop       *console.StopWatcher
}

// loadConfig loads configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if assumeYes {
		cfg.Console.AssumeYes = true
	}
	if noColor {
		cfg.Console.NoColor = true
	}
	if debugLog {
		cfg.Log.Debug = true
	}
	if cfg.Console.NoColor {
		color.NoColor = true
	}
	return cfg, nil
}

// newLogger opens the debug log named by cfg, falling back to the
// working directory's .codegate/logs.
func newLogger(cfg *config.Config) *logging.Logger {
	if cfg.Log.Path != "" {
		l, err := logging.New(cfg.Log.Path, cfg.Log.Debug)
		if err == nil {
			return l
		}
		fmt.Fprintf(os.Stderr, "Warning: cannot open log %s: %v\n", cfg.Log.Path, err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return logging.Nop()
	}
	return logging.ForRepo(cwd, cfg.Log.Debug)
}

func loadProfile(cfg *config.Config) (*validation.Profile, error) {
	if cfg.Stages.ProfilePath != "" {
		return validation.LoadProfileFile(cfg.Stages.ProfilePath)
	}
	return validation.LoadProfile(cfg.Stages.Profile)
}

func newSandboxManager(cfg *config.Config, log *logging.Logger) (*sandbox.Manager, *sandbox.DockerEngine, error) {
	engine, err := sandbox.NewDockerEngine()
	if err != nil {
		return nil, nil, err
	}
	m := sandbox.NewManager(engine, sandbox.Config{
		Name:         cfg.Sandbox.Name,
		Image:        cfg.Sandbox.Image,
		Host:         cfg.Sandbox.Host,
		Port:         cfg.Sandbox.SSHPort,
		User:         cfg.Sandbox.User,
		Password:     cfg.Sandbox.Password,
		ReadyTimeout: cfg.Timeouts.SandboxReady,
	}, sandbox.WithLogger(log))
	return m, engine, nil
}

// newApp wires every component. Nothing touches the network until the
// first run.
func newApp(cfg *config.Config) (*app, error) {
	log := newLogger(cfg)
	con := console.New(os.Stdin, os.Stdout, cfg.Console.NoColor)

	profile, err := loadProfile(cfg)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("load toolchain profile: %w", err)
	}

	gen, err := generate.New(cfg.Generation, cfg.Timeouts.Generation, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	manager, engine, err := newSandboxManager(cfg, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("connect to docker: %w", err)
	}

	ssh := exec.NewSSHRunner(exec.SSHConfig{
		User:     cfg.Sandbox.User,
		Password: cfg.Sandbox.Password,
		Logger:   log,
	})

	validator := validation.NewRunner(ssh, profile, validation.Options{
		Timeouts: validation.Timeouts{
			Install: cfg.Timeouts.Install,
			Stage:   cfg.Timeouts.Stage,
			Execute: cfg.Timeouts.Execute,
		},
		GateOnExitStatus: cfg.Stages.GateOnExitStatus,
		Hooks:            con.StageHooks(),
		Logger:           log,
	})

	a := &app{
		cfg:       cfg,
		log:       log,
		console:   con,
		engine:    engine,
		sandbox:   manager,
		ssh:       ssh,
		profile:   profile,
		publisher: publish.FromConfig(cfg, log),
	}

	a.controller = pipeline.New(pipeline.Deps{
		Environment: manager,
		Generator:   gen,
		Transfer:    artifact.NewTransfer(ssh, log),
		Validator:   validator,
		Publisher:   a.publisher,
		Profile:     profile,
		Operator:    con,
		Logger:      log,
	}, pipeline.Options{
		AssumeYes:       cfg.Console.AssumeYes,
		ExitKeyword:     cfg.Console.ExitKeyword,
		TransferTimeout: cfg.Timeouts.Transfer,
		PublishTimeout:  cfg.Timeouts.Publish,
		OnNewSandbox: func(h *sandbox.Handle) {
			ssh.ForgetHost(h.Endpoint)
			con.Infof("Sandbox was recreated: %s", h)
		},
	})

	return a, nil
}

// signalDir resolves the configured signals directory against the working
// directory.
func signalDir(cfg *config.Config) string {
	dir := cfg.Console.SignalDir
	if !filepath.IsAbs(dir) {
		if cwd, err := os.Getwd(); err == nil {
			dir = filepath.Join(cwd, dir)
		}
	}
	return dir
}

// watchStop starts the stop-signal watcher and hooks it into the controller.
func (a *app) watchStop() {
	sw, err := console.NewStopWatcher(signalDir(a.cfg), a.log)
	if err != nil {
		a.log.Warnf("stop signal disabled: %v", err)
		return
	}
	a.stop = sw
	a.controller.SetStopped(sw.Stopped)
}

// warnDisabledPublish tells the operator up front when nothing can be
// published.
func (a *app) warnDisabledPublish() {
	if d, ok := a.publisher.(publish.Disabled); ok {
		a.console.Status("⚠", fmt.Sprintf("Publishing disabled: %v", d.Reason), warnColor)
	}
}

func (a *app) Close() {
	if a.stop != nil {
		a.stop.Close()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	a.log.Close()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
