package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/ShayCichocki/codegate/internal/exec"
	"github.com/ShayCichocki/codegate/internal/logging"
)

// Config configures a Manager.
type Config struct {
	// Name is the stable container name used for lookup and reuse.
	Name  string
	Image string
	// Host and Port are where the SSH port is published.
	Host string
	Port int
	// User and Password are provisioned as the sandbox login.
	User     string
	Password string
	// ReadyTimeout bounds the wait for the SSH endpoint after a start.
	ReadyTimeout time.Duration
}

// Manager acquires the single named sandbox, creating or starting it as
// needed. It is not safe for concurrent use.
type Manager struct {
	engine Engine
	prober Prober
	cfg    Config
	log    *logging.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	handle *Handle
}

// Option configures a Manager.
type Option func(*Manager)

// WithProber replaces the default SSH banner prober.
func WithProber(p Prober) Option {
	return func(m *Manager) { m.prober = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l.With("sandbox") }
}

// WithBackoff sets the readiness poll interval bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(m *Manager) {
		m.minBackoff = min
		m.maxBackoff = max
	}
}

// NewManager creates a Manager over engine.
func NewManager(engine Engine, cfg Config, opts ...Option) *Manager {
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 3 * time.Minute
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	m := &Manager{
		engine:     engine,
		prober:     BannerProber{},
		cfg:        cfg,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a handle to the running sandbox. It is idempotent: an
// existing container with the configured name is always reused, started if
// stopped, and only created when none exists.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	info, err := m.engine.FindContainer(ctx, m.cfg.Name)
	if err != nil {
		return nil, &ProvisioningError{Op: "lookup", Err: err}
	}

	switch {
	case info != nil && info.Running:
		m.log.Debugf("reusing running container %s", m.cfg.Name)
		m.handle = m.handleFor(info)
		return m.handle, nil

	case info != nil:
		m.log.Infof("starting stopped container %s", m.cfg.Name)
		if err := m.engine.StartContainer(ctx, info.ID); err != nil {
			return nil, &ProvisioningError{Op: "start", Err: err}
		}
		return m.settle(ctx, "start")

	default:
		if err := m.ensureImage(ctx); err != nil {
			return nil, err
		}
		m.log.Infof("creating container %s from %s", m.cfg.Name, m.cfg.Image)
		id, err := m.engine.CreateContainer(ctx, CreateSpec{
			Name:     m.cfg.Name,
			Image:    m.cfg.Image,
			Cmd:      []string{"sh", "-c", BootstrapScript(m.cfg.User, m.cfg.Password)},
			HostIP:   m.cfg.Host,
			HostPort: m.cfg.Port,
		})
		if err != nil {
			return nil, &ProvisioningError{Op: "create", Err: err}
		}
		if err := m.engine.StartContainer(ctx, id); err != nil {
			return nil, &ProvisioningError{Op: "start", Err: err}
		}
		return m.settle(ctx, "create")
	}
}

// Status reports the sandbox without changing it.
func (m *Manager) Status(ctx context.Context) (*Handle, error) {
	info, err := m.engine.FindContainer(ctx, m.cfg.Name)
	if err != nil {
		return nil, &ProvisioningError{Op: "lookup", Err: err}
	}
	if info == nil {
		return &Handle{Name: m.cfg.Name, Image: m.cfg.Image, State: StateAbsent}, nil
	}
	return m.handleFor(info), nil
}

func (m *Manager) ensureImage(ctx context.Context) error {
	ok, err := m.engine.ImageExists(ctx, m.cfg.Image)
	if err != nil {
		return &ProvisioningError{Op: "image", Err: err}
	}
	if ok {
		return nil
	}
	m.log.Infof("pulling image %s", m.cfg.Image)
	if err := m.engine.PullImage(ctx, m.cfg.Image); err != nil {
		return &ProvisioningError{Op: "pull", Err: err}
	}
	return nil
}

// settle waits for the endpoint to answer, then refreshes the container state.
func (m *Manager) settle(ctx context.Context, op string) (*Handle, error) {
	ep := exec.Endpoint{Host: m.cfg.Host, Port: m.cfg.Port}
	if info, err := m.engine.FindContainer(ctx, m.cfg.Name); err == nil && info != nil {
		ep = m.handleFor(info).Endpoint
	}

	if err := m.waitReady(ctx, ep); err != nil {
		return nil, &ProvisioningError{Op: op, Err: err}
	}

	info, err := m.engine.FindContainer(ctx, m.cfg.Name)
	if err != nil {
		return nil, &ProvisioningError{Op: "refresh", Err: err}
	}
	if info == nil {
		return nil, &ProvisioningError{Op: "refresh", Err: errors.New("container disappeared")}
	}
	if !info.Running {
		return nil, &ProvisioningError{Op: "refresh", Err: errors.New("container is not running")}
	}

	m.handle = m.handleFor(info)
	m.log.Infof("sandbox ready: %s", m.handle)
	return m.handle, nil
}

// waitReady polls the endpoint with exponential backoff until it answers or
// the ready timeout expires.
func (m *Manager) waitReady(ctx context.Context, ep exec.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ReadyTimeout)
	defer cancel()

	delay := m.minBackoff
	attempt := 0
	for {
		attempt++
		err := m.prober.Probe(ctx, ep)
		if err == nil {
			m.log.Debugf("endpoint %s ready after %d probe(s)", ep, attempt)
			return nil
		}
		m.log.Debugf("probe %d of %s: %v", attempt, ep, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("endpoint %s not ready after %v: %w", ep, m.cfg.ReadyTimeout, err)
		case <-timer.C:
		}

		delay *= 2
		if delay > m.maxBackoff {
			delay = m.maxBackoff
		}
	}
}

func (m *Manager) handleFor(info *ContainerInfo) *Handle {
	h := &Handle{
		Name:     m.cfg.Name,
		ID:       info.ID,
		Image:    info.Image,
		State:    StateCreated,
		Endpoint: exec.Endpoint{Host: m.cfg.Host, Port: m.cfg.Port},
	}
	if info.Running {
		h.State = StateRunning
	}
	if info.HostPort != 0 {
		h.Endpoint.Port = info.HostPort
	}
	return h
}

// BootstrapScript returns the container command that installs and starts an
// SSH server, provisions user with password, and then idles. Every step is
// guarded so the script also succeeds when the container restarts.
func BootstrapScript(user, password string) string {
	steps := []string{
		"set -e",
		"command -v sshd >/dev/null 2>&1 || (apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends openssh-server git)",
		"id -u " + shellquote.Join(user) + " >/dev/null 2>&1 || useradd -m -s /bin/bash " + shellquote.Join(user),
		"echo " + shellquote.Join(user+":"+password) + " | chpasswd",
		"mkdir -p /run/sshd",
		`sed -i 's/^#\?PasswordAuthentication .*/PasswordAuthentication yes/' /etc/ssh/sshd_config`,
		"/usr/sbin/sshd",
		"while true; do sleep 3600; done",
	}
	return strings.Join(steps, "\n")
}
