package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ShayCichocki/codegate/internal/logging"
)

// SSHConfig configures an SSHRunner.
type SSHConfig struct {
	User     string
	Password string
	// DialTimeout bounds connection setup; zero means 10s.
	DialTimeout time.Duration
	Logger      *logging.Logger
}

// SSHRunner implements CommandRunner over SSH with password authentication.
// Each Run opens its own connection so a broken session never poisons the
// next command.
//
// Host keys are trusted on first use and pinned per address for the life of
// the runner. A changed key is rejected until ForgetHost is called.
type SSHRunner struct {
	cfg SSHConfig
	log *logging.Logger

	mu    sync.Mutex
	known map[string]ssh.PublicKey
}

// NewSSHRunner creates a new SSHRunner.
func NewSSHRunner(cfg SSHConfig) *SSHRunner {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &SSHRunner{
		cfg:   cfg,
		log:   cfg.Logger.With("ssh"),
		known: make(map[string]ssh.PublicKey),
	}
}

// ForgetHost drops the pinned host key for ep, e.g. after the sandbox was
// recreated with fresh keys.
func (r *SSHRunner) ForgetHost(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.known, ep.Address())
}

func (r *SSHRunner) hostKeyCallback(hostname string, _ net.Addr, key ssh.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pinned, ok := r.known[hostname]
	if !ok {
		r.known[hostname] = key
		r.log.Debugf("pinned %s host key for %s", key.Type(), hostname)
		return nil
	}
	if !bytes.Equal(pinned.Marshal(), key.Marshal()) {
		return fmt.Errorf("host key for %s changed", hostname)
	}
	return nil
}

func (r *SSHRunner) dial(ctx context.Context, ep Endpoint) (*ssh.Client, error) {
	addr := ep.Address()
	clientCfg := &ssh.ClientConfig{
		User: r.cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(r.cfg.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = r.cfg.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: r.hostKeyCallback,
		Timeout:         r.cfg.DialTimeout,
	}

	dialer := net.Dialer{Timeout: r.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	// The handshake deadline must not cut off long-running commands; ctx
	// cancellation closes the client instead.
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// Run executes command in a new SSH session on ep.
func (r *SSHRunner) Run(ctx context.Context, ep Endpoint, command string) (Result, error) {
	client, err := r.dial(ctx, ep)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: connecting to %s", ErrCommandTimeout, ep)
		}
		return Result{}, &RemoteExecutionError{Op: "connect", Endpoint: ep, Err: err}
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, &RemoteExecutionError{Op: "session", Endpoint: ep, Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	r.log.Debugf("run on %s: %s", ep, command)
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		client.Close()
		<-done
		r.log.Warnf("command on %s timed out after %v", ep, time.Since(start).Round(time.Millisecond))
		return Result{Stdout: stdout.String(), Stderr: stderr.String()},
			fmt.Errorf("%w: %v", ErrCommandTimeout, ctx.Err())
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case runErr == nil:
		res.ExitKnown = true
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
		res.ExitKnown = true
	case errors.As(runErr, &missingErr):
		// The server closed the channel without reporting a status.
	default:
		return res, &RemoteExecutionError{Op: "run", Endpoint: ep, Err: runErr}
	}

	r.log.Debugf("exit=%d known=%v after %v", res.ExitCode, res.ExitKnown, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// Verify SSHRunner implements CommandRunner at compile time.
var _ CommandRunner = (*SSHRunner)(nil)
