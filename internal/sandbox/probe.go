package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ShayCichocki/codegate/internal/exec"
)

// Prober checks whether a sandbox endpoint accepts connections.
type Prober interface {
	Probe(ctx context.Context, ep exec.Endpoint) error
}

// BannerProber dials the endpoint and waits for the SSH identification
// string, which only appears once sshd is serving.
type BannerProber struct {
	// Timeout bounds each probe; zero means 3s.
	Timeout time.Duration
}

// Probe implements Prober.
func (p BannerProber) Probe(ctx context.Context, ep exec.Endpoint) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read banner: %w", err)
	}
	if !strings.HasPrefix(line, "SSH-") {
		return fmt.Errorf("unexpected banner %q", strings.TrimSpace(line))
	}
	return nil
}
