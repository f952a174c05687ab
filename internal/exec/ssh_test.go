package exec

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// execHandler writes the command's output to ch and returns its exit
// status. Returning a negative status closes the channel without one.
type execHandler func(command string, ch ssh.Channel) int

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

// startServer runs a minimal SSH server that accepts user/password and
// serves exec requests with handler.
func startServer(t *testing.T, user, password string, handler execHandler) Endpoint {
	t.Helper()

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(newSigner(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg, handler)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Endpoint{Host: host, Port: port}
}

func serveConn(conn net.Conn, cfg *ssh.ServerConfig, handler execHandler) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range chReqs {
				if req.Type != "exec" {
					req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				ssh.Unmarshal(req.Payload, &payload)
				req.Reply(true, nil)

				status := handler(payload.Command, ch)
				if status >= 0 {
					ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
				}
				ch.Close()
				return
			}
		}()
	}
}

func TestSSHRunnerRun(t *testing.T) {
	ep := startServer(t, "devuser", "devpass", func(command string, ch ssh.Channel) int {
		switch command {
		case "ok":
			io.WriteString(ch, "all good\n")
			return 0
		case "warn":
			io.WriteString(ch, "out\n")
			io.WriteString(ch.Stderr(), "careful\n")
			return 0
		case "fail":
			io.WriteString(ch.Stderr(), "boom\n")
			return 2
		default:
			io.WriteString(ch, "no status")
			return -1
		}
	})

	r := NewSSHRunner(SSHConfig{User: "devuser", Password: "devpass"})

	tests := []struct {
		command    string
		wantStdout string
		wantStderr string
		wantExit   int
		wantKnown  bool
	}{
		{"ok", "all good\n", "", 0, true},
		{"warn", "out\n", "careful\n", 0, true},
		{"fail", "", "boom\n", 2, true},
		{"silent", "no status", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			res, err := r.Run(context.Background(), ep, tt.command)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Stdout != tt.wantStdout || res.Stderr != tt.wantStderr {
				t.Errorf("got stdout %q stderr %q", res.Stdout, res.Stderr)
			}
			if res.ExitKnown != tt.wantKnown || res.ExitCode != tt.wantExit {
				t.Errorf("exit = %d (known %v), want %d (known %v)", res.ExitCode, res.ExitKnown, tt.wantExit, tt.wantKnown)
			}
		})
	}
}

func TestSSHRunnerAuthFailure(t *testing.T) {
	ep := startServer(t, "devuser", "devpass", func(string, ssh.Channel) int { return 0 })

	r := NewSSHRunner(SSHConfig{User: "devuser", Password: "wrong"})
	_, err := r.Run(context.Background(), ep, "ok")

	var remote *RemoteExecutionError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteExecutionError, got %v", err)
	}
	if remote.Op != "connect" {
		t.Errorf("Op = %q, want connect", remote.Op)
	}
}

func TestSSHRunnerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	r := NewSSHRunner(SSHConfig{User: "u", Password: "p", DialTimeout: time.Second})
	_, err = r.Run(context.Background(), Endpoint{Host: "127.0.0.1", Port: addr.Port}, "true")

	var remote *RemoteExecutionError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteExecutionError, got %v", err)
	}
}

func TestSSHRunnerTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	ep := startServer(t, "devuser", "devpass", func(_ string, ch ssh.Channel) int {
		io.WriteString(ch, "started\n")
		<-release
		return 0
	})

	r := NewSSHRunner(SSHConfig{User: "devuser", Password: "devpass"})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, ep, "hang")
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected ErrCommandTimeout, got %v", err)
	}
}

func TestHostKeyPinning(t *testing.T) {
	r := NewSSHRunner(SSHConfig{})
	ep := Endpoint{Host: "127.0.0.1", Port: 2222}
	first := newSigner(t).PublicKey()
	second := newSigner(t).PublicKey()

	if err := r.hostKeyCallback(ep.Address(), nil, first); err != nil {
		t.Fatalf("first use should be trusted: %v", err)
	}
	if err := r.hostKeyCallback(ep.Address(), nil, first); err != nil {
		t.Fatalf("same key should be accepted: %v", err)
	}
	if err := r.hostKeyCallback(ep.Address(), nil, second); err == nil {
		t.Fatal("changed key should be rejected")
	}

	r.ForgetHost(ep)
	if err := r.hostKeyCallback(ep.Address(), nil, second); err != nil {
		t.Fatalf("key should be accepted after ForgetHost: %v", err)
	}
}
