// Package exec runs shell commands against a sandbox endpoint and captures
// their output streams and exit status.
package exec

import (
	"context"
	"net"
	"strconv"
)

// Endpoint addresses a command execution target.
type Endpoint struct {
	Host string
	Port int
}

// Address returns the endpoint as host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// Result is the captured outcome of one command.
// A non-zero exit status is reported here, not as an error.
type Result struct {
	Stdout string
	Stderr string
	// ExitCode is only meaningful when ExitKnown is true.
	ExitCode  int
	ExitKnown bool
}

// CommandRunner defines the interface for running commands on an endpoint.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes command through the target's shell.
	// It returns an error wrapping ErrCommandTimeout when ctx expires, along
	// with whatever output arrived before that, and a *RemoteExecutionError
	// when the transport fails.
	Run(ctx context.Context, ep Endpoint, command string) (Result, error)
}
