// Package sandbox provisions, discovers and reuses the named container that
// generated code is validated in.
package sandbox

import (
	"fmt"

	"github.com/ShayCichocki/codegate/internal/exec"
)

// State is the lifecycle state of the sandbox container.
type State string

const (
	StateAbsent  State = "absent"
	StateCreated State = "created"
	StateRunning State = "running"
)

// Handle identifies the sandbox container and its command endpoint.
type Handle struct {
	Name     string
	ID       string
	Image    string
	State    State
	Endpoint exec.Endpoint
}

// Running reports whether the container is running.
func (h *Handle) Running() bool {
	return h != nil && h.State == StateRunning
}

func (h *Handle) String() string {
	if h == nil || h.State == StateAbsent {
		return "sandbox (absent)"
	}
	id := h.ID
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("%s [%s] %s at %s", h.Name, id, h.State, h.Endpoint)
}

// ProvisioningError wraps any failure to find, create or start the sandbox.
type ProvisioningError struct {
	Op  string
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("sandbox %s: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
