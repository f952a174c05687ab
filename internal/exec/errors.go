package exec

import (
	"errors"
	"fmt"
)

// ErrCommandTimeout is returned when a command outlives its context.
var ErrCommandTimeout = errors.New("command timed out")

// RemoteExecutionError reports a transport failure: the target could not be
// reached, authentication failed, or the session broke before completion.
type RemoteExecutionError struct {
	Op       string
	Endpoint Endpoint
	Err      error
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("remote %s on %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *RemoteExecutionError) Unwrap() error {
	return e.Err
}
