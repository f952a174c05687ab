// Package publish turns a validated file into a reviewable change.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPublishDisabled is returned when no publish target is configured.
var ErrPublishDisabled = errors.New("publishing disabled")

// Change is a single-file change to publish.
type Change struct {
	Path          string
	Content       string
	CommitMessage string
	Title         string
	Body          string
}

// Publisher publishes a Change and returns where it can be reviewed.
type Publisher interface {
	Publish(ctx context.Context, change Change) (string, error)
}

// PublishError reports which step of the publish sequence failed. Earlier
// steps are not rolled back, so a branch may be left behind.
type PublishError struct {
	Step   string
	Branch string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("publish %s (branch %s): %v", e.Step, e.Branch, e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Step, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// BranchName returns prefix followed by t as a 14-digit timestamp.
func BranchName(prefix string, t time.Time) string {
	return prefix + t.Format("20060102150405")
}

// Disabled is a Publisher that always refuses. It stands in when publish
// credentials are missing.
type Disabled struct {
	Reason error
}

// Publish implements Publisher.
func (d Disabled) Publish(context.Context, Change) (string, error) {
	if d.Reason != nil {
		return "", fmt.Errorf("%w: %w", ErrPublishDisabled, d.Reason)
	}
	return "", ErrPublishDisabled
}
