package task

import (
	"fmt"

	"github.com/ev1stensberg/walkoff/internal/trigger"
)

// Status is the lifecycle state of a scheduled task
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// ParseStatus converts a string into a known status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusRunning, StatusStopped:
		return Status(s), nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// ValidationError is shared with the trigger builder so callers match a single type
type ValidationError = trigger.ValidationError
