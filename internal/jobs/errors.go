package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrNotReady          = errors.New("wallpaper not ready")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrQueueFull         = errors.New("job queue is full")
	ErrManagerStopped    = errors.New("manager stopped")
)

// ValidationError is a malformed request field, reported before a job exists.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
