package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrPathEscapes  = errors.New("path escapes storage root")
	ErrUnsupported  = errors.New("unsupported storage backend")
	ErrMisconfigure = errors.New("invalid storage configuration")
)

// WriteError classifies a failed write for the orchestrator's retry
// policy: transient failures are safe to retry, permanent ones (for
// example permission denied) fail the run immediately.
type WriteError struct {
	Path      string
	Transient bool
	Err       error
}

func (e *WriteError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("storage write failed (%s): %s: %v", kind, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsTransientWrite reports whether err is a write failure the caller may
// retry.
func IsTransientWrite(err error) bool {
	var we *WriteError
	return errors.As(err, &we) && we.Transient
}
