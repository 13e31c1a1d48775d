package memory

import (
	"errors"
	"fmt"
	"time"
)

// ErrLockTimeout is returned when the snapshot lock cannot be acquired
// within the configured timeout.
var ErrLockTimeout = errors.New("timed out waiting for the memory lock")

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("memory store is closed")

// CorruptionError reports a snapshot that could not be decoded. The file is
// moved aside to QuarantinedTo and the store continues in memory.
type CorruptionError struct {
	Path          string
	QuarantinedTo string
	Err           error
}

func (e *CorruptionError) Error() string {
	if e.QuarantinedTo != "" {
		return fmt.Sprintf("corrupt memory snapshot %s (moved to %s): %v", e.Path, e.QuarantinedTo, e.Err)
	}
	return fmt.Sprintf("corrupt memory snapshot %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// quarantineName is the name a corrupt snapshot is renamed to.
func quarantineName(path string, now time.Time) string {
	return fmt.Sprintf("%s.corrupt-%d", path, now.Unix())
}
