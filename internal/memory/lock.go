package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a contended lock file is retried.
const lockRetryDelay = 25 * time.Millisecond

// UnlockFunc releases a held lock.
type UnlockFunc func() error

// FileLock is an exclusive lock shared by goroutines (through a mutex) and
// by processes (through an flock on a lock file).
type FileLock struct {
	mu      sync.Mutex
	flock   *flock.Flock
	timeout time.Duration
}

// NewFileLock returns a lock on path. Acquisition gives up after timeout.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{flock: flock.New(path), timeout: timeout}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.flock.Path()
}

// Lock blocks until the lock is held, ctx is done or the timeout expires.
// The returned function must be called to release it.
func (l *FileLock) Lock(ctx context.Context) (UnlockFunc, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	l.mu.Lock()

	locked, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		l.mu.Unlock()
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, l.flock.Path())
		}
		return nil, fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err)
	}

	var once sync.Once
	unlocker := func() error {
		var err error
		once.Do(func() {
			defer l.mu.Unlock()
			err = l.flock.Unlock()
		})
		return err
	}
	return unlocker, nil
}
