// Package memsync exchanges collective memory snapshots with a remote copy
// shared by other instances. A sync pulls the remote snapshot, merges it
// into the local store, flushes, and pushes the merged result back.
//
// Syncs run in the background and never block compilation. A failed sync
// leaves the dirty counter untouched, so the next attempt retries.
package memsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/gz/internal/memory"
)

// DefaultThreshold is the number of unpushed learnings that triggers a sync.
const DefaultThreshold = 10

// ErrWaitTimeout is returned by Wait when a sync outlives its deadline.
var ErrWaitTimeout = errors.New("memory sync did not finish in time")

// Remote is a transport for snapshots. Pull returns nil data when the remote
// holds no snapshot yet.
type Remote interface {
	Pull(ctx context.Context) ([]byte, error)
	Push(ctx context.Context, data []byte) error
}

// Locker is implemented by remotes that can be locked for the duration of
// a pull-merge-push exchange.
type Locker interface {
	Lock(ctx context.Context) (memory.UnlockFunc, error)
}

// Store is the part of the collective memory a sync needs.
type Store interface {
	Dirty() int64
	Snapshot() *memory.Snapshot
	Merge(remote *memory.Snapshot)
	Flush(ctx context.Context) error
	MarkPushed(pushed int64)
}

// Options configures a Syncer.
type Options struct {
	Threshold int64
	Logger    *slog.Logger
}

// Syncer runs background syncs, at most one at a time.
type Syncer struct {
	store  Store
	remote Remote
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	group   *errgroup.Group
	cancel  context.CancelFunc
	running bool
}

// New creates a Syncer.
func New(store Store, remote Remote, opts Options) *Syncer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Syncer{store: store, remote: remote, opts: opts, logger: logger}
}

// Maybe starts a background sync when enough learnings are unpushed, or
// unconditionally when force is set. It reports whether a sync started.
// The sync is detached from ctx cancellation; Wait bounds it instead.
func (s *Syncer) Maybe(ctx context.Context, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	dirty := s.store.Dirty()
	if !force && dirty < s.opts.Threshold {
		return false
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, gctx := errgroup.WithContext(jobCtx)
	s.group, s.cancel, s.running = group, cancel, true

	s.logger.Debug("starting memory sync", slog.Int64("dirty", dirty), slog.Bool("forced", force))
	group.Go(func() error {
		defer s.finish()
		if err := s.Sync(gctx); err != nil {
			s.logger.Warn("memory sync deferred", slog.String("error", err.Error()))
			return err
		}
		return nil
	})
	return true
}

func (s *Syncer) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Wait joins the running sync, if any. After timeout the sync is cancelled
// and ErrWaitTimeout is returned. A sync error is returned as is.
func (s *Syncer) Wait(timeout time.Duration) error {
	s.mu.Lock()
	group, cancel := s.group, s.cancel
	s.group, s.cancel = nil, nil
	s.mu.Unlock()

	if group == nil {
		return nil
	}
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		cancel()
		return ErrWaitTimeout
	}
}

// Sync performs one exchange in the foreground.
func (s *Syncer) Sync(ctx context.Context) error {
	if l, ok := s.remote.(Locker); ok {
		unlock, err := l.Lock(ctx)
		if err != nil {
			return fmt.Errorf("failed to lock remote: %w", err)
		}
		defer func() { _ = unlock() }()
	}

	data, err := s.remote.Pull(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull snapshot: %w", err)
	}
	if len(data) > 0 {
		remote, err := memory.Deserialize(data)
		if err != nil {
			return fmt.Errorf("remote snapshot: %w", err)
		}
		s.store.Merge(remote)
	}

	if err := s.store.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush merged memory: %w", err)
	}

	// Counted after the merge, which takes the larger of both dirty counters.
	pushed := s.store.Dirty()
	out, err := memory.Serialize(s.store.Snapshot())
	if err != nil {
		return err
	}
	if err := s.remote.Push(ctx, out); err != nil {
		return fmt.Errorf("failed to push snapshot: %w", err)
	}

	s.store.MarkPushed(pushed)
	if err := s.store.Flush(ctx); err != nil {
		s.logger.Warn("failed to record push", slog.String("error", err.Error()))
	}
	s.logger.Info("memory synced", slog.Int64("pushed", pushed))
	return nil
}
