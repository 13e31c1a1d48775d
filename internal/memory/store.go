package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default store settings.
const (
	DefaultLockTimeout   = 5 * time.Second
	DefaultMaxLogEntries = 10_000
)

// Options configures a Store.
type Options struct {
	// Dir is the memory directory. An empty Dir keeps the store in memory.
	Dir string
	// Backend is BackendJSON (default) or BackendSQLite.
	Backend       string
	LockTimeout   time.Duration
	MaxLogEntries int
	Rate          RateParams
	// NoDefaults skips seeding the built-in rules and templates.
	NoDefaults bool
	// NoSummary skips regenerating the Markdown summary after a flush.
	NoSummary bool
	Logger    *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// op is a replayable mutation. It is applied to the live index when it is
// made and replayed onto the durable snapshot at flush time.
type op func(idx *index)

// Store is the collective memory. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	opts    Options
	logger  *slog.Logger
	backend Backend
	lock    *FileLock

	idx        *index
	pending    []op
	persistent bool
	warning    error
	closed     bool
}

// Open loads the store from opts.Dir. A corrupt snapshot does not fail Open:
// it is quarantined, the store starts empty and stays in memory for the
// session, and Warning reports the *CorruptionError.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := newStore(opts)
	if opts.Dir == "" {
		s.seedDefaults()
		return s, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	backend, err := NewBackend(opts.Backend, opts.Dir)
	if err != nil {
		return nil, err
	}
	s.backend = backend
	s.lock = NewFileLock(filepath.Join(opts.Dir, LockFileName), s.opts.LockTimeout)
	s.persistent = true

	if err := s.load(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}
	s.seedDefaults()
	return s, nil
}

// NewInMemory returns a store that is never persisted.
func NewInMemory(opts Options) *Store {
	opts.Dir = ""
	s := newStore(opts)
	s.seedDefaults()
	return s
}

func newStore(opts Options) *Store {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.MaxLogEntries <= 0 {
		opts.MaxLogEntries = DefaultMaxLogEntries
	}
	if opts.Rate == (RateParams{}) {
		opts.Rate = DefaultRateParams()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		opts:   opts,
		logger: logger,
		idx:    newIndex(uuid.New().String()),
	}
}

func (s *Store) load(ctx context.Context) error {
	unlock, err := s.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	snap, err := s.backend.Load(ctx)
	var corrupt *CorruptionError
	switch {
	case errors.As(err, &corrupt):
		s.quarantine(corrupt)
		return nil
	case err != nil:
		return err
	case snap == nil:
		s.logger.Debug("no memory snapshot yet", slog.String("path", s.backend.Path()))
		return nil
	}

	idx := fromSnapshot(snap)
	if idx.instanceID == "" {
		idx.instanceID = s.idx.instanceID
	}
	s.idx = idx
	s.logger.Debug("loaded memory snapshot",
		slog.String("path", s.backend.Path()),
		slog.Int("records", len(idx.records)),
		slog.Int("log", len(idx.log)))
	return nil
}

// quarantine moves a corrupt snapshot aside and switches the store to
// memory-only mode.
func (s *Store) quarantine(corrupt *CorruptionError) {
	if dst, err := s.backend.Quarantine(); err != nil {
		s.logger.Warn("failed to quarantine corrupt snapshot", slog.String("error", err.Error()))
	} else {
		corrupt.QuarantinedTo = dst
	}
	s.warning = corrupt
	s.persistent = false
	s.logger.Warn("memory snapshot is corrupt, continuing in memory", slog.String("error", corrupt.Error()))
}

func (s *Store) seedDefaults() {
	if s.opts.NoDefaults {
		return
	}
	s.Import(Defaults())
}

// apply runs o on the live index and queues it for the next flush.
func (s *Store) apply(o op) {
	o(s.idx)
	s.pending = append(s.pending, o)
}

// Upsert records one application of r. An existing record with the same
// signature has its frequency incremented and its confidence reinforced; a
// new record is inserted as given, with a frequency of at least 1.
func (s *Store) Upsert(r Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	rate := s.opts.Rate
	var out Record
	s.apply(func(idx *index) {
		out = upsert(idx, r, rate, now)
	})
	return out
}

func upsert(idx *index, r Record, rate RateParams, now time.Time) Record {
	if existing, ok := idx.records[r.Signature()]; ok {
		existing.Frequency++
		existing.Confidence = rate.Reinforce(existing.Confidence, existing.Frequency)
		existing.UpdatedAt = now
		return *existing
	}
	r.Frequency = max(r.Frequency, 1)
	return *idx.insert(r, now)
}

// Observe upserts a syntax pattern observation.
func (s *Store) Observe(category, value, source string) Record {
	return s.Upsert(Record{Kind: KindObservation, Category: category, Value: value, Source: source})
}

// Import bulk-loads records. Existing records gain the incoming frequency
// (and are reinforced when it is positive); new records are inserted as
// given. It returns how many records were new.
func (s *Store) Import(records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := 0
	for i := range records {
		if _, ok := s.idx.records[records[i].Signature()]; !ok || records[i].Frequency > 0 {
			changes++
		}
	}
	if changes == 0 {
		return 0
	}

	now := s.opts.Now()
	rate := s.opts.Rate
	batch := slices.Clone(records)
	inserted := 0
	s.apply(func(idx *index) {
		inserted = importRecords(idx, batch, rate, now)
	})
	return inserted
}

func importRecords(idx *index, records []Record, rate RateParams, now time.Time) int {
	inserted := 0
	for _, r := range records {
		existing, ok := idx.records[r.Signature()]
		if !ok {
			idx.insert(r, now)
			inserted++
			continue
		}
		if r.Frequency > 0 {
			existing.Frequency += r.Frequency
			existing.Confidence = rate.Reinforce(existing.Confidence, existing.Frequency)
			existing.UpdatedAt = now
		}
	}
	return inserted
}

// Learn appends a learning log entry and counts it as one learning.
func (s *Store) Learn(kind LogKind, payload map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := LogEntry{Timestamp: s.opts.Now().UTC(), Kind: kind, Payload: payload}
	s.apply(func(idx *index) {
		idx.log = append(idx.log, entry)
		idx.totalLearnings++
		idx.dirty++
	})
}

// Merge folds a snapshot from another instance into the store.
func (s *Store) Merge(remote *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	other := fromSnapshot(remote)
	now := s.opts.Now()
	s.apply(func(idx *index) {
		idx.merge(other, now)
	})
}

// MarkPushed records a successful push of pushed learnings.
func (s *Store) MarkPushed(pushed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apply(func(idx *index) {
		idx.updatesPushed++
		idx.dirty = max(0, idx.dirty-pushed)
	})
}

// Dirty returns the number of learnings since the last push.
func (s *Store) Dirty() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.dirty
}

// Get returns the record with the given signature.
func (s *Store) Get(sig Signature) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.idx.records[sig]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// CorrectionRules returns the correction rules by confidence, then
// frequency, then insertion order.
func (s *Store) CorrectionRules() []Record {
	return s.query(func(r *Record) bool { return r.Kind == KindCorrection }, byRank)
}

// OptimizationRules returns the rules enabled at level. Level 3 enables
// every rule, including learned rules with no level; lower levels enable
// the rules whose level is within range.
func (s *Store) OptimizationRules(level int) []Record {
	return s.query(func(r *Record) bool {
		if r.Kind != KindOptimization || level <= 0 {
			return false
		}
		return level >= 3 || (r.Level > 0 && r.Level <= level)
	}, byRank)
}

// Templates returns the code templates in insertion order.
func (s *Store) Templates() []Record {
	return s.query(func(r *Record) bool { return r.Kind == KindTemplate }, nil)
}

// Observations returns the syntax pattern observations, most frequent first.
func (s *Store) Observations() []Record {
	return s.query(func(r *Record) bool { return r.Kind == KindObservation }, func(a, b Record) int {
		return cmp.Or(cmp.Compare(b.Frequency, a.Frequency), cmp.Compare(a.Seq, b.Seq))
	})
}

// Log returns a copy of the learning log, oldest first.
func (s *Store) Log() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.idx.log)
}

// Snapshot returns the current state in durable form.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.snapshot(s.opts.MaxLogEntries)
}

// Warning returns the non-fatal error raised while loading, if any.
func (s *Store) Warning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warning
}

// Persistent reports whether Flush writes to durable storage.
func (s *Store) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistent
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		InstanceID:     s.idx.instanceID,
		Persistent:     s.persistent,
		LogEntries:     len(s.idx.log),
		Pending:        len(s.pending),
		TotalLearnings: s.idx.totalLearnings,
		UpdatesPushed:  s.idx.updatesPushed,
		Dirty:          s.idx.dirty,
		SavedAt:        s.idx.savedAt,
	}
	if s.backend != nil {
		st.Backend = s.backend.Name()
		st.Path = s.backend.Path()
	}
	if s.warning != nil {
		st.Warning = s.warning.Error()
	}
	for _, r := range s.idx.records {
		switch r.Kind {
		case KindCorrection:
			st.Corrections++
		case KindOptimization:
			st.Optimizations++
		case KindTemplate:
			st.Templates++
		case KindObservation:
			st.Observations++
		}
	}
	return st
}

func (s *Store) query(keep func(*Record) bool, order func(a, b Record) int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.idx.sorted(keep)
	if order != nil {
		slices.SortStableFunc(out, order)
	}
	return out
}

func byRank(a, b Record) int {
	return cmp.Or(
		cmp.Compare(b.Confidence, a.Confidence),
		cmp.Compare(b.Frequency, a.Frequency),
		cmp.Compare(a.Seq, b.Seq),
	)
}

// Flush writes pending mutations to durable storage. Under the snapshot
// lock it re-reads the stored snapshot, replays the pending operations onto
// it and saves the result, which then becomes the live state.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.persistent || len(s.pending) == 0 {
		return nil
	}

	unlock, err := s.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	base, err := s.durable(ctx)
	if err != nil {
		return err
	}

	base.savedAt = s.opts.Now().UTC()
	snap := base.snapshot(s.opts.MaxLogEntries)
	if err := s.backend.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save memory snapshot: %w", err)
	}

	s.logger.Debug("flushed memory snapshot",
		slog.String("path", s.backend.Path()),
		slog.Int("ops", len(s.pending)),
		slog.Int("records", len(base.records)))
	s.idx = base
	s.pending = nil

	if !s.opts.NoSummary {
		path := filepath.Join(s.opts.Dir, SummaryFileName)
		if err := WriteSummary(path, snap); err != nil {
			s.logger.Warn("failed to write memory summary", slog.String("error", err.Error()))
		}
	}
	return nil
}

// durable returns the stored snapshot with the pending operations replayed
// onto it. If the stored snapshot has become unreadable it is quarantined
// and the live state is written instead.
func (s *Store) durable(ctx context.Context) (*index, error) {
	snap, err := s.backend.Load(ctx)
	var corrupt *CorruptionError
	switch {
	case errors.As(err, &corrupt):
		if dst, qerr := s.backend.Quarantine(); qerr == nil {
			corrupt.QuarantinedTo = dst
		}
		s.logger.Warn("memory snapshot is corrupt, overwriting with session state", slog.String("error", corrupt.Error()))
		return s.idx.clone(), nil
	case err != nil:
		return nil, err
	}

	base := newIndex(s.idx.instanceID)
	if snap != nil {
		base = fromSnapshot(snap)
		if base.instanceID == "" {
			base.instanceID = s.idx.instanceID
		}
	}
	for _, o := range s.pending {
		o(base)
	}
	return base, nil
}

// Close flushes pending mutations and releases the backend.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	if errors.Is(flushErr, ErrClosed) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.backend == nil {
		return flushErr
	}
	return errors.Join(flushErr, s.backend.Close())
}
