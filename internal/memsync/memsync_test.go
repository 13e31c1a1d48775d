package memsync

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/testutil"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.Open(context.Background(), memory.Options{
		Dir:        t.TempDir(),
		NoDefaults: true,
		NoSummary:  true,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func rule(pattern string) memory.Record {
	return memory.Record{Kind: memory.KindCorrection, Pattern: pattern, Replacement: "x", Confidence: 0.5}
}

type failingRemote struct {
	pullErr, pushErr error
	pulled           []byte
}

func (r *failingRemote) Pull(context.Context) ([]byte, error) { return r.pulled, r.pullErr }
func (r *failingRemote) Push(context.Context, []byte) error   { return r.pushErr }

// blockingRemote blocks Pull until the context is cancelled.
type blockingRemote struct{}

func (blockingRemote) Pull(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingRemote) Push(context.Context, []byte) error { return nil }

func TestSyncExchangesRecords(t *testing.T) {
	ctx := context.Background()
	remote := NewDirRemote(t.TempDir(), time.Second)

	a := newStore(t)
	a.Upsert(rule("a"))
	a.Learn(memory.LogCorrectionEvent, map[string]string{"rule": "a"})
	require.NoError(t, New(a, remote, Options{Logger: testutil.NewTestLogger(t)}).Sync(ctx))

	assert.Zero(t, a.Dirty())
	assert.Equal(t, int64(1), a.Stats().UpdatesPushed)
	_, err := os.Stat(remote.Path())
	require.NoError(t, err)

	b := newStore(t)
	b.Upsert(rule("b"))
	require.NoError(t, New(b, remote, Options{}).Sync(ctx))

	ra := rule("a")
	_, ok := b.Get(ra.Signature())
	assert.True(t, ok, "b receives a's rule")
	assert.Len(t, b.Log(), 1, "and a's log")

	require.NoError(t, New(a, remote, Options{}).Sync(ctx))
	rb := rule("b")
	_, ok = a.Get(rb.Signature())
	assert.True(t, ok, "a receives b's rule on its next sync")
}

func TestMaybeThreshold(t *testing.T) {
	store := newStore(t)
	s := New(store, NewDirRemote(t.TempDir(), time.Second), Options{Threshold: 2})

	store.Learn(memory.LogCodeSample, map[string]string{"n": "1"})
	assert.False(t, s.Maybe(context.Background(), false))
	assert.NoError(t, s.Wait(time.Second), "nothing to wait for")

	store.Learn(memory.LogCodeSample, map[string]string{"n": "2"})
	assert.True(t, s.Maybe(context.Background(), false))
	require.NoError(t, s.Wait(5*time.Second))
	assert.Zero(t, store.Dirty())

	assert.True(t, s.Maybe(context.Background(), true), "forced")
	require.NoError(t, s.Wait(5*time.Second))
}

func TestSyncIsDetachedFromCallerContext(t *testing.T) {
	store := newStore(t)
	s := New(store, NewDirRemote(t.TempDir(), time.Second), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.Maybe(ctx, true))
	cancel()
	assert.NoError(t, s.Wait(5*time.Second))
}

func TestFailedSyncKeepsDirty(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	store.Learn(memory.LogCodeSample, map[string]string{"n": "1"})

	tests := []struct {
		name   string
		remote *failingRemote
	}{
		{"pull", &failingRemote{pullErr: errors.New("offline")}},
		{"push", &failingRemote{pushErr: errors.New("read-only")}},
		{"corrupt", &failingRemote{pulled: []byte("{not json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(store, tt.remote, Options{}).Sync(ctx)
			require.Error(t, err)
			assert.Equal(t, int64(1), store.Dirty())
		})
	}
}

func TestMaybeReportsFailureOnWait(t *testing.T) {
	store := newStore(t)
	s := New(store, &failingRemote{pullErr: errors.New("offline")}, Options{})
	require.True(t, s.Maybe(context.Background(), true))
	assert.ErrorContains(t, s.Wait(5*time.Second), "offline")
}

func TestWaitTimeout(t *testing.T) {
	s := New(newStore(t), blockingRemote{}, Options{})
	require.True(t, s.Maybe(context.Background(), true))
	assert.False(t, s.Maybe(context.Background(), true), "one sync at a time")
	assert.ErrorIs(t, s.Wait(20*time.Millisecond), ErrWaitTimeout)
}
