package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/rewrite"
	"github.com/leapstack-labs/gz/internal/testutil"
	"github.com/leapstack-labs/gz/pkg/interp"
	"github.com/leapstack-labs/gz/pkg/parser"
	"github.com/leapstack-labs/gz/pkg/token"
)

// countingStore counts flushes and can be made to fail them.
type countingStore struct {
	*memory.Store
	flushes int
	failing bool
}

func (s *countingStore) Flush(ctx context.Context) error {
	if s.failing {
		return errors.New("disk full")
	}
	s.flushes++
	return s.Store.Flush(ctx)
}

func newRecorder(t *testing.T, opts Options) (*Recorder, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memory.NewInMemory(memory.Options{NoDefaults: true})}
	opts.Logger = testutil.NewTestLogger(t)
	return New(store, opts), store
}

func observations(s *countingStore, category string) map[string]int64 {
	out := make(map[string]int64)
	for _, r := range s.Observations() {
		if r.Category == category {
			out[r.Value] = r.Frequency
		}
	}
	return out
}

func TestObserveProgram(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	prog, err := parser.Parse(`simula add a b
    balik a + b
total = 0
para i 1 3
    total += add(i, 1)
kung total > 5
    sulat total
habang mali
    tigil
`)
	require.NoError(t, err)

	rec.ObserveProgram(context.Background(), "sum.gz", prog)

	assert.Equal(t, map[string]int64{"simula add a b": 1}, observations(store, CategoryFunction))
	assert.Equal(t, map[string]int64{"total =": 1, "total +=": 1}, observations(store, CategoryAssignment))
	assert.Equal(t, map[string]int64{"i": 1}, observations(store, CategoryLoopVar))
	assert.Equal(t, map[string]int64{"total > 5": 1, "mali": 1}, observations(store, CategoryConditional))

	for _, r := range store.Observations() {
		assert.Equal(t, "sum.gz", r.Source)
	}
	log := store.Log()
	require.Len(t, log, 1)
	assert.Equal(t, memory.LogSyntaxPattern, log[0].Kind)
	assert.Equal(t, "2", log[0].Payload[CategoryAssignment])
}

func TestRepeatedObservationsAccumulate(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	prog, err := parser.Parse("x = 1\n")
	require.NoError(t, err)

	rec.ObserveProgram(context.Background(), "a.gz", prog)
	rec.ObserveProgram(context.Background(), "a.gz", prog)
	assert.Equal(t, map[string]int64{"x =": 2}, observations(store, CategoryAssignment))
}

func TestObserveParseErrors(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	_, err := parser.ParseTolerant("x = \ny = 1\nz = \n")
	require.Error(t, err)

	rec.ObserveParseErrors(context.Background(), "bad.gz", err)
	got := observations(store, CategorySyntaxError)
	require.Len(t, got, 1, "the same mistake on two lines is one observation")
	for _, n := range got {
		assert.Equal(t, int64(2), n)
	}
}

func TestRewriteEventsAreLogged(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	engine := rewrite.New(memory.NewInMemory(memory.Options{}), rewrite.Options{})
	rec.Attach(engine)

	_, _, err := engine.Correct("x = 1;\n")
	require.NoError(t, err)
	_, _, err = engine.Optimize("x = 1\nx = x + 1\n", rewrite.LevelAll)
	require.NoError(t, err)

	log := store.Log()
	require.Len(t, log, 2)
	assert.Equal(t, memory.LogCorrectionEvent, log[0].Kind)
	assert.Equal(t, "semicolons", log[0].Payload["rule"])
	assert.Equal(t, "x = 1;\n", log[0].Payload["before"])
	assert.Equal(t, "x = 1\n", log[0].Payload["after"])

	assert.Equal(t, memory.LogOptimizationEvent, log[1].Kind)
	assert.Equal(t, "2", log[1].Payload["line"])
	assert.Equal(t, "x += 1", log[1].Payload["after"])
	assert.Equal(t, int64(2), store.Dirty())
}

func TestFlushAfterCount(t *testing.T) {
	rec, store := newRecorder(t, Options{FlushEvery: 3, FlushInterval: time.Hour})
	ctx := context.Background()

	rec.ObserveGeneration(ctx, "p1", memory.Record{Name: "t"}, false)
	rec.ObserveGeneration(ctx, "p2", memory.Record{Name: "t"}, false)
	assert.Zero(t, store.flushes)
	rec.ObserveGeneration(ctx, "p3", memory.Record{Name: "t"}, false)
	assert.Equal(t, 1, store.flushes)

	rec.ObserveGeneration(ctx, "p4", memory.Record{Name: "t"}, false)
	assert.Equal(t, 1, store.flushes, "the counter restarts after a flush")

	require.NoError(t, rec.Close(ctx))
	assert.Equal(t, 2, store.flushes)
}

func TestFlushAfterInterval(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, store := newRecorder(t, Options{
		FlushEvery:    100,
		FlushInterval: time.Minute,
		Now:           func() time.Time { return now },
	})
	ctx := context.Background()

	rec.ObserveGeneration(ctx, "p", memory.Record{Name: "t"}, false)
	assert.Zero(t, store.flushes)

	now = now.Add(2 * time.Minute)
	rec.ObserveGeneration(ctx, "p", memory.Record{Name: "t"}, false)
	assert.Equal(t, 1, store.flushes)
}

func TestFailedFlushIsDeferred(t *testing.T) {
	rec, store := newRecorder(t, Options{FlushEvery: 1})
	store.failing = true
	rec.ObserveGeneration(context.Background(), "p", memory.Record{Name: "t"}, false)
	assert.Zero(t, store.flushes)
	assert.Equal(t, int64(1), store.Dirty(), "the learning is kept for the next flush")

	store.failing = false
	rec.ObserveGeneration(context.Background(), "p", memory.Record{Name: "t"}, false)
	assert.Equal(t, 1, store.flushes)
}

func TestObserveGenerationReinforcesTemplate(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	tmpl := memory.Record{Kind: memory.KindTemplate, Name: "hello", Code: "simula main\n", Confidence: 0.5}
	store.Import([]memory.Record{tmpl})

	rec.ObserveGeneration(context.Background(), "say hello", tmpl, true)
	got, ok := store.Get(tmpl.Signature())
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Frequency)
	assert.Equal(t, "say hello", store.Log()[0].Payload["prompt"])
}

func TestLearnSample(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	err := rec.LearnSample(context.Background(), "sample.gz", "x = 1\ny = \n")
	require.Error(t, err)

	log := store.Log()
	require.NotEmpty(t, log)
	assert.Equal(t, memory.LogCodeSample, log[0].Kind)
	assert.Equal(t, "false", log[0].Payload["parsed"])
	assert.Contains(t, observations(store, CategoryAssignment), "x =")
	assert.NotEmpty(t, observations(store, CategorySyntaxError))
}

func TestImportRulesLogsOptimizationRules(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	added := rec.ImportRules(context.Background(), []memory.Record{
		{Kind: memory.KindOptimization, Name: "double", Pattern: `a`, Replacement: `b`, Level: 2},
		{Kind: memory.KindCorrection, Pattern: `c`, Replacement: `d`},
	})
	assert.Equal(t, 2, added)
	log := store.Log()
	require.Len(t, log, 1)
	assert.Equal(t, memory.LogOptimizationRule, log[0].Kind)
	assert.Equal(t, "double", log[0].Payload["rule"])
}

func TestObserveRun(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	ctx := context.Background()

	rec.ObserveRun(ctx, "ok.gz", RunOutcome{Status: 0, Steps: 12, Elapsed: 3 * time.Millisecond})
	rec.ObserveRun(ctx, "bad.gz", RunOutcome{Status: 70, Steps: 4, Err: interp.NewNameError(token.Position{Line: 2, Column: 7}, "y")})
	rec.ObserveRun(ctx, "bad.gz", RunOutcome{Status: 70, Steps: 9, Err: interp.NewNameError(token.Position{Line: 5, Column: 1}, "z")})
	rec.ObserveRun(ctx, "div.gz", RunOutcome{Status: 70, Err: interp.NewRuntimeErrorf(token.Position{Line: 1, Column: 1}, "division by zero")})

	log := store.Log()
	require.Len(t, log, 4)
	assert.Equal(t, memory.LogCodeSample, log[0].Kind)
	assert.Equal(t, map[string]string{
		"source":      "ok.gz",
		"event":       EventExecution,
		"success":     "true",
		"status":      "0",
		"steps":       "12",
		"duration_ms": "3",
	}, log[0].Payload)
	assert.Equal(t, "false", log[1].Payload["success"])
	assert.Equal(t, "name error", log[1].Payload["error_class"])

	assert.Equal(t, map[string]int64{"name error": 2, "runtime error": 1}, observations(store, CategoryRuntimeError))

	ex := Executions(log)
	assert.Equal(t, 4, ex.Runs)
	assert.Equal(t, 1, ex.Succeeded)
	assert.Equal(t, 3, ex.Failed)
	assert.Equal(t, map[string]int{"name error": 2, "runtime error": 1}, ex.Errors)
	assert.InDelta(t, 0.25, ex.SuccessRate(), 1e-9)
}

func TestExecutionsIgnoresOtherSamples(t *testing.T) {
	rec, store := newRecorder(t, Options{})
	require.Error(t, rec.LearnSample(context.Background(), "sample.gz", "y = \n"))

	ex := Executions(store.Log())
	assert.Zero(t, ex.Runs)
	assert.Zero(t, ex.SuccessRate())
}
