package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(pattern, replacement string) Record {
	return Record{Kind: KindCorrection, Pattern: pattern, Replacement: replacement, Confidence: 0.5}
}

func openStore(t *testing.T, dir, backend string) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Dir: dir, Backend: backend})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestUpsertReinforces(t *testing.T) {
	s := NewInMemory(Options{NoDefaults: true})

	first := s.Upsert(rule(`a`, `b`))
	assert.Equal(t, int64(1), first.Frequency)
	assert.Equal(t, 0.5, first.Confidence)

	second := s.Upsert(rule(`a`, `b`))
	assert.Equal(t, int64(2), second.Frequency)
	assert.Greater(t, second.Confidence, first.Confidence)
	assert.LessOrEqual(t, second.Confidence, 1.0)
	assert.Equal(t, first.Seq, second.Seq)

	assert.Len(t, s.CorrectionRules(), 1, "duplicates are merged by signature")
}

func TestReinforceSaturates(t *testing.T) {
	p := DefaultRateParams()
	c := 0.0
	for n := int64(1); n <= 1000; n++ {
		next := p.Reinforce(c, n)
		require.GreaterOrEqual(t, next, c)
		require.LessOrEqual(t, next, 1.0)
		c = next
	}
	assert.InDelta(t, 1.0, c, 1e-9)
	assert.Equal(t, p.MaxRate, p.Rate(p.Horizon))
	assert.Equal(t, p.Rate(p.Horizon), p.Rate(p.Horizon*10))
	assert.InDelta(t, p.BaseRate, p.Rate(0), 1e-12)
}

func TestImportAddsFrequency(t *testing.T) {
	s := NewInMemory(Options{NoDefaults: true})
	s.Upsert(rule(`a`, `b`))

	r := rule(`a`, `b`)
	r.Frequency = 4
	added := s.Import([]Record{r, rule(`c`, `d`)})
	assert.Equal(t, 1, added)

	ab := rule(`a`, `b`)
	got, ok := s.Get(ab.Signature())
	require.True(t, ok)
	assert.Equal(t, int64(5), got.Frequency)
	assert.Len(t, s.CorrectionRules(), 2)
}

func TestDefaultsAreSeededOnce(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, BackendJSON)
	st := s.Stats()
	assert.Equal(t, len(defaultCorrections), st.Corrections)
	assert.Equal(t, len(defaultOptimizations), st.Optimizations)
	assert.Equal(t, 3, st.Templates)
	require.NoError(t, s.Close(context.Background()))

	again := openStore(t, dir, BackendJSON)
	assert.Equal(t, st.Corrections, again.Stats().Corrections)
	assert.Zero(t, again.Stats().Pending, "seeding a seeded store queues nothing")
}

func TestRuleOrdering(t *testing.T) {
	s := NewInMemory(Options{NoDefaults: true})
	low := rule(`low`, ``)
	low.Confidence = 0.2
	high := rule(`high`, ``)
	high.Confidence = 0.9
	tie1 := rule(`tie1`, ``)
	tie2 := rule(`tie2`, ``)
	s.Import([]Record{low, tie1, tie2, high})
	s.Upsert(tie2)
	s.Upsert(tie2)

	var order []string
	for _, r := range s.CorrectionRules() {
		order = append(order, r.Pattern)
	}
	require.Len(t, order, 4)
	assert.Equal(t, "high", order[0])
	assert.Equal(t, "low", order[3])
}

func TestOptimizationLevels(t *testing.T) {
	s := NewInMemory(Options{})
	learned := Record{Kind: KindOptimization, Pattern: `x`, Replacement: `y`}
	s.Upsert(learned)

	assert.Empty(t, s.OptimizationRules(0))
	for _, r := range s.OptimizationRules(1) {
		assert.Equal(t, 1, r.Level)
	}
	assert.Greater(t, len(s.OptimizationRules(2)), len(s.OptimizationRules(1)))
	assert.Len(t, s.OptimizationRules(3), len(defaultOptimizations)+1)
}

func TestLearnCountsAndMarkPushed(t *testing.T) {
	s := NewInMemory(Options{NoDefaults: true})
	for i := 0; i < 5; i++ {
		s.Learn(LogCodeSample, map[string]string{"source": "x.gz"})
	}
	assert.Equal(t, int64(5), s.Dirty())
	assert.Len(t, s.Log(), 5)

	s.MarkPushed(3)
	st := s.Stats()
	assert.Equal(t, int64(2), st.Dirty)
	assert.Equal(t, int64(1), st.UpdatesPushed)
	assert.Equal(t, int64(5), st.TotalLearnings)

	s.MarkPushed(10)
	assert.Zero(t, s.Dirty())
}

func TestMergeLaw(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	shared := rule(`a`, `b`)

	local := NewInMemory(Options{NoDefaults: true, Now: func() time.Time { return ts }})
	l := shared
	l.Frequency, l.Confidence = 3, 0.9
	local.Import([]Record{l, rule(`only-local`, ``)})
	local.Learn(LogCodeSample, map[string]string{"source": "a"})

	remote := NewInMemory(Options{NoDefaults: true, Now: func() time.Time { return ts }})
	r := shared
	r.Frequency, r.Confidence = 1, 0.1
	remote.Import([]Record{r, rule(`only-remote`, ``)})
	remote.Learn(LogCodeSample, map[string]string{"source": "a"})
	remote.Learn(LogCodeSample, map[string]string{"source": "b"})

	local.Merge(remote.Snapshot())

	got, ok := local.Get(shared.Signature())
	require.True(t, ok)
	assert.Equal(t, int64(4), got.Frequency)
	assert.InDelta(t, (3*0.9+1*0.1)/4, got.Confidence, 1e-12)
	assert.GreaterOrEqual(t, got.Confidence, 0.1)
	assert.LessOrEqual(t, got.Confidence, 0.9)

	assert.Len(t, local.CorrectionRules(), 3)
	assert.Len(t, local.Log(), 2, "identical log entries are deduplicated")
	assert.Equal(t, int64(2), local.Stats().TotalLearnings)
}

func TestMergeZeroFrequencies(t *testing.T) {
	a := NewInMemory(Options{NoDefaults: true})
	x := rule(`z`, ``)
	x.Confidence = 0.2
	a.Import([]Record{x})

	b := NewInMemory(Options{NoDefaults: true})
	y := rule(`z`, ``)
	y.Confidence = 0.6
	b.Import([]Record{y})

	a.Merge(b.Snapshot())
	got, ok := a.Get(x.Signature())
	require.True(t, ok)
	assert.Zero(t, got.Frequency)
	assert.InDelta(t, 0.4, got.Confidence, 1e-12)
}

func TestFlushReplaysConcurrentUpdates(t *testing.T) {
	for _, backend := range []string{BackendJSON, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()

			a := openStore(t, dir, backend)
			b := openStore(t, dir, backend)

			a.Upsert(rule(`a`, `b`))
			a.Learn(LogCorrectionEvent, map[string]string{"rule": "a"})
			b.Upsert(rule(`a`, `b`))
			b.Upsert(rule(`c`, `d`))
			b.Learn(LogCorrectionEvent, map[string]string{"rule": "c"})

			require.NoError(t, a.Flush(ctx))
			require.NoError(t, b.Flush(ctx))

			c := openStore(t, dir, backend)
			ab := rule(`a`, `b`)
			got, ok := c.Get(ab.Signature())
			require.True(t, ok)
			assert.Equal(t, int64(2), got.Frequency, "neither process loses the other's update")
			cd := rule(`c`, `d`)
			_, ok = c.Get(cd.Signature())
			assert.True(t, ok)
			assert.Equal(t, int64(2), c.Stats().TotalLearnings)
			assert.Len(t, c.Log(), 2)
		})
	}
}

func TestFlushWritesSummary(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, BackendJSON)
	s.Learn(LogCodeSample, map[string]string{"source": "hello.gz"})
	require.NoError(t, s.Flush(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, SummaryFileName))
	require.NoError(t, err)
	summary := string(data)
	assert.Contains(t, summary, "## Correction rules")
	assert.Contains(t, summary, "hello_world")
	assert.Contains(t, summary, "source=hello.gz")
}

func TestLogIsCappedWhenPersisted(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), Options{Dir: dir, MaxLogEntries: 3, NoDefaults: true})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s.Learn(LogCodeSample, map[string]string{"n": strings.Repeat("x", i)})
	}
	require.NoError(t, s.Close(context.Background()))

	snap, err := NewFileBackend(filepath.Join(dir, JSONFileName)).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Log, 3)
	assert.Equal(t, "xx", snap.Log[0].Payload["n"])
	assert.Equal(t, int64(5), snap.TotalLearnings)
}

func TestCorruptSnapshotIsQuarantined(t *testing.T) {
	for _, backend := range []string{BackendJSON, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			name := JSONFileName
			if backend == BackendSQLite {
				name = SQLiteFileName
			}
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte("{not a snapshot"), 0o644))

			s := openStore(t, dir, backend)
			var corrupt *CorruptionError
			require.ErrorAs(t, s.Warning(), &corrupt)
			assert.False(t, s.Persistent())
			assert.NotEmpty(t, corrupt.QuarantinedTo)
			assert.FileExists(t, corrupt.QuarantinedTo)
			assert.NoFileExists(t, path)

			assert.NotEmpty(t, s.CorrectionRules(), "defaults are still available")
			s.Upsert(rule(`a`, `b`))
			require.NoError(t, s.Flush(context.Background()))
			assert.NoFileExists(t, path, "a quarantined session is never written back")
		})
	}
}

func TestDeserializeRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", `{"version":1,"records":[{"kind":"mystery"}]}`},
		{"confidence out of range", `{"version":1,"records":[{"kind":"correction_rule","confidence":1.5}]}`},
		{"negative frequency", `{"version":1,"records":[{"kind":"code_template","frequency":-1}]}`},
		{"future version", `{"version":99}`},
		{"not json", `[`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLockTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	holder := NewFileLock(path, time.Second)
	unlock, err := holder.Lock(context.Background())
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	other := NewFileLock(path, 50*time.Millisecond)
	_, err = other.Lock(context.Background())
	require.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, unlock())
	unlock2, err := other.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock2())
}

func TestReadPack(t *testing.T) {
	pack := `
correction_rules:
  - name: tabs
    pattern: '\t+$'
    replacement: ''
    explanation: No trailing tabs
optimization_rules:
  - name: double
    pattern: '^(\s*)(\w+) = \2 \* 2$'
    replacement: '$1$2 *= 2'
    level: 2
templates:
  - name: greet
    description: Greet the user
    code: |
      simula main
          sulat "hi"
`
	records, err := ReadPack(strings.NewReader(pack))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, KindCorrection, records[0].Kind)
	assert.Equal(t, KindOptimization, records[1].Kind)
	assert.Equal(t, 2, records[1].Level)
	assert.Equal(t, KindTemplate, records[2].Kind)

	s := NewInMemory(Options{NoDefaults: true})
	assert.Equal(t, 3, s.Import(records))
}

func TestReadPackRejectsBadPattern(t *testing.T) {
	_, err := ReadPack(strings.NewReader("correction_rules:\n  - pattern: '(unclosed'\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")

	_, err = ReadPack(strings.NewReader("surprise: 1\n"))
	assert.Error(t, err)
}
