// Package rewrite applies the rule store to source text.
//
// The correction pass runs before parsing: every correction rule is applied
// to the whole text until no rule changes it any more. The optimization
// pass runs on source that already parses: rules are tried line by line
// and a rewrite is kept only if the program still parses to an equivalent
// tree.
package rewrite

import (
	"io"
	"log/slog"
	"sync"

	"github.com/dlclark/regexp2"

	"github.com/leapstack-labs/gz/internal/memory"
)

// DefaultMaxPasses bounds the correction fixed-point loop.
const DefaultMaxPasses = 8

// RuleStore is the part of the collective memory the engine uses.
type RuleStore interface {
	CorrectionRules() []memory.Record
	OptimizationRules(level int) []memory.Record
	Upsert(r memory.Record) memory.Record
}

// ChangeKind tells which pass produced a Change.
type ChangeKind string

// Change kinds.
const (
	KindCorrection   ChangeKind = "correction"
	KindOptimization ChangeKind = "optimization"
)

// Change describes one rule firing.
type Change struct {
	Kind ChangeKind
	Rule memory.Record
	// Count is how many times the rule matched.
	Count int
	// Line is the 1-based line of an optimization. Corrections work on the
	// whole text and leave it 0.
	Line int
	// Before and After are the whole text for a correction and the line
	// for an optimization.
	Before string
	After  string
}

// Listener is notified of changes once a pass has completed.
type Listener func(Change)

// Options configures an Engine.
type Options struct {
	MaxPasses int
	Logger    *slog.Logger
}

// Engine runs the correction and optimization passes.
type Engine struct {
	store     RuleStore
	maxPasses int
	logger    *slog.Logger

	mu        sync.Mutex
	listeners []Listener
	compiled  map[string]*regexp2.Regexp
	invalid   map[string]bool
}

// New creates an Engine over store.
func New(store RuleStore, opts Options) *Engine {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:     store,
		maxPasses: opts.MaxPasses,
		logger:    logger,
		compiled:  make(map[string]*regexp2.Regexp),
		invalid:   make(map[string]bool),
	}
}

// Subscribe registers a listener for future changes.
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// publish reinforces each fired rule and then notifies the listeners.
func (e *Engine) publish(changes []Change) {
	e.mu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()

	for _, c := range changes {
		e.store.Upsert(c.Rule)
		for _, l := range listeners {
			l(c)
		}
	}
}

// compile returns the compiled pattern of r, or nil if it does not compile.
// Invalid patterns are reported once.
func (e *Engine) compile(r memory.Record) *regexp2.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()

	if re, ok := e.compiled[r.Pattern]; ok {
		return re
	}
	if e.invalid[r.Pattern] {
		return nil
	}
	re, err := memory.CompilePattern(r.Pattern)
	if err != nil {
		e.invalid[r.Pattern] = true
		e.logger.Warn("skipping rule with invalid pattern",
			slog.String("rule", r.Label()),
			slog.String("error", err.Error()))
		return nil
	}
	e.compiled[r.Pattern] = re
	return re
}

// replace applies a compiled rule to text and reports how often it matched.
// A match timeout counts as no change.
func (e *Engine) replace(re *regexp2.Regexp, r memory.Record, text string) (string, int) {
	out, err := re.Replace(text, r.Replacement, -1, -1)
	if err != nil {
		e.logger.Warn("rule evaluation failed",
			slog.String("rule", r.Label()),
			slog.String("error", err.Error()))
		return text, 0
	}
	if out == text {
		return text, 0
	}
	return out, countMatches(re, text)
}

func countMatches(re *regexp2.Regexp, text string) int {
	n := 0
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		n++
		m, err = re.FindNextMatch(m)
	}
	return max(n, 1)
}
