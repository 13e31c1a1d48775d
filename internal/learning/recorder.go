// Package learning records what the pipeline observes into the collective
// memory: rewrite events, syntax pattern observations from parsed programs,
// parse errors, code samples, run outcomes and template generations.
//
// Writes to durable storage are throttled. The recorder flushes the store
// after a number of new records or after an interval, whichever comes
// first, and once more on Close.
package learning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/rewrite"
	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/interp"
	"github.com/leapstack-labs/gz/pkg/parser"
)

// Default flush throttle.
const (
	DefaultFlushEvery    = 20
	DefaultFlushInterval = 60 * time.Second
)

// Observation categories.
const (
	CategoryFunction     = "function_definition"
	CategoryAssignment   = "variable_assignment"
	CategoryLoopVar      = "loop_variable"
	CategoryConditional  = "conditional"
	CategorySyntaxError  = "syntax_error"
	CategoryRuntimeError = "runtime_error"
)

// EventExecution marks the code_sample log entries written by ObserveRun.
const EventExecution = "execution"

// Store is the part of the collective memory the recorder writes to.
type Store interface {
	Upsert(r memory.Record) memory.Record
	Observe(category, value, source string) memory.Record
	Learn(kind memory.LogKind, payload map[string]string)
	Import(records []memory.Record) int
	Flush(ctx context.Context) error
}

// Options configures a Recorder.
type Options struct {
	FlushEvery    int
	FlushInterval time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Recorder turns pipeline outcomes into memory records. It is safe for
// concurrent use.
type Recorder struct {
	store  Store
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	unflushed int
	lastFlush time.Time
}

// New creates a Recorder writing to store.
func New(store Store, opts Options) *Recorder {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		store:     store,
		opts:      opts,
		logger:    logger,
		lastFlush: opts.Now(),
	}
}

// Attach subscribes the recorder to an engine's rewrite events.
func (r *Recorder) Attach(e *rewrite.Engine) {
	e.Subscribe(r.OnChange)
}

// OnChange logs a correction or optimization event.
func (r *Recorder) OnChange(c rewrite.Change) {
	payload := map[string]string{
		"rule":        c.Rule.Label(),
		"explanation": c.Rule.Explanation,
		"count":       strconv.Itoa(c.Count),
		"before":      c.Before,
		"after":       c.After,
	}
	kind := memory.LogCorrectionEvent
	if c.Kind == rewrite.KindOptimization {
		kind = memory.LogOptimizationEvent
		payload["line"] = strconv.Itoa(c.Line)
	}
	r.store.Learn(kind, payload)
	r.recorded(context.Background(), 1)
}

// ObserveProgram records a syntax pattern observation for every function
// definition, assignment, loop variable and conditional in prog.
func (r *Recorder) ObserveProgram(ctx context.Context, source string, prog *ast.Program) {
	if prog == nil {
		return
	}
	counts := make(map[string]int)
	observe := func(category, value string) {
		r.store.Observe(category, value, source)
		counts[category]++
	}

	ast.Walk(prog, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.FunctionDecl:
			observe(CategoryFunction, strings.TrimSpace("simula "+s.Name+" "+strings.Join(s.Params, " ")))
		case *ast.Assignment:
			observe(CategoryAssignment, s.Target.String()+" "+s.Op)
		case *ast.ForRange:
			observe(CategoryLoopVar, s.Var)
		case *ast.If:
			observe(CategoryConditional, s.Cond.String())
		case *ast.While:
			observe(CategoryConditional, s.Cond.String())
		}
		return true
	})

	total := 0
	payload := map[string]string{"source": source}
	for category, n := range counts {
		payload[category] = strconv.Itoa(n)
		total += n
	}
	if total == 0 {
		return
	}
	r.store.Learn(memory.LogSyntaxPattern, payload)
	r.recorded(ctx, total+1)
}

// ObserveParseErrors records the errors of a tolerant parse. err is the
// error returned by parser.ParseTolerant.
func (r *Recorder) ObserveParseErrors(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}
	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	}
	for _, e := range errs {
		r.store.Observe(CategorySyntaxError, describe(e), source)
	}
	r.recorded(ctx, len(errs))
}

// describe returns a position-free description of a parse error, so the
// same mistake on different lines is one observation.
func describe(err error) string {
	var syn *parser.SyntaxError
	if errors.As(err, &syn) {
		if syn.Message != "" {
			return syn.Message
		}
		return "expected " + syn.Expected + ", found " + syn.Found
	}
	var lex *parser.LexError
	if errors.As(err, &lex) {
		return lex.Message
	}
	return err.Error()
}

// LearnSample records a code sample: a code_sample log entry plus the
// observations of whatever part of it parses.
func (r *Recorder) LearnSample(ctx context.Context, source, src string) error {
	prog, perr := parser.ParseTolerant(src)

	r.store.Learn(memory.LogCodeSample, map[string]string{
		"source": source,
		"lines":  strconv.Itoa(strings.Count(src, "\n") + 1),
		"parsed": strconv.FormatBool(perr == nil),
	})
	r.recorded(ctx, 1)
	r.ObserveProgram(ctx, source, prog)
	r.ObserveParseErrors(ctx, source, perr)
	return perr
}

// RunOutcome is how one program run ended.
type RunOutcome struct {
	Status  int
	Steps   int64
	Elapsed time.Duration
	// Err is the evaluation error, nil when the program finished.
	Err error
}

// ObserveRun records a program run: a code_sample log entry with the
// outcome and, for a failed run, a runtime_error observation of the error
// class.
func (r *Recorder) ObserveRun(ctx context.Context, source string, out RunOutcome) {
	payload := map[string]string{
		"source":      source,
		"event":       EventExecution,
		"success":     strconv.FormatBool(out.Err == nil),
		"status":      strconv.Itoa(out.Status),
		"steps":       strconv.FormatInt(out.Steps, 10),
		"duration_ms": strconv.FormatInt(out.Elapsed.Milliseconds(), 10),
	}
	n := 1
	if out.Err != nil {
		class := errorClass(out.Err)
		payload["error_class"] = class
		r.store.Observe(CategoryRuntimeError, class, source)
		n++
	}
	r.store.Learn(memory.LogCodeSample, payload)
	r.recorded(ctx, n)
}

func errorClass(err error) string {
	var evalErr interp.Error
	if errors.As(err, &evalErr) {
		return evalErr.Class()
	}
	return "error"
}

// ExecutionStats summarizes the runs recorded by ObserveRun.
type ExecutionStats struct {
	Runs      int
	Succeeded int
	Failed    int
	// Errors counts failed runs per error class.
	Errors map[string]int
}

// SuccessRate is the share of runs that finished, 0 when nothing ran.
func (s ExecutionStats) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Runs)
}

// Executions collects the run outcomes in log.
func Executions(log []memory.LogEntry) ExecutionStats {
	st := ExecutionStats{Errors: make(map[string]int)}
	for _, e := range log {
		if e.Kind != memory.LogCodeSample || e.Payload["event"] != EventExecution {
			continue
		}
		st.Runs++
		if e.Payload["success"] == "true" {
			st.Succeeded++
			continue
		}
		st.Failed++
		st.Errors[e.Payload["error_class"]]++
	}
	return st
}

// ObserveGeneration records a template generation request. A matched
// template is reinforced.
func (r *Recorder) ObserveGeneration(ctx context.Context, prompt string, tmpl memory.Record, matched bool) {
	if matched {
		r.store.Upsert(tmpl)
	}
	r.store.Learn(memory.LogCodeSample, map[string]string{
		"source":   "generate",
		"prompt":   prompt,
		"template": tmpl.Name,
		"matched":  strconv.FormatBool(matched),
	})
	r.recorded(ctx, 1)
}

// ImportRules bulk-loads records and logs each new optimization rule.
func (r *Recorder) ImportRules(ctx context.Context, records []memory.Record) int {
	added := r.store.Import(records)
	n := 0
	for _, rec := range records {
		if rec.Kind != memory.KindOptimization {
			continue
		}
		r.store.Learn(memory.LogOptimizationRule, map[string]string{
			"rule":        rec.Label(),
			"pattern":     rec.Pattern,
			"replacement": rec.Replacement,
		})
		n++
	}
	r.recorded(ctx, added+n)
	return added
}

// recorded counts n new records and flushes when the throttle allows.
func (r *Recorder) recorded(ctx context.Context, n int) {
	r.mu.Lock()
	r.unflushed += n
	due := r.unflushed >= r.opts.FlushEvery || r.opts.Now().Sub(r.lastFlush) >= r.opts.FlushInterval
	r.mu.Unlock()

	if due {
		if err := r.Flush(ctx); err != nil {
			r.logger.Warn("deferred memory flush", slog.String("error", err.Error()))
		}
	}
}

// Flush writes the store now. On failure the records stay pending.
func (r *Recorder) Flush(ctx context.Context) error {
	if err := r.store.Flush(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.unflushed = 0
	r.lastFlush = r.opts.Now()
	r.mu.Unlock()
	r.logger.Debug("flushed learnings")
	return nil
}

// Close flushes any remaining records.
func (r *Recorder) Close(ctx context.Context) error {
	return r.Flush(ctx)
}
