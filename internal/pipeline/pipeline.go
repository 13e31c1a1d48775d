// Package pipeline runs a GZ source file through correction, parsing,
// optimization and evaluation, and reports what each stage did.
//
// Only parse and evaluation failures stop a compile. A correction pass
// that does not converge is logged and the source is compiled as written;
// the optimization pass never fails on source that parses.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/leapstack-labs/gz/internal/learning"
	"github.com/leapstack-labs/gz/internal/rewrite"
	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/interp"
	"github.com/leapstack-labs/gz/pkg/parser"
)

// AI levels.
const (
	AINone     = 0
	AICorrect  = 1
	AILearn    = 2
	AIFullSync = 3
)

// Options configures a Pipeline.
type Options struct {
	// AILevel: 0 plain compile, 1 correction, 2 adds optimization and
	// learning, 3 adds remote sync.
	AILevel        int
	NoAutoCorrect  bool
	NoAutoOptimize bool
	// OptLevel is the optimization level, rewrite.LevelNone to LevelAll.
	OptLevel int
	Interp   interp.Options
	Logger   *slog.Logger
}

// Corrects reports whether the correction pass runs.
func (o Options) Corrects() bool {
	return o.AILevel >= AICorrect && !o.NoAutoCorrect
}

// Optimizes reports whether the optimization pass runs.
func (o Options) Optimizes() bool {
	return o.AILevel >= AILearn && !o.NoAutoOptimize && o.OptLevel > rewrite.LevelNone
}

// Learns reports whether outcomes are recorded into the collective memory.
func (o Options) Learns() bool {
	return o.AILevel >= AILearn
}

// Syncs reports whether the collective memory is synced with the remote.
func (o Options) Syncs() bool {
	return o.AILevel >= AIFullSync
}

// Result describes one compile.
type Result struct {
	Name      string
	Original  string
	Corrected string
	Optimized string
	Program   *ast.Program

	Corrections   []rewrite.Change
	Optimizations []rewrite.Change
	// CorrectionErr is the non-fatal error of a correction pass that did
	// not converge.
	CorrectionErr error

	// Status is the program's exit status after Run.
	Status int
}

// Pipeline compiles and runs programs. The engine and recorder may be nil,
// which disables rewriting and learning regardless of the AI level.
type Pipeline struct {
	opts     Options
	engine   *rewrite.Engine
	recorder *learning.Recorder
	logger   *slog.Logger
}

// New creates a Pipeline. When learning is enabled the recorder is
// subscribed to the engine's rewrite events.
func New(opts Options, engine *rewrite.Engine, recorder *learning.Recorder) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !opts.Learns() {
		recorder = nil
	}
	if engine != nil && recorder != nil {
		recorder.Attach(engine)
	}
	return &Pipeline{opts: opts, engine: engine, recorder: recorder, logger: logger}
}

// Options returns the pipeline options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Compile corrects, parses and optimizes src. name identifies the source
// in errors and learning records. On a parse failure the partial Result is
// returned with the error.
func (p *Pipeline) Compile(ctx context.Context, name, src string) (*Result, error) {
	res := &Result{Name: name, Original: src, Corrected: src}

	if p.engine != nil && p.opts.Corrects() {
		corrected, changes, err := p.engine.Correct(src)
		if err != nil {
			res.CorrectionErr = err
			p.logger.Warn("auto-correction skipped", slog.String("file", name), slog.String("error", err.Error()))
		} else {
			res.Corrected = corrected
			res.Corrections = changes
		}
	}
	res.Optimized = res.Corrected

	prog, err := parser.Parse(res.Corrected)
	if err != nil {
		if p.recorder != nil {
			_, tolerant := parser.ParseTolerant(res.Corrected)
			p.recorder.ObserveParseErrors(ctx, name, tolerant)
		}
		return res, fmt.Errorf("%s: %w", name, err)
	}
	res.Program = prog
	if p.recorder != nil {
		p.recorder.ObserveProgram(ctx, name, prog)
	}

	if p.engine != nil && p.opts.Optimizes() {
		p.optimize(res)
	}
	return res, nil
}

func (p *Pipeline) optimize(res *Result) {
	optimized, changes, err := p.engine.Optimize(res.Corrected, p.opts.OptLevel)
	if err != nil {
		p.logger.Warn("optimization skipped", slog.String("file", res.Name), slog.String("error", err.Error()))
		return
	}
	if len(changes) == 0 {
		return
	}
	prog, err := parser.Parse(optimized)
	if err != nil {
		p.logger.Error("optimized source does not parse", slog.String("file", res.Name), slog.String("error", err.Error()))
		return
	}
	res.Optimized = optimized
	res.Optimizations = changes
	res.Program = prog
}

// Run compiles src and evaluates it, writing program output to stdout.
// The exit status is in the Result. When learning is on, the outcome of
// the run is recorded.
func (p *Pipeline) Run(ctx context.Context, name, src string, stdout io.Writer) (*Result, error) {
	res, err := p.Compile(ctx, name, src)
	if err != nil {
		return res, err
	}

	opts := p.opts.Interp
	opts.Stdout = stdout
	opts.Logger = p.logger
	in := interp.New(opts)
	start := time.Now()
	status, err := in.Run(ctx, res.Program)
	if err != nil {
		status = ExitRuntime
	}
	if p.recorder != nil {
		p.recorder.ObserveRun(ctx, name, learning.RunOutcome{
			Status:  status,
			Steps:   in.Steps(),
			Elapsed: time.Since(start),
			Err:     err,
		})
	}
	res.Status = status
	if err != nil {
		return res, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

// Learn records src as a code sample. Parse errors in the sample are
// recorded too and are not returned.
func (p *Pipeline) Learn(ctx context.Context, name, src string) error {
	if p.recorder == nil {
		return errors.New("learning is disabled at this AI level")
	}
	if err := p.recorder.LearnSample(ctx, name, src); err != nil {
		p.logger.Debug("sample does not parse", slog.String("file", name), slog.String("error", err.Error()))
	}
	return nil
}
