// Package interp implements the GZ tree-walking evaluator.
//
// A program runs its top-level statements in order and then, if it defines
// a function named main, calls it with no arguments. The exit status is the
// int returned by main (or by a top-level balik), otherwise 0.
//
// Scoping is one global frame plus one frame per active call. Names resolve
// in the local frame, then the global frame, then the builtins; assignment
// inside a function always binds locally.
//
// Runaway programs are stopped by three budgets: call depth, executed steps
// and wall-clock time. They are the only way evaluation is interrupted.
package interp

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/token"
)

// Default limits.
const (
	DefaultMaxCallDepth = 1000
	DefaultMaxSteps     = 10_000_000
	DefaultTimeout      = 10 * time.Second

	// clockCheckInterval is how many steps pass between wall-clock checks.
	clockCheckInterval = 1024
)

// Options configures an Interpreter.
type Options struct {
	MaxCallDepth int
	MaxSteps     int64
	Timeout      time.Duration
	Stdout       io.Writer
	Logger       *slog.Logger
}

// DefaultOptions returns the default limits writing to os.Stdout.
func DefaultOptions() Options {
	return Options{
		MaxCallDepth: DefaultMaxCallDepth,
		MaxSteps:     DefaultMaxSteps,
		Timeout:      DefaultTimeout,
		Stdout:       os.Stdout,
	}
}

// Interpreter evaluates programs. Successive calls to Exec share the global
// frame, which is what the REPL relies on. An Interpreter is not safe for
// concurrent use.
type Interpreter struct {
	opts     Options
	logger   *slog.Logger
	globals  *frame
	builtins map[string]*Builtin

	ctx      context.Context
	depth    int
	steps    int64
	started  time.Time
	deadline time.Time
}

// frame holds the variables of one scope.
type frame struct {
	vars map[string]Value
}

func newFrame() *frame {
	return &frame{vars: make(map[string]Value)}
}

// callInfo is passed to builtins.
type callInfo struct {
	pos token.Position
}

// signal is the control outcome of executing a statement.
type signal int

const (
	sigNormal signal = iota
	sigReturn
	sigBreak
	sigContinue
)

// New creates an Interpreter. Zero-valued options fall back to the defaults.
func New(opts Options) *Interpreter {
	def := DefaultOptions()
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = def.MaxCallDepth
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = def.MaxSteps
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Stdout == nil {
		opts.Stdout = def.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	in := &Interpreter{
		opts:    opts,
		logger:  logger,
		globals: newFrame(),
	}
	in.builtins = newBuiltins()
	return in
}

// Run executes prog and returns its exit status.
func (in *Interpreter) Run(ctx context.Context, prog *ast.Program) (int, error) {
	in.begin(ctx)

	sig, val, err := in.execBlock(prog.Statements, in.globals)
	if err != nil {
		return 1, err
	}
	if sig == sigReturn {
		in.logger.Debug("program returned at top level", slog.String("value", val.String()))
		return exitStatus(val), nil
	}

	mainFn, ok := in.globals.vars["main"].(*Function)
	if !ok {
		return 0, nil
	}
	in.logger.Debug("calling main")
	val, err = in.callFunction(mainFn, nil, mainFn.Decl.Pos)
	if err != nil {
		return 1, err
	}
	return exitStatus(val), nil
}

// Exec executes prog against the persistent global frame without calling
// main. It returns the value of the final statement when that statement is
// an expression, else nil.
func (in *Interpreter) Exec(ctx context.Context, prog *ast.Program) (Value, error) {
	in.begin(ctx)

	var last Value
	for _, stmt := range prog.Statements {
		last = nil
		if es, ok := stmt.(*ast.ExprStmt); ok {
			v, err := in.eval(es.X, in.globals)
			if err != nil {
				return nil, err
			}
			last = v
			continue
		}
		sig, _, err := in.exec(stmt, in.globals)
		if err != nil {
			return nil, err
		}
		if sig == sigReturn {
			return nil, nil
		}
	}
	return last, nil
}

// Global returns a global variable.
func (in *Interpreter) Global(name string) (Value, bool) {
	v, ok := in.globals.vars[name]
	return v, ok
}

// Steps returns the number of steps executed by the last Run or Exec.
func (in *Interpreter) Steps() int64 {
	return in.steps
}

func (in *Interpreter) begin(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	in.ctx = ctx
	in.depth = 0
	in.steps = 0
	in.started = time.Now()
	in.deadline = in.started.Add(in.opts.Timeout)
}

// tick accounts for one step and enforces the step and time budgets.
func (in *Interpreter) tick(pos token.Position) error {
	in.steps++
	if in.steps > in.opts.MaxSteps {
		return NewTimeoutError(pos, "step budget exhausted", in.steps, time.Since(in.started))
	}
	if in.steps%clockCheckInterval == 0 {
		if time.Now().After(in.deadline) {
			return NewTimeoutError(pos, "time budget exhausted", in.steps, time.Since(in.started))
		}
		if err := in.ctx.Err(); err != nil {
			return NewTimeoutError(pos, err.Error(), in.steps, time.Since(in.started))
		}
	}
	return nil
}

// lookup resolves a name in the local frame, the global frame and the
// builtins, in that order.
func (in *Interpreter) lookup(name string, local *frame) (Value, bool) {
	if v, ok := local.vars[name]; ok {
		return v, true
	}
	if local != in.globals {
		if v, ok := in.globals.vars[name]; ok {
			return v, true
		}
	}
	if b, ok := in.builtins[name]; ok {
		return b, true
	}
	return nil, false
}

func (in *Interpreter) write(s string) error {
	_, err := io.WriteString(in.opts.Stdout, s)
	return err
}

// exitStatus converts a returned value into a process status.
func exitStatus(v Value) int {
	if i, ok := v.(Int); ok {
		return int(i)
	}
	return 0
}
