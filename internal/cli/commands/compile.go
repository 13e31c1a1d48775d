package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gz/internal/cli/output"
	"github.com/leapstack-labs/gz/internal/generate"
	"github.com/leapstack-labs/gz/internal/pipeline"
	"github.com/leapstack-labs/gz/internal/rewrite"
)

// evolutionRecent is how many learnings --ai-evolution lists.
const evolutionRecent = 20

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	SessionOptions

	Run         bool
	Out         string
	Explain     bool
	Generate    string
	AILearn     string
	AIOptimize  string
	AIStats     bool
	AIEvolution bool
	ForceUpdate bool
	Watch       bool
}

// hasTask reports whether a flag gives the command something to do
// without a source file.
func (o *CompileOptions) hasTask() bool {
	return o.Generate != "" || o.AILearn != "" || o.AIOptimize != "" ||
		o.AIStats || o.AIEvolution || o.ForceUpdate
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a GZ program",
		Long: `Compile a GZ program: auto-correct common mistakes, parse, and optimize.

The collective memory supplies the rewrite rules and learns from every
compile. Use --run to execute the program afterwards; gz then exits with
the status main returns, with statuses outside 1-63 reported as 63.`,
		Example: `  # Compile and run
  gz compile hello.gz --run

  # Write the corrected and optimized source
  gz compile hello.gz -O3 --out hello.opt.gz

  # Generate a program from a description
  gz compile --generate "print hello world" --out hello.gz

  # Show what the collective memory has learned
  gz compile --ai-stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			if file == "" && !opts.hasTask() {
				return &pipeline.UsageError{Msg: "a source file is required"}
			}
			return runCompile(cmd, file, opts)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().BoolVar(&opts.Run, "run", false, "Run the program after compiling")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the final source to this path")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "Explain the structure of the program")
	cmd.Flags().StringVar(&opts.Generate, "generate", "", "Generate a program from a description (requires --out)")
	cmd.Flags().StringVar(&opts.AILearn, "ai-learn", "", "Learn from a sample file")
	cmd.Flags().StringVar(&opts.AIOptimize, "ai-optimize", "", "Optimize a file (requires --out)")
	cmd.Flags().BoolVar(&opts.AIStats, "ai-stats", false, "Show collective memory statistics")
	cmd.Flags().BoolVar(&opts.AIEvolution, "ai-evolution", false, "Show the learning history")
	cmd.Flags().BoolVar(&opts.ForceUpdate, "force-update", false, "Sync with the shared memory now")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Recompile whenever the file changes")

	return cmd
}

// addSessionFlags registers the AI switches shared by compile, run and repl.
func addSessionFlags(cmd *cobra.Command, opts *SessionOptions) {
	cmd.Flags().BoolVar(&opts.NoAI, "no-ai", false, "Disable all AI features (same as --ai-level 0)")
	cmd.Flags().BoolVar(&opts.NoAutoCorrect, "no-auto-correct", false, "Disable auto-correction")
	cmd.Flags().BoolVar(&opts.NoAutoOptimize, "no-auto-optimize", false, "Disable auto-optimization")
	cmd.Flags().BoolVar(&opts.NoAutoUpdate, "no-auto-update", false, "Disable remote sync")
}

func runCompile(cmd *cobra.Command, file string, opts *CompileOptions) error {
	sess := opts.SessionOptions
	sess.NeedStore = opts.AIStats || opts.AIEvolution || opts.AILearn != "" || opts.ForceUpdate
	cc, cleanup, err := NewCommandContext(cmd, sess)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	r := cc.Renderer

	if opts.AIStats {
		output.RenderStats(r, cc.Store)
	}
	if opts.AIEvolution {
		output.RenderEvolution(r, cc.Store.Log(), evolutionRecent)
	}
	if opts.AILearn != "" {
		if err := learnFile(ctx, cc, opts.AILearn); err != nil {
			return err
		}
	}
	if opts.AIOptimize != "" {
		if err := optimizeFile(cc, opts.AIOptimize, opts.Out); err != nil {
			return err
		}
	}
	if opts.Generate != "" {
		if err := generateFile(ctx, cc, opts.Generate, opts.Out); err != nil {
			return err
		}
		if file == "" && opts.Run {
			file = opts.Out
		}
	}
	if opts.ForceUpdate {
		forceSync(ctx, cc)
	}

	if file == "" {
		return nil
	}
	if opts.Watch {
		return watchFile(ctx, cc, file, opts)
	}
	return compileFile(ctx, cc, file, opts)
}

// compileFile compiles file once and, depending on opts, explains, runs
// or writes the result.
func compileFile(ctx context.Context, cc *CommandContext, file string, opts *CompileOptions) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	r := cc.Renderer

	var res *pipeline.Result
	if opts.Run && !opts.Explain {
		res, err = cc.Pipeline.Run(ctx, file, string(src), r.Writer())
	} else {
		res, err = cc.Pipeline.Compile(ctx, file, string(src))
	}
	if res != nil {
		logChanges(cc.Logger, res)
	}
	if err != nil {
		return err
	}

	if opts.Out != "" && opts.AIOptimize == "" && opts.Generate == "" {
		if err := os.WriteFile(opts.Out, []byte(res.Optimized), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	switch {
	case opts.Explain:
		pipeline.Explain(res).Render(r.Writer())
	case opts.Run:
		if res.Status != 0 {
			return &pipeline.StatusError{Status: res.Status}
		}
	default:
		r.Success(fmt.Sprintf("Compiled %s", file))
		r.KeyValue("Corrections", len(res.Corrections))
		r.KeyValue("Optimizations", len(res.Optimizations))
		if opts.Out != "" {
			r.KeyValue("Output", opts.Out)
		}
	}
	return nil
}

// logChanges reports the rewrites of a compile at info level, so program
// output on stdout stays clean.
func logChanges(logger *slog.Logger, res *pipeline.Result) {
	for _, c := range res.Corrections {
		logger.Info("auto-corrected", slog.String("file", res.Name),
			slog.String("rule", c.Rule.Label()), slog.String("explanation", c.Rule.Explanation))
	}
	for _, c := range res.Optimizations {
		logger.Info("optimized", slog.String("file", res.Name), slog.Int("line", c.Line),
			slog.String("rule", c.Rule.Label()), slog.String("explanation", c.Rule.Explanation))
	}
}

func learnFile(ctx context.Context, cc *CommandContext, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sample: %w", err)
	}
	if !cc.Pipeline.Options().Learns() {
		return &pipeline.UsageError{Msg: "--ai-learn needs --ai-level 2 or higher"}
	}
	if err := cc.Pipeline.Learn(ctx, path, string(src)); err != nil {
		return err
	}
	cc.Renderer.Success(fmt.Sprintf("Learned from %s", path))
	return nil
}

func optimizeFile(cc *CommandContext, path, out string) error {
	if out == "" {
		return &pipeline.UsageError{Msg: "--ai-optimize requires --out"}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	level := cc.Cfg.Optimize.Level
	if level == rewrite.LevelNone {
		level = rewrite.LevelAll
	}
	optimized, changes, err := cc.Engine.Optimize(string(src), level)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(optimized), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	cc.Renderer.Success(fmt.Sprintf("Applied %d optimizations to %s", len(changes), out))
	return nil
}

func generateFile(ctx context.Context, cc *CommandContext, prompt, out string) error {
	if out == "" {
		return &pipeline.UsageError{Msg: "--generate requires --out"}
	}
	gen := generate.New(cc.Store, cc.Cfg.Generate.MinScore)
	res := gen.Generate(prompt)
	if res.NotFound != nil {
		cc.Renderer.Warning(res.NotFound.Error())
	}
	if cc.Pipeline.Options().Learns() {
		cc.Recorder.ObserveGeneration(ctx, prompt, res.Template, !res.Fallback)
	}
	if err := os.WriteFile(out, []byte(res.Code), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if res.Fallback {
		cc.Renderer.Success(fmt.Sprintf("Wrote a minimal program to %s", out))
	} else {
		cc.Renderer.Success(fmt.Sprintf("Generated %s from template %s", out, res.Template.Name))
	}
	return nil
}

func forceSync(ctx context.Context, cc *CommandContext) {
	if cc.Syncer == nil {
		cc.Renderer.Warning("remote sync is not configured; set sync.dir and --ai-level 3")
		return
	}
	if err := cc.Syncer.Sync(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cc.Renderer.Warning(fmt.Sprintf("remote sync failed: %v", err))
		return
	}
	cc.Renderer.Success("Synced with the shared memory")
}
