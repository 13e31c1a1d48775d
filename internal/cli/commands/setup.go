package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gz/internal/cli/config"
	"github.com/leapstack-labs/gz/internal/cli/output"
	intconfig "github.com/leapstack-labs/gz/internal/config"
	"github.com/leapstack-labs/gz/internal/learning"
	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/memsync"
	"github.com/leapstack-labs/gz/internal/pipeline"
	"github.com/leapstack-labs/gz/internal/rewrite"
)

// SessionOptions are the per-command switches layered over the config.
type SessionOptions struct {
	NoAI           bool
	NoAutoCorrect  bool
	NoAutoOptimize bool
	NoAutoUpdate   bool
	// NeedStore opens the persistent store even when the AI level is 0.
	NeedStore bool
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Store    *memory.Store
	Engine   *rewrite.Engine
	Recorder *learning.Recorder
	Pipeline *pipeline.Pipeline
	// Syncer is nil unless remote sync is enabled and configured.
	Syncer *memsync.Syncer
}

// NewCommandContext opens the collective memory and builds the pipeline.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, opts SessionOptions) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	ctx := cmd.Context()

	aiLevel := cfg.AILevel
	if opts.NoAI {
		aiLevel = pipeline.AINone
	}

	store := openStore(ctx, cfg, aiLevel > pipeline.AINone || opts.NeedStore, logger)

	engine := rewrite.New(store, rewrite.Options{MaxPasses: cfg.Rewrite.MaxPasses, Logger: logger})
	recorder := learning.New(store, learning.Options{
		FlushEvery:    cfg.Memory.FlushEvery,
		FlushInterval: cfg.Memory.FlushInterval,
		Logger:        logger,
	})

	interpOpts := cfg.InterpOptions()
	interpOpts.Logger = logger
	pipe := pipeline.New(pipeline.Options{
		AILevel:        aiLevel,
		NoAutoCorrect:  opts.NoAutoCorrect,
		NoAutoOptimize: opts.NoAutoOptimize,
		OptLevel:       cfg.Optimize.Level,
		Interp:         interpOpts,
		Logger:         logger,
	}, engine, recorder)

	var syncer *memsync.Syncer
	if pipe.Options().Syncs() && !opts.NoAutoUpdate && cfg.Sync.Dir != "" && store.Persistent() {
		remote := memsync.NewDirRemote(cfg.Sync.Dir, cfg.Memory.LockTimeout)
		syncer = memsync.New(store, remote, memsync.Options{Threshold: cfg.Sync.Threshold, Logger: logger})
	}

	mode := output.Mode(cfg.Output)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
		Store:    store,
		Engine:   engine,
		Recorder: recorder,
		Pipeline: pipe,
		Syncer:   syncer,
	}
	return cc, func() { cc.close(ctx) }, nil
}

// openStore opens the persistent memory, or an in-memory one when
// persistence is not wanted or not available. Store trouble never fails
// a command.
func openStore(ctx context.Context, cfg *config.Config, persistent bool, logger *slog.Logger) *memory.Store {
	opts := cfg.MemoryOptions()
	opts.Logger = logger
	if !persistent {
		return memory.NewInMemory(opts)
	}
	store, err := memory.Open(ctx, opts)
	if err != nil {
		logger.Warn("collective memory unavailable, using an in-memory store",
			slog.String("dir", opts.Dir), slog.String("error", err.Error()))
		return memory.NewInMemory(opts)
	}
	if w := store.Warning(); w != nil {
		logger.Warn("collective memory reset", slog.String("error", w.Error()))
	}
	return store
}

// close flushes pending learnings, gives a background sync a chance to
// finish and releases the store.
func (cc *CommandContext) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := cc.Recorder.Close(ctx); err != nil {
		cc.Logger.Warn("failed to save learnings", slog.String("error", err.Error()))
	}
	if cc.Syncer != nil {
		cc.Syncer.Maybe(ctx, false)
		if err := cc.Syncer.Wait(cc.Cfg.Sync.Wait); err != nil {
			cc.Logger.Warn("remote sync did not complete", slog.String("error", err.Error()))
		}
	}
	if err := cc.Store.Close(ctx); err != nil {
		cc.Logger.Warn("failed to close collective memory", slog.String("error", err.Error()))
	}
}

// getConfig returns the current configuration, or the configuration of
// the working directory when the root command did not load one.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	wd, _ := os.Getwd()
	cfg, err := intconfig.LoadFromDir(wd)
	if err != nil {
		return &config.Config{AILevel: intconfig.DefaultAILevel, ProjectRoot: wd}
	}
	return cfg
}
