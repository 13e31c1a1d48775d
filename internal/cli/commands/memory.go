package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gz/internal/cli/output"
	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/pipeline"
)

// NewMemoryCommand creates the memory command group.
func NewMemoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and exchange the collective memory",
		Long: `Inspect and exchange the collective memory: the correction rules,
optimization rules, templates and observations gz has learned.`,
	}

	cmd.AddCommand(newMemoryExportCommand())
	cmd.AddCommand(newMemoryMergeCommand())
	cmd.AddCommand(newMemoryImportCommand())
	cmd.AddCommand(newMemoryStatsCommand())
	cmd.AddCommand(newMemorySyncCommand())

	return cmd
}

// newMemoryContext opens the persistent store regardless of the AI level.
func newMemoryContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return NewCommandContext(cmd, SessionOptions{NeedStore: true, NoAutoUpdate: true})
}

func newMemoryExportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the collective memory as a snapshot document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := newMemoryContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := memory.Serialize(cc.Store.Snapshot())
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := memory.WriteFileAtomic(out, data); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Exported %d records to %s", len(cc.Store.Snapshot().Records), out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write to this path instead of stdout")
	return cmd
}

func newMemoryMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <snapshot>",
		Short: "Merge a snapshot from another instance",
		Long: `Merge a snapshot exported by another gz instance. Frequencies add up,
confidences combine as a frequency-weighted mean and learning logs are
unioned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read snapshot: %w", err)
			}
			snap, err := memory.Deserialize(data)
			if err != nil {
				return &pipeline.UsageError{Msg: fmt.Sprintf("%s: %v", args[0], err)}
			}

			cc, cleanup, err := newMemoryContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cc.Store.Merge(snap)
			if err := cc.Store.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("failed to save merged memory: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Merged %d records from instance %s", len(snap.Records), snap.InstanceID))
			return nil
		},
	}
}

func newMemoryImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <pack.yaml>",
		Short: "Import a YAML rule pack",
		Long: `Import correction rules, optimization rules and templates from a YAML
rule pack. Records already in the memory are left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := memory.ReadPackFile(args[0])
			if err != nil {
				if os.IsNotExist(err) {
					return err
				}
				return &pipeline.UsageError{Msg: err.Error()}
			}

			cc, cleanup, err := newMemoryContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			added := cc.Recorder.ImportRules(cmd.Context(), records)
			if err := cc.Recorder.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("failed to save imported rules: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Imported %d of %d records from %s", added, len(records), args[0]))
			return nil
		},
	}
}

func newMemoryStatsCommand() *cobra.Command {
	var evolution bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collective memory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := newMemoryContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			output.RenderStats(cc.Renderer, cc.Store)
			if evolution {
				output.RenderEvolution(cc.Renderer, cc.Store.Log(), evolutionRecent)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&evolution, "evolution", false, "Also show the learning history")
	return cmd
}

func newMemorySyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync with the shared memory now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, SessionOptions{NeedStore: true})
			if err != nil {
				return err
			}
			defer cleanup()

			if cc.Syncer == nil {
				return &pipeline.UsageError{Msg: "remote sync is not configured; set sync.dir and --ai-level 3"}
			}
			if err := cc.Syncer.Sync(cmd.Context()); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Synced with %s", cc.Cfg.Sync.Dir))
			return nil
		},
	}
}
