package commands

import (
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command, a shorthand for compile --run.
func NewRunCommand() *cobra.Command {
	opts := &CompileOptions{Run: true}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and run a GZ program",
		Long: `Compile a GZ program and run it. The exit status of gz is the value
main returns. Statuses outside 1-63 exit with 63, so a program status never
looks like a gz failure (64 usage, 65 lex, 66 syntax, 70 runtime,
71 internal, 74 I/O).`,
		Example: `  # Run a program
  gz run hello.gz

  # Run without auto-correction or optimization
  gz run hello.gz --no-ai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], opts)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rerun whenever the file changes")

	return cmd
}
