package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gz/internal/pipeline"
	"github.com/leapstack-labs/gz/pkg/interp"
)

const (
	replPrompt         = "gz> "
	replContinuePrompt = "... "
	replSource         = "<repl>"
	replHistoryFile    = "repl_history"
)

// blockHeader matches lines that open an indented block.
var blockHeader = regexp.MustCompile(`^\s*(simula|kung|kundi|habang|para)\b`)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	opts := &SessionOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive GZ session",
		Long: `Start an interactive session. Statements run as they are entered and
expression values are printed. A line opening a block (simula, kung, para,
habang) starts a multi-line entry that ends with a blank line.

Input is auto-corrected like a compiled program.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}
	addSessionFlags(cmd, opts)
	return cmd
}

func runREPL(cmd *cobra.Command, opts *SessionOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, *opts)
	if err != nil {
		return err
	}
	defer cleanup()

	historyFile := ""
	if cc.Store.Persistent() {
		historyFile = filepath.Join(cc.Cfg.Memory.Dir, replHistoryFile)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "GZ REPL (AI level %d)\n", cc.Pipeline.Options().AILevel)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")

	sess := newREPLSession(cc.Pipeline, out, cmd.ErrOrStderr())
	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sess.reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		prompt, quit := sess.feed(ctx, line)
		if quit {
			return nil
		}
		rl.SetPrompt(prompt)
	}
}

// replSession executes REPL input against one interpreter, so globals
// and functions persist between entries.
type replSession struct {
	pipe   *pipeline.Pipeline
	in     *interp.Interpreter
	out    io.Writer
	errOut io.Writer
	block  strings.Builder
}

func newREPLSession(pipe *pipeline.Pipeline, out, errOut io.Writer) *replSession {
	s := &replSession{pipe: pipe, out: out, errOut: errOut}
	s.resetInterpreter()
	return s
}

func (s *replSession) resetInterpreter() {
	opts := s.pipe.Options().Interp
	opts.Stdout = s.out
	s.in = interp.New(opts)
}

// reset drops a partially entered block.
func (s *replSession) reset() {
	s.block.Reset()
}

// feed takes one input line. It returns the prompt for the next line and
// whether the session should end.
func (s *replSession) feed(ctx context.Context, line string) (string, bool) {
	if s.block.Len() > 0 {
		if strings.TrimSpace(line) != "" {
			s.block.WriteString(line + "\n")
			return replContinuePrompt, false
		}
		src := s.block.String()
		s.block.Reset()
		s.exec(ctx, src)
		return replPrompt, false
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return replPrompt, false
	case strings.HasPrefix(trimmed, "."):
		return replPrompt, s.command(trimmed)
	case blockHeader.MatchString(line):
		s.block.WriteString(line + "\n")
		return replContinuePrompt, false
	}
	s.exec(ctx, line+"\n")
	return replPrompt, false
}

// command runs a dot-command and reports whether it ends the session.
func (s *replSession) command(line string) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true
	case ".reset":
		s.resetInterpreter()
		_, _ = fmt.Fprintln(s.out, "Session reset")
	case ".help":
		_, _ = fmt.Fprintln(s.out, `Commands:
  .help   Show this help
  .reset  Forget all variables and functions
  .quit   Exit the REPL`)
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s\n", line)
	}
	return false
}

func (s *replSession) exec(ctx context.Context, src string) {
	res, err := s.pipe.Compile(ctx, replSource, src)
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	for _, c := range res.Corrections {
		_, _ = fmt.Fprintf(s.errOut, "auto-corrected: %s\n", c.Rule.Explanation)
	}
	v, err := s.in.Exec(ctx, res.Program)
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	if v != nil && v.Kind() != interp.KindNull {
		_, _ = fmt.Fprintln(s.out, interp.Repr(v))
	}
}
