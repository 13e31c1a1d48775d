package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gz/internal/cli/config"
	clitestutil "github.com/leapstack-labs/gz/internal/cli/testutil"
	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/pipeline"
	"github.com/leapstack-labs/gz/internal/rewrite"
	"github.com/leapstack-labs/gz/internal/testutil"
)

// loadProject creates a project and makes its config current.
func loadProject(t *testing.T) string {
	t.Helper()
	dir := clitestutil.SetupTestProject(t)
	_, err := config.LoadConfig(filepath.Join(dir, "gz.yaml"), nil)
	require.NoError(t, err)
	t.Cleanup(config.ResetConfig)
	return dir
}

func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewCompileCommand(), "compile [file]", []string{
			"run", "out", "explain", "generate", "ai-learn", "ai-optimize", "ai-stats",
			"ai-evolution", "force-update", "watch", "no-ai", "no-auto-correct",
			"no-auto-optimize", "no-auto-update",
		}},
		{NewRunCommand(), "run <file>", []string{"no-ai", "watch"}},
		{NewREPLCommand(), "repl", []string{"no-ai", "no-auto-correct"}},
		{NewMemoryCommand(), "memory", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	var subs []string
	for _, c := range NewMemoryCommand().Commands() {
		subs = append(subs, c.Name())
	}
	assert.ElementsMatch(t, []string{"export", "merge", "import", "stats", "sync"}, subs)
}

func TestNewVersionCommand(t *testing.T) {
	for _, version := range []string{"0.1.0", "dev"} {
		t.Run(version, func(t *testing.T) {
			out, _, err := execute(NewVersionCommand(version))
			require.NoError(t, err)
			assert.Contains(t, out, "gz v"+version)
		})
	}
}

func TestRunHelloWorld(t *testing.T) {
	dir := loadProject(t)

	out, _, err := execute(NewRunCommand(), filepath.Join(dir, "hello.gz"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!\n", out)

	_, err = os.Stat(filepath.Join(clitestutil.MemoryDir(dir), "collective_memory.json"))
	assert.NoError(t, err, "the compile is learned")
}

func TestRunExitStatus(t *testing.T) {
	dir := loadProject(t)
	path := testutil.WriteFile(t, dir, "status.gz", "simula main\n    balik 3\n")

	_, _, err := execute(NewRunCommand(), path)
	require.Error(t, err)
	assert.Equal(t, 3, pipeline.ExitCode(err))

	path = testutil.WriteFile(t, dir, "lexlike.gz", "simula main\n    balik 65\n")
	_, _, err = execute(NewRunCommand(), path)
	require.Error(t, err)
	assert.Equal(t, pipeline.MaxProgramStatus, pipeline.ExitCode(err))
}

func TestCompileErrors(t *testing.T) {
	dir := loadProject(t)
	bad := testutil.WriteFile(t, dir, "bad.gz", "simula main\n    x = \n")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no file", nil, pipeline.ExitUsage},
		{"missing file", []string{filepath.Join(dir, "missing.gz")}, pipeline.ExitIO},
		{"syntax error", []string{bad}, pipeline.ExitSyntax},
		{"generate without out", []string{"--generate", "hello"}, pipeline.ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(NewCompileCommand(), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, pipeline.ExitCode(err))
		})
	}
}

func TestCompileWritesOptimizedSource(t *testing.T) {
	dir := loadProject(t)
	src := testutil.WriteFile(t, dir, "inc.gz", "simula main\n    x = 10\n    x = x + 1\n    sulat x;\n    balik 0\n")
	out := filepath.Join(dir, "inc.opt.gz")

	stdout, _, err := execute(NewCompileCommand(), src, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Compiled")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "simula main\n    x = 10\n    x += 1\n    sulat x\n    balik 0\n", string(data))
}

func TestCompileNoAIKeepsSource(t *testing.T) {
	dir := loadProject(t)
	src := testutil.WriteFile(t, dir, "semi.gz", "simula main\n    sulat 1;\n    balik 0\n")

	_, _, err := execute(NewCompileCommand(), src, "--no-ai")
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitLex, pipeline.ExitCode(err))
}

func TestCompileExplain(t *testing.T) {
	dir := loadProject(t)

	out, _, err := execute(NewCompileCommand(), filepath.Join(dir, "hello.gz"), "--explain")
	require.NoError(t, err)
	assert.Contains(t, out, "Code Explanation:")
	assert.Contains(t, out, "main")
}

func TestGenerateAndRun(t *testing.T) {
	dir := loadProject(t)
	out := filepath.Join(dir, "gen.gz")

	stdout, _, err := execute(NewCompileCommand(), "--generate", "print hello world", "--out", out, "--run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "hello_world")
	assert.Contains(t, stdout, "Hello, World!\n")
}

func TestGenerateFallback(t *testing.T) {
	dir := loadProject(t)
	out := filepath.Join(dir, "gen.gz")

	_, stderr, err := execute(NewCompileCommand(), "--generate", "quantum teleport", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning:")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "simula main\n    balik 0\n", string(data))
}

func TestAIStats(t *testing.T) {
	dir := loadProject(t)
	_, _, err := execute(NewRunCommand(), filepath.Join(dir, "hello.gz"))
	require.NoError(t, err)

	out, _, err := execute(NewCompileCommand(), "--ai-stats", "--ai-evolution")
	require.NoError(t, err)
	assert.Contains(t, out, "Total learnings")
	assert.Contains(t, out, "syntax_pattern")
	assert.Contains(t, out, "Executions")
	assert.Contains(t, out, "Success rate")
	assert.NotContains(t, out, "No runs recorded yet.")
}

func TestAILearn(t *testing.T) {
	dir := loadProject(t)
	sample := testutil.WriteFile(t, dir, "sample.gz", "total = 0\npara i 1 3\n    total += i\n")

	out, _, err := execute(NewCompileCommand(), "--ai-learn", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "Learned from")
}

func TestMemoryImportThenGenerate(t *testing.T) {
	dir := loadProject(t)
	pack := testutil.WriteFile(t, dir, "pack.yaml", `templates:
  - name: countdown
    description: Count down from ten
    code: |
      simula main
          para i 1 10
              sulat 11 - i
          balik 0
`)

	out, _, err := execute(NewMemoryCommand(), "import", pack)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 of 1")

	gen := filepath.Join(dir, "gen.gz")
	out, _, err = execute(NewCompileCommand(), "--generate", "countdown", "--out", gen)
	require.NoError(t, err)
	assert.Contains(t, out, "countdown")
}

func TestMemoryImportRejectsInvalidPack(t *testing.T) {
	dir := loadProject(t)
	pack := testutil.WriteFile(t, dir, "pack.yaml", "correction_rules:\n  - name: broken\n    pattern: '('\n")

	_, _, err := execute(NewMemoryCommand(), "import", pack)
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitUsage, pipeline.ExitCode(err))
}

func TestMemoryExportMerge(t *testing.T) {
	src := loadProject(t)
	_, _, err := execute(NewRunCommand(), filepath.Join(src, "hello.gz"))
	require.NoError(t, err)

	snap := filepath.Join(t.TempDir(), "snapshot.json")
	_, _, err = execute(NewMemoryCommand(), "export", "--out", snap)
	require.NoError(t, err)

	dst := loadProject(t)
	out, _, err := execute(NewMemoryCommand(), "merge", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "Merged")

	data, err := os.ReadFile(filepath.Join(clitestutil.MemoryDir(dst), "collective_memory.json"))
	require.NoError(t, err)
	merged, err := memory.Deserialize(data)
	require.NoError(t, err)
	assert.NotEmpty(t, merged.Log)
}

func TestMemorySyncRequiresSyncDir(t *testing.T) {
	loadProject(t)
	_, _, err := execute(NewMemoryCommand(), "sync")
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitUsage, pipeline.ExitCode(err))
}

func newTestSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	store := memory.NewInMemory(memory.Options{})
	engine := rewrite.New(store, rewrite.Options{Logger: testutil.NewTestLogger(t)})
	pipe := pipeline.New(pipeline.Options{AILevel: pipeline.AICorrect}, engine, nil)
	var out, errOut bytes.Buffer
	return newREPLSession(pipe, &out, &errOut), &out, &errOut
}

func TestREPLSession(t *testing.T) {
	ctx := context.Background()
	sess, out, errOut := newTestSession(t)

	lines := []struct {
		line   string
		prompt string
	}{
		{"x = 2", replPrompt},
		{"x * 21", replPrompt},
		{"simula double n", replContinuePrompt},
		{"    balik n * 2", replContinuePrompt},
		{"", replPrompt},
		{"double(4)", replPrompt},
		{"sulat(x);", replPrompt},
	}
	for _, l := range lines {
		prompt, quit := sess.feed(ctx, l.line)
		assert.False(t, quit)
		assert.Equal(t, l.prompt, prompt, "after %q", l.line)
	}
	assert.Equal(t, "42\n8\n2\n", out.String())
	assert.Contains(t, errOut.String(), "auto-corrected")
}

func TestREPLErrorsKeepSession(t *testing.T) {
	ctx := context.Background()
	sess, out, errOut := newTestSession(t)

	sess.feed(ctx, "y = 1")
	sess.feed(ctx, "undefined_name")
	sess.feed(ctx, "y = ")
	sess.feed(ctx, "y")
	assert.Equal(t, "1\n", out.String())
	assert.Contains(t, errOut.String(), "Error:")
}

func TestREPLCommands(t *testing.T) {
	ctx := context.Background()
	sess, out, errOut := newTestSession(t)

	sess.feed(ctx, "z = 5")
	_, quit := sess.feed(ctx, ".reset")
	assert.False(t, quit)
	sess.feed(ctx, "z")
	assert.Contains(t, errOut.String(), "Error:", "z is gone after .reset")

	_, quit = sess.feed(ctx, ".help")
	assert.False(t, quit)
	assert.Contains(t, out.String(), ".quit")

	_, quit = sess.feed(ctx, ".quit")
	assert.True(t, quit)
}

func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	file := testutil.WriteFile(t, dir, "w.gz", clitestutil.HelloWorld)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, file, 10*time.Millisecond, testutil.NewTestLogger(t), func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(file, []byte(clitestutil.HelloWorld), 0o644)
		return len(changed) > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}
