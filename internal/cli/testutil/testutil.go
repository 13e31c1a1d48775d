// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/gz/internal/cli/output"
	"github.com/leapstack-labs/gz/internal/testutil"
)

// HelloWorld is a program that needs no correction.
const HelloWorld = `simula main
    sulat "Hello, World!"
    balik 0
`

// SetupTestProject creates a temporary project: a gz.yaml keeping the
// collective memory in .gz under the project, and hello.gz.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "gz.yaml", "memory:\n  dir: .gz\nsync:\n  wait: 5s\n")
	testutil.WriteFile(t, dir, "hello.gz", HelloWorld)
	return dir
}

// MemoryDir returns the memory directory of a project made by
// SetupTestProject.
func MemoryDir(projectDir string) string {
	return filepath.Join(projectDir, ".gz")
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
