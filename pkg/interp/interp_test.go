package interp

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gz/pkg/parser"
)

func run(t *testing.T, src string, opts Options) (string, int, error) {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)

	var out bytes.Buffer
	opts.Stdout = &out
	status, err := New(opts).Run(context.Background(), prog)
	return out.String(), status, err
}

func TestRunPrograms(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		output string
		status int
	}{
		{
			name:   "hello world",
			src:    "simula main\n    sulat \"Hello, World!\"\n    balik 0\n",
			output: "Hello, World!\n",
		},
		{
			name:   "compound assignment",
			src:    "x = 10\nx += 1\nsulat x\n",
			output: "11\n",
		},
		{
			name:   "inclusive range",
			src:    "para i 1 5\n    sulat i\n",
			output: "1\n2\n3\n4\n5\n",
		},
		{
			name:   "range sugar",
			src:    "para i = 3 hanggang 4\n    sulat i\n",
			output: "3\n4\n",
		},
		{
			name:   "empty range",
			src:    "para i 5 1\n    sulat i\nsulat \"done\"\n",
			output: "done\n",
		},
		{
			name: "while with break and continue",
			src: `i = 0
habang tama
    i += 1
    kung i % 2 == 0
        tuloy
    kung i > 7
        tigil
    sulat i
`,
			output: "1\n3\n5\n7\n",
		},
		{
			name: "recursion",
			src: `simula fact n
    kung n <= 1
        balik 1
    balik n * fact(n - 1)
sulat fact(10)
`,
			output: "3628800\n",
		},
		{
			name:   "exit status from main",
			src:    "simula main\n    balik 3\n",
			status: 3,
		},
		{
			name:   "top-level balik stops the program",
			src:    "sulat 1\nbalik 4\nsulat 2\n",
			output: "1\n",
			status: 4,
		},
		{
			name:   "printing",
			src:    "sulat 7 / 2, 6 / 3, 1.5 + 1, tama, wala, [1, \"a\"], {\"k\": mali}\n",
			output: "3.5 2.0 2.5 tama wala [1, \"a\"] {\"k\": mali}\n",
		},
		{
			name:   "string concatenation",
			src:    "sulat \"ab\" + \"cd\", teksto(12) + \"!\"\n",
			output: "abcd 12!\n",
		},
		{
			name:   "lists are shared by reference",
			src:    "xs = [1]\nys = xs\nidagdag(ys, 2)\nxs[0] += 10\nsulat xs, haba(xs)\n",
			output: "[11, 2] 2\n",
		},
		{
			name:   "maps keep insertion order",
			src:    "m = {\"b\": 1}\nm[\"a\"] = 2\nm[\"b\"] = 3\nsulat susi(m), m[\"b\"]\n",
			output: "[\"b\", \"a\"] 3\n",
		},
		{
			name: "function locals shadow globals",
			src: `x = 1
simula f
    x = 2
    balik x
sulat f(), x
`,
			output: "2 1\n",
		},
		{
			name: "elif chain",
			src: `simula sign n
    kung n > 0
        balik "pos"
    kundi kung n < 0
        balik "neg"
    kundi
        balik "zero"
sulat sign(5), sign(-2), sign(0)
`,
			output: "pos neg zero\n",
		},
		{
			name:   "multiple return values",
			src:    "simula pair\n    balik 1, 2\nsulat pair()\n",
			output: "[1, 2]\n",
		},
		{
			name:   "short circuit",
			src:    "sulat mali at undefined_name, tama o undefined_name, hindi 0\n",
			output: "mali tama tama\n",
		},
		{
			name:   "numeric equality across kinds",
			src:    "sulat 1 == 1.0, \"1\" == 1, [1, 2] == [1, 2.0]\n",
			output: "tama mali tama\n",
		},
		{
			name:   "numero parses",
			src:    "sulat numero(\"42\") + 1, numero(\"2.5\")\n",
			output: "43 2.5\n",
		},
		{
			name:   "self-containing list",
			src:    "l = [1]\nidagdag(l, l)\nsulat l\nsulat l == l, teksto(l)\n",
			output: "[1, [...]]\ntama [1, [...]]\n",
		},
		{
			name:   "self-containing map",
			src:    "m = {\"a\": 1}\nm[\"self\"] = m\nsulat m\nsulat m == m\n",
			output: "{\"a\": 1, \"self\": {...}}\ntama\n",
		},
		{
			name:   "distinct cyclic lists compare structurally",
			src:    "a = [1]\nidagdag(a, a)\nb = [1]\nidagdag(b, b)\nc = [2]\nidagdag(c, c)\nsulat a == b, a == c\n",
			output: "tama mali\n",
		},
		{
			name:   "ui blocks are inert",
			src:    "ui_element b button\n    text: \"OK\"\nsulat \"ran\"\n",
			output: "ran\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, status, err := run(t, tt.src, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.output, out)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestBoolComparisonMatchesTruthiness(t *testing.T) {
	values := []string{"tama", "mali", "0", "1", "\"\"", "\"x\"", "[]", "[0]", "wala", "0.0", "2.5"}
	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			src := "flag = " + v + `
kung flag == tama
    sulat "a"
kundi
    sulat "b"
kung flag
    sulat "a"
kundi
    sulat "b"
`
			out, _, err := run(t, src, Options{})
			require.NoError(t, err)
			require.Len(t, out, 4)
			assert.Equal(t, out[:2], out[2:], "kung flag == tama and kung flag pick the same branch")
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, err error)
	}{
		{
			name: "undefined name",
			src:  "sulat y\n",
			check: func(t *testing.T, err error) {
				var e *NameError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "y", e.Name)
				assert.Equal(t, 1, e.Position().Line)
			},
		},
		{
			name: "string plus int",
			src:  "sulat \"a\" + 1\n",
			check: func(t *testing.T, err error) {
				var e *TypeError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "calling a non-function",
			src:  "x = 1\nx()\n",
			check: func(t *testing.T, err error) {
				var e *TypeError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "ordering mixed kinds",
			src:  "sulat 1 < \"a\"\n",
			check: func(t *testing.T, err error) {
				var e *TypeError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "division by zero",
			src:  "sulat 1 / 0\n",
			check: func(t *testing.T, err error) {
				var e *RuntimeError
				require.ErrorAs(t, err, &e)
				assert.Contains(t, e.Error(), "division by zero")
			},
		},
		{
			name: "index out of range",
			src:  "xs = [1]\nsulat xs[3]\n",
			check: func(t *testing.T, err error) {
				var e *RuntimeError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 2, e.Position().Line)
			},
		},
		{
			name: "not indexable",
			src:  "x = 5\nsulat x[0]\n",
			check: func(t *testing.T, err error) {
				var e *RuntimeError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "wrong arity",
			src:  "simula f a\n    balik a\nf(1, 2)\n",
			check: func(t *testing.T, err error) {
				var e *RuntimeError
				require.ErrorAs(t, err, &e)
				assert.Contains(t, e.Error(), "expects 1 argument(s), got 2")
			},
		},
		{
			name: "unbounded recursion",
			src:  "simula f n\n    balik f(n + 1)\nf(0)\n",
			check: func(t *testing.T, err error) {
				var e *StackOverflowError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, DefaultMaxCallDepth, e.Depth)
			},
		},
		{
			name: "runaway loop",
			src:  "habang tama\n    x = 1\n",
			check: func(t *testing.T, err error) {
				var e *TimeoutError
				require.ErrorAs(t, err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := run(t, tt.src, Options{MaxSteps: 100_000})
			require.Error(t, err)
			assert.Equal(t, 1, status)
			tt.check(t, err)
		})
	}
}

func TestWallClockTimeout(t *testing.T) {
	_, _, err := run(t, "habang tama\n    x = 1\n", Options{Timeout: 20 * time.Millisecond, MaxSteps: 1 << 62})
	var e *TimeoutError
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Error(), "time budget")
}

func TestExecSharesGlobals(t *testing.T) {
	var out bytes.Buffer
	in := New(Options{Stdout: &out})
	ctx := context.Background()

	prog, err := parser.Parse("x = 20\nsimula double n\n    balik n * 2\n")
	require.NoError(t, err)
	v, err := in.Exec(ctx, prog)
	require.NoError(t, err)
	assert.Nil(t, v)

	prog, err = parser.Parse("double(x) + 2\n")
	require.NoError(t, err)
	v, err = in.Exec(ctx, prog)
	require.NoError(t, err)
	assert.Equal(t, Int(42), v)

	x, ok := in.Global("x")
	require.True(t, ok)
	assert.Equal(t, Int(20), x)
}

func TestEqual(t *testing.T) {
	m1 := NewMap()
	m1.Set(Str("a"), Int(1))
	m2 := NewMap()
	m2.Set(Str("a"), Float(1))

	assert.True(t, Equal(m1, m2))
	assert.True(t, Equal(Int(2), Float(2)))
	assert.False(t, Equal(Str("2"), Int(2)))
	assert.True(t, Equal(Bool(true), Str("x")))
	assert.False(t, Equal(Bool(true), Wala))
	assert.True(t, Equal(Wala, Wala))

	self := NewList(Int(1))
	self.Elems = append(self.Elems, self)
	other := NewList(Int(1))
	other.Elems = append(other.Elems, other)
	assert.True(t, Equal(self, self))
	assert.True(t, Equal(self, other))
	assert.False(t, Equal(self, NewList(Int(1), NewList())))
	assert.Equal(t, "[1, [...]]", self.String())

	inner := NewMap()
	inner.Set(Str("me"), inner)
	assert.True(t, Equal(inner, inner))
	assert.Equal(t, `{"me": {...}}`, inner.String())

	nested := NewList(self, self)
	assert.Equal(t, "[[1, [...]], [1, [...]]]", nested.String())
}

func TestMapKeysNormalizeNumbers(t *testing.T) {
	m := NewMap()
	m.Set(Int(1), Str("int"))
	m.Set(Float(1), Str("float"))
	assert.Equal(t, 1, m.Len())
	v, ok := m.Get(Int(1))
	require.True(t, ok)
	assert.Equal(t, Str("float"), v)
	assert.False(t, m.Set(NewList(), Int(1)))
}
