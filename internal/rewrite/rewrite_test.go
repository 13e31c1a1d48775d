package rewrite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/interp"
	"github.com/leapstack-labs/gz/pkg/parser"
)

func newEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewInMemory(memory.Options{})
	return New(store, Options{}), store
}

func runSource(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err, src)
	var out bytes.Buffer
	_, err = interp.New(interp.Options{Stdout: &out}).Run(context.Background(), prog)
	require.NoError(t, err)
	return out.String()
}

var correctionCases = []struct {
	name string
	src  string
	want string
}{
	{
		name: "hello world with braces and semicolons",
		src:  "simula main() {\n    sulat(\"Hello, World!\");\n    balik 0;\n}\n",
		want: "simula main\n    sulat \"Hello, World!\"\n    balik 0\n",
	},
	{
		name: "parameters in parentheses",
		src:  "simula add(a, b):\n    balik a + b\n",
		want: "simula add a b\n    balik a + b\n",
	},
	{
		name: "parenthesized condition with colon",
		src:  "kung (x > 1):\n    sulat x\n",
		want: "kung x > 1\n    sulat x\n",
	},
	{
		name: "c-style inclusive loop",
		src:  "para (i = 1; i <= 5; i++) {\n    sulat(i);\n}\n",
		want: "para i 1 5\n    sulat i\n",
	},
	{
		name: "c-style exclusive loop",
		src:  "para (i = 0; i < n; i++) {\n    sulat i\n}\n",
		want: "para i 0 n - 1\n    sulat i\n",
	},
	{
		name: "else on the closing brace line",
		src:  "kung (x > 1) {\n    sulat \"big\";\n} kundi {\n    sulat \"small\";\n}\n",
		want: "kung x > 1\n    sulat \"big\"\nkundi\n    sulat \"small\"\n",
	},
	{
		name: "while loop",
		src:  "habang (i < 3) {\n    i += 1;\n}\n",
		want: "habang i < 3\n    i += 1\n",
	},
}

func TestCorrect(t *testing.T) {
	for _, tt := range correctionCases {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			got, changes, err := e.Correct(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, changes)

			_, err = parser.Parse(got)
			assert.NoError(t, err, "corrected source parses")
		})
	}
}

func TestCorrectIsIdempotent(t *testing.T) {
	for _, tt := range correctionCases {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			once, _, err := e.Correct(tt.src)
			require.NoError(t, err)
			twice, changes, err := e.Correct(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
			assert.Empty(t, changes)
		})
	}
}

func TestCorrectLeavesStringsAlone(t *testing.T) {
	e, _ := newEngine(t)
	src := "sulat \"a; { b } (c);\"\nsulat(\"x;\");\n"
	got, _, err := e.Correct(src)
	require.NoError(t, err)
	assert.Equal(t, "sulat \"a; { b } (c);\"\nsulat \"x;\"\n", got)
}

func TestCorrectLeavesCommentsAlone(t *testing.T) {
	e, _ := newEngine(t)
	src := "// it's \"a\" comment; done;\nsulat 1 // spaced;   \n"
	got, changes, err := e.Correct(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)
	assert.Empty(t, changes)

	got, _, err = e.Correct("// keep;\nsulat(\"x\");\n")
	require.NoError(t, err)
	assert.Equal(t, "// keep;\nsulat \"x\"\n", got)
}

func TestCorrectCleanSourceIsUntouched(t *testing.T) {
	e, store := newEngine(t)
	var heard []Change
	e.Subscribe(func(c Change) { heard = append(heard, c) })

	src := "simula main\n    sulat \"hi\"\n"
	got, changes, err := e.Correct(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)
	assert.Empty(t, changes)
	assert.Empty(t, heard)
	for _, r := range store.CorrectionRules() {
		assert.Zero(t, r.Frequency)
	}
}

func TestCorrectReinforcesFiredRules(t *testing.T) {
	e, store := newEngine(t)
	var heard []Change
	e.Subscribe(func(c Change) { heard = append(heard, c) })

	_, changes, err := e.Correct("x = 1;\ny = 2;\n")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "semicolons", changes[0].Rule.Name)
	assert.Equal(t, 2, changes[0].Count)
	assert.Equal(t, changes, heard)

	r, ok := store.Get(changes[0].Rule.Signature())
	require.True(t, ok)
	assert.Equal(t, int64(1), r.Frequency)
	assert.Greater(t, r.Confidence, changes[0].Rule.Confidence)
}

func TestCorrectDivergence(t *testing.T) {
	store := memory.NewInMemory(memory.Options{NoDefaults: true})
	grow := memory.Record{Kind: memory.KindCorrection, Name: "grow", Pattern: `a+`, Replacement: `$0a`, Confidence: 0.5}
	store.Import([]memory.Record{grow})

	e := New(store, Options{MaxPasses: 4})
	var heard []Change
	e.Subscribe(func(c Change) { heard = append(heard, c) })

	got, changes, err := e.Correct("a\n")
	var div *DivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, 4, div.Passes)
	assert.Equal(t, []string{"grow"}, div.Rules)
	assert.Equal(t, "a\n", got)
	assert.Empty(t, changes)
	assert.Empty(t, heard, "rolled back rewrites are never reported")

	r, _ := store.Get(grow.Signature())
	assert.Zero(t, r.Frequency)
}

func TestCorrectSkipsInvalidPatterns(t *testing.T) {
	store := memory.NewInMemory(memory.Options{NoDefaults: true})
	store.Import([]memory.Record{
		{Kind: memory.KindCorrection, Pattern: `(unclosed`, Replacement: ``, Confidence: 0.9},
		{Kind: memory.KindCorrection, Pattern: `;$`, Replacement: ``, Confidence: 0.5},
	})
	e := New(store, Options{})

	got, changes, err := e.Correct("x = 1;\n")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", got)
	assert.Len(t, changes, 1)
}

func TestOptimize(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		level int
		want  string
		rules []string
	}{
		{
			name:  "compound increment",
			src:   "x = 10\nx = x + 1\nsulat x\n",
			level: LevelBasic,
			want:  "x = 10\nx += 1\nsulat x\n",
			rules: []string{"compound_assignment"},
		},
		{
			name:  "boolean comparison",
			src:   "flag = tama\nkung flag == tama\n    sulat \"yes\"\n",
			level: LevelBasic,
			want:  "flag = tama\nkung flag\n    sulat \"yes\"\n",
			rules: []string{"boolean_simplification"},
		},
		{
			name:  "scaling needs level 2",
			src:   "x = 3\nx = x * 2\n",
			level: LevelBasic,
			want:  "x = 3\nx = x * 2\n",
		},
		{
			name:  "scaling at level 2",
			src:   "x = 3\nx = x * 2\n",
			level: LevelDefault,
			want:  "x = 3\nx *= 2\n",
			rules: []string{"compound_multiplication"},
		},
		{
			name:  "range loop",
			src:   "para i = 1 hanggang 5\n    sulat i\n",
			level: LevelDefault,
			want:  "para i 1 5\n    sulat i\n",
			rules: []string{"loop_range"},
		},
		{
			name:  "regrouping is rejected",
			src:   "x = 10\nx = x - 1 - 2\n",
			level: LevelAll,
			want:  "x = 10\nx = x - 1 - 2\n",
		},
		{
			name:  "boolean comparison inside an or is rejected",
			src:   "a = mali\nb = 2\nkung a o b == tama\n    sulat 1\n",
			level: LevelAll,
			want:  "a = mali\nb = 2\nkung a o b == tama\n    sulat 1\n",
		},
		{
			name:  "level 0 does nothing",
			src:   "x = 1\nx = x + 1\n",
			level: LevelNone,
			want:  "x = 1\nx = x + 1\n",
		},
		{
			name:  "indented body and strings",
			src:   "simula f s\n    s = s + \"x = x + 1\"\n    balik s\nsulat f(\"\")\n",
			level: LevelBasic,
			want:  "simula f s\n    s += \"x = x + 1\"\n    balik s\nsulat f(\"\")\n",
			rules: []string{"compound_assignment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			got, changes, err := e.Optimize(tt.src, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			var fired []string
			for _, c := range changes {
				fired = append(fired, c.Rule.Name)
			}
			assert.Equal(t, tt.rules, fired)
		})
	}
}

func TestOptimizedIncrementPrintsEleven(t *testing.T) {
	e, store := newEngine(t)
	src := "x = 10\nx = x + 1\nsulat x\n"

	got, changes, err := e.Optimize(src, LevelAll)
	require.NoError(t, err)
	assert.Contains(t, got, "x += 1")
	require.Len(t, changes, 1)
	assert.Equal(t, 2, changes[0].Line)
	assert.Equal(t, "x = x + 1", changes[0].Before)
	assert.Equal(t, "x += 1", changes[0].After)
	assert.Equal(t, "11\n", runSource(t, got))

	r, ok := store.Get(changes[0].Rule.Signature())
	require.True(t, ok)
	assert.Equal(t, int64(1), r.Frequency)
}

func TestOptimizePreservesSemantics(t *testing.T) {
	programs := []string{
		"x = 10\nx = x + 1\nx = x - 3\nx = x * 2\nx = x / 4\nsulat x\n",
		"total = 0\npara i = 1 hanggang 10\n    total = total + i * i\nsulat total\n",
		"flag = 0\nkung flag == tama\n    sulat \"a\"\nkundi\n    sulat \"b\"\n",
		"n = 3\nhabang n == tama\n    sulat n\n    n = n - 1\n",
		"xs = [1, 2]\nxs[0] = xs[0] + 5\nsulat xs\n",
		"s = \"\"\npara i 1 3\n    s = s + teksto(i)\nsulat s\n",
		"a = 5\na = a - 2 * 2\na = a + -1\nsulat a\n",
		"simula fact n\n    r = 1\n    para i = 2 hanggang n\n        r = r * i\n    balik r\nsulat fact(6)\n",
	}
	for _, src := range programs {
		e, _ := newEngine(t)
		got, _, err := e.Optimize(src, LevelAll)
		require.NoError(t, err)
		assert.Equal(t, runSource(t, src), runSource(t, got), "optimizing changed the output of:\n%s", src)
	}
}

func TestOptimizeRequiresParsableSource(t *testing.T) {
	e, _ := newEngine(t)
	src := "kung\n"
	got, changes, err := e.Optimize(src, LevelAll)
	var oe *OptimizeError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, src, got)
	assert.Empty(t, changes)
}

func TestEquivalent(t *testing.T) {
	parse := func(src string) *ast.Program {
		prog, err := parser.Parse(src)
		require.NoError(t, err)
		return prog
	}
	assert.True(t, Equivalent(parse("x = 1\nx += 2\n"), parse("x = 1\nx = x + 2\n")))
	assert.True(t, Equivalent(parse("kung x == tama\n    sulat 1\n"), parse("kung x\n    sulat 1\n")))
	assert.False(t, Equivalent(parse("x = 1\nx += 2 - 1\n"), parse("x = 1\nx = x + 2 - 1\n")))
	assert.False(t, Equivalent(parse("sulat 1\n"), parse("sulat 2\n")))
}

func TestMask(t *testing.T) {
	src := "sulat \"a \\\"q\\\" b\", x // \"comment\"; x;\ny = \"open\nz = 8 / 2 # kept\n"
	m := mask(src)
	assert.NotContains(t, m.text, "a \\\"q")
	assert.NotContains(t, m.text, "comment")
	assert.NotContains(t, m.text, "x;")
	assert.Contains(t, m.text, "x //")
	assert.Contains(t, m.text, "8 / 2 # kept")
	assert.Len(t, m.strings, 3)
	assert.Equal(t, src, m.restore(m.text))
}
