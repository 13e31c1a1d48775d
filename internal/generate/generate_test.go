package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/pkg/parser"
)

type templates []memory.Record

func (t templates) Templates() []memory.Record { return t }

func TestGenerateDefaults(t *testing.T) {
	g := New(memory.NewInMemory(memory.Options{}), 0)

	tests := []struct {
		prompt string
		want   string
	}{
		{"write a Hello World program", "hello_world"},
		{"FACTORIAL of a number", "factorial"},
		{"compute the average of three values", "average"},
		{"hello_world", "hello_world"},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			res := g.Generate(tt.prompt)
			require.False(t, res.Fallback)
			assert.Nil(t, res.NotFound)
			assert.Equal(t, tt.want, res.Template.Name)
			assert.Equal(t, res.Template.Code, res.Code)

			_, err := parser.Parse(res.Code)
			assert.NoError(t, err, "templates are valid programs")
		})
	}
}

func TestGenerateFallback(t *testing.T) {
	g := New(memory.NewInMemory(memory.Options{}), 0)
	res := g.Generate("sort a list of strings")
	assert.True(t, res.Fallback)
	assert.Equal(t, FallbackCode, res.Code)
	require.NotNil(t, res.NotFound)
	assert.Contains(t, res.NotFound.Error(), "sort a list of strings")

	_, err := parser.Parse(res.Code)
	assert.NoError(t, err)
}

func TestGenerateEmptyStore(t *testing.T) {
	res := New(templates(nil), 0).Generate("hello")
	assert.True(t, res.Fallback)
}

func TestGenerateTieBreaks(t *testing.T) {
	src := templates{
		{Kind: memory.KindTemplate, Name: "greet_b", Description: "greeting", Confidence: 0.5, Frequency: 9},
		{Kind: memory.KindTemplate, Name: "greet_a", Description: "greeting", Confidence: 0.5, Frequency: 9},
		{Kind: memory.KindTemplate, Name: "greet_c", Description: "greeting", Confidence: 0.9, Frequency: 0},
		{Kind: memory.KindTemplate, Name: "greet_d", Description: "greeting", Confidence: 0.5, Frequency: 10},
	}
	g := New(src, 0)
	assert.Equal(t, "greet_c", g.Generate("greeting").Template.Name, "confidence first")

	g = New(src[:2], 0)
	assert.Equal(t, "greet_a", g.Generate("greeting").Template.Name, "then name")

	g = New(append(templates{}, src[0], src[1], src[3]), 0)
	assert.Equal(t, "greet_d", g.Generate("greeting").Template.Name, "then frequency")
}

func TestScore(t *testing.T) {
	g := New(templates(nil), 0)
	tmpl := memory.Record{Name: "hello_world", Description: "Print Hello, World! from main"}
	// hello and world match the name (2 each) and the description (1 each),
	// and the whole name occurs in the prompt.
	assert.Equal(t, 7, g.Score("hello world", tmpl))
	assert.Equal(t, 0, g.Score("the a of", tmpl))
	assert.Equal(t, 1, g.Score("print", tmpl))
}

func TestMinScore(t *testing.T) {
	src := templates{{Kind: memory.KindTemplate, Name: "hello_world", Description: "print greeting"}}
	assert.False(t, New(src, 1).Generate("print").Fallback)
	assert.True(t, New(src, 2).Generate("print").Fallback)
}
