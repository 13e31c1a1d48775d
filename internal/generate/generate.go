// Package generate maps a free-text prompt to the best matching code
// template in the collective memory. Matching is lexical: prompt words are
// compared with the words of each template's name and description.
package generate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/gz/internal/memory"
)

// FallbackCode is returned when no template matches the prompt.
const FallbackCode = "simula main\n    balik 0\n"

// DefaultMinScore is the lowest score a template needs to be chosen.
const DefaultMinScore = 1

// Scoring weights.
const (
	nameWordWeight  = 2
	descWordWeight  = 1
	wholeNameWeight = 1
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "to": true, "and": true,
	"in": true, "for": true, "with": true, "from": true, "me": true, "please": true,
	"write": true, "make": true, "create": true, "program": true, "code": true,
}

// TemplateSource provides the stored templates.
type TemplateSource interface {
	Templates() []memory.Record
}

// TemplateNotFoundError reports that no template cleared the minimum score.
// It is informational: Generate still returns the fallback program.
type TemplateNotFoundError struct {
	Prompt   string
	MinScore int
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no template matches %q (minimum score %d); using the empty program", e.Prompt, e.MinScore)
}

// Result is the outcome of a generation request.
type Result struct {
	Template memory.Record
	Code     string
	Score    int
	// Fallback is set when no template matched. NotFound then explains why.
	Fallback bool
	NotFound *TemplateNotFoundError
}

// Generator scores templates against prompts.
type Generator struct {
	source   TemplateSource
	minScore int
	fold     cases.Caser
}

// New creates a Generator. A minScore of 0 or less uses DefaultMinScore.
func New(source TemplateSource, minScore int) *Generator {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Generator{source: source, minScore: minScore, fold: cases.Fold()}
}

type candidate struct {
	tmpl  memory.Record
	score int
}

// Generate returns the best template for prompt, or the fallback program.
// Ties go to the higher confidence, then the higher frequency, then the
// name.
func (g *Generator) Generate(prompt string) Result {
	words := g.words(prompt)
	folded := g.fold.String(prompt)

	var candidates []candidate
	for _, t := range g.source.Templates() {
		candidates = append(candidates, candidate{tmpl: t, score: g.score(words, folded, t)})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(b.score, a.score),
			cmp.Compare(b.tmpl.Confidence, a.tmpl.Confidence),
			cmp.Compare(b.tmpl.Frequency, a.tmpl.Frequency),
			cmp.Compare(a.tmpl.Name, b.tmpl.Name),
		)
	})

	if len(candidates) == 0 || candidates[0].score < g.minScore {
		return Result{
			Code:     FallbackCode,
			Fallback: true,
			NotFound: &TemplateNotFoundError{Prompt: prompt, MinScore: g.minScore},
		}
	}
	best := candidates[0]
	return Result{Template: best.tmpl, Code: best.tmpl.Code, Score: best.score}
}

// Score returns the score of a single template, for diagnostics.
func (g *Generator) Score(prompt string, t memory.Record) int {
	return g.score(g.words(prompt), g.fold.String(prompt), t)
}

func (g *Generator) score(words []string, folded string, t memory.Record) int {
	nameWords := g.set(t.Name)
	descWords := g.set(t.Description)

	score := 0
	for _, w := range words {
		if nameWords[w] {
			score += nameWordWeight
		}
		if descWords[w] {
			score += descWordWeight
		}
	}
	name := g.fold.String(t.Name)
	if name != "" && (strings.Contains(folded, name) || strings.Contains(folded, strings.ReplaceAll(name, "_", " "))) {
		score += wholeNameWeight
	}
	return score
}

// words splits s into distinct case-folded words, dropping stop words.
func (g *Generator) words(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.FieldsFunc(g.fold.String(s), notWordRune) {
		if stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func (g *Generator) set(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range g.words(s) {
		out[w] = true
	}
	return out
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
