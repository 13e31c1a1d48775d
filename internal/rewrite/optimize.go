package rewrite

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/gz/pkg/parser"
)

// Optimization levels.
const (
	LevelNone    = 0
	LevelBasic   = 1
	LevelDefault = 2
	LevelAll     = 3
)

// Optimize applies the optimization rules enabled at level to src, one line
// at a time. A candidate line is kept only if the rewritten program parses
// and is equivalent to the original. src must parse; otherwise it is
// returned unchanged with an *OptimizeError.
func (e *Engine) Optimize(src string, level int) (string, []Change, error) {
	if level <= LevelNone {
		return src, nil, nil
	}
	if _, err := parser.Parse(src); err != nil {
		return src, nil, &OptimizeError{Err: err}
	}
	rules := e.store.OptimizationRules(level)
	if len(rules) == 0 {
		return src, nil, nil
	}

	m := mask(src)
	lines := strings.Split(m.text, "\n")
	var changes []Change

	for i := range lines {
		for _, r := range rules {
			re := e.compile(r)
			if re == nil {
				continue
			}
			candidate, n := e.replace(re, r, lines[i])
			if n == 0 || strings.Contains(candidate, "\n") {
				continue
			}
			if !e.accept(m, lines, i, candidate) {
				e.logger.Debug("rejected optimization",
					slog.String("rule", r.Label()),
					slog.Int("line", i+1))
				continue
			}
			changes = append(changes, Change{
				Kind:   KindOptimization,
				Rule:   r,
				Count:  n,
				Line:   i + 1,
				Before: m.restore(lines[i]),
				After:  m.restore(candidate),
			})
			lines[i] = candidate
		}
	}

	if len(changes) == 0 {
		return src, nil, nil
	}
	e.publish(changes)
	return m.restore(strings.Join(lines, "\n")), changes, nil
}

// accept reports whether replacing line i with candidate leaves a program
// that parses to a tree equivalent to the current one.
func (e *Engine) accept(m masked, lines []string, i int, candidate string) bool {
	before, err := parser.Parse(m.restore(strings.Join(lines, "\n")))
	if err != nil {
		return false
	}

	next := make([]string, len(lines))
	copy(next, lines)
	next[i] = candidate
	after, err := parser.Parse(m.restore(strings.Join(next, "\n")))
	if err != nil {
		return false
	}
	return Equivalent(before, after)
}
