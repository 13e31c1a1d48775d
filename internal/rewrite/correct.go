package rewrite

import (
	"log/slog"
	"strings"
)

// Correct runs the correction rules over src until no rule changes it.
// Rules are tried by confidence, then frequency, then insertion order.
// String literal contents are never rewritten. Each rule application that
// changes the text yields one Change holding the text before and after it.
//
// If the text is still changing after the pass bound, Correct returns src
// unchanged with a *DivergenceError. Listeners and the rule store only hear
// about changes from a pass that converged.
func (e *Engine) Correct(src string) (string, []Change, error) {
	normalized := strings.ReplaceAll(src, "\r\n", "\n")
	m := mask(normalized)
	text := m.text

	rules := e.store.CorrectionRules()
	var changes []Change
	for pass := 1; ; pass++ {
		var changing []string
		for _, r := range rules {
			re := e.compile(r)
			if re == nil {
				continue
			}
			out, n := e.replace(re, r, text)
			if n == 0 {
				continue
			}
			changes = append(changes, Change{
				Kind:   KindCorrection,
				Rule:   r,
				Count:  n,
				Before: m.restore(text),
				After:  m.restore(out),
			})
			text = out
			changing = append(changing, r.Label())
		}
		if len(changing) == 0 {
			break
		}
		if pass == e.maxPasses {
			e.logger.Warn("correction diverged", slog.Int("passes", pass), slog.Any("rules", changing))
			return src, nil, &DivergenceError{Passes: pass, Rules: changing}
		}
	}

	if len(changes) == 0 {
		return src, nil, nil
	}
	e.logger.Debug("corrected source", slog.Int("applications", len(changes)))
	e.publish(changes)
	return m.restore(text), changes, nil
}
