package rewrite

import (
	"fmt"
	"strings"
)

// DivergenceError reports a correction pass that did not reach a fixed
// point within the pass bound. The source is returned unchanged.
type DivergenceError struct {
	Passes int
	Rules  []string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("correction did not converge after %d passes (still changing: %s)",
		e.Passes, strings.Join(e.Rules, ", "))
}

// OptimizeError reports that the optimization pass was skipped because
// the input does not parse.
type OptimizeError struct {
	Err error
}

func (e *OptimizeError) Error() string {
	return fmt.Sprintf("optimization skipped: %v", e.Err)
}

func (e *OptimizeError) Unwrap() error { return e.Err }
