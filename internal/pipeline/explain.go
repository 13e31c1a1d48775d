package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/gz/internal/rewrite"
	"github.com/leapstack-labs/gz/pkg/ast"
)

// Explanation summarizes the structure of a compiled program and the
// rewrites applied to it.
type Explanation struct {
	Functions    []string
	Loops        []string
	Conditionals []string
	UIElements   []string
	Rewrites     []string
}

// Explain builds the explanation of a compile result.
func Explain(res *Result) *Explanation {
	ex := &Explanation{}
	if res.Program != nil {
		ast.Walk(res.Program, func(n ast.Node) bool {
			switch s := n.(type) {
			case *ast.FunctionDecl:
				ex.Functions = append(ex.Functions, strings.TrimSpace(s.Name+" "+strings.Join(s.Params, " ")))
			case *ast.ForRange:
				ex.Loops = append(ex.Loops, fmt.Sprintf("para %s from %s to %s", s.Var, s.Start, s.End))
			case *ast.While:
				ex.Loops = append(ex.Loops, "habang "+s.Cond.String())
			case *ast.If:
				ex.Conditionals = append(ex.Conditionals, "kung "+s.Cond.String())
			case *ast.UIElement:
				ex.UIElements = append(ex.UIElements, s.Name+" ("+s.Type+")")
			}
			return true
		})
	}
	for _, c := range res.Corrections {
		ex.Rewrites = append(ex.Rewrites, describeChange(c))
	}
	for _, c := range res.Optimizations {
		ex.Rewrites = append(ex.Rewrites, describeChange(c))
	}
	return ex
}

func describeChange(c rewrite.Change) string {
	where := ""
	if c.Line > 0 {
		where = fmt.Sprintf(" (line %d)", c.Line)
	}
	return fmt.Sprintf("%s %s%s: %s", c.Kind, c.Rule.Label(), where, c.Rule.Explanation)
}

// Render writes the explanation as plain text.
func (ex *Explanation) Render(w io.Writer) {
	fmt.Fprintln(w, "Code Explanation:")
	section(w, "Functions", ex.Functions)
	section(w, "Loops", ex.Loops)
	section(w, "Conditionals", ex.Conditionals)
	section(w, "UI elements", ex.UIElements)
	section(w, "Applied rules", ex.Rewrites)
	if len(ex.Functions)+len(ex.Loops)+len(ex.Conditionals)+len(ex.UIElements) == 0 {
		fmt.Fprintln(w, "\nThe program is a sequence of top-level statements.")
	}
}

func section(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "- %s\n", item)
	}
}
