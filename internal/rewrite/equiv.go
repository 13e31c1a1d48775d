package rewrite

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/leapstack-labs/gz/pkg/ast"
)

var ignorePositions = cmpopts.IgnoreTypes(ast.NodeInfo{})

// Equivalent reports whether two programs have the same normalized tree.
// Both programs are normalized in place.
func Equivalent(a, b *ast.Program) bool {
	normalize(a)
	normalize(b)
	return cmp.Equal(a, b, ignorePositions)
}

// Diff returns a readable difference of two normalized programs, for
// diagnostics.
func Diff(a, b *ast.Program) string {
	normalize(a)
	normalize(b)
	return cmp.Diff(a, b, ignorePositions)
}

// normalize rewrites the forms the optimization rules produce back into
// their long forms:
//
//	x op= e              becomes  x = x op (e)
//	kung c == tama       becomes  kung c
//	habang c == tama     becomes  habang c
//
// Compound assignments to index targets are left alone, since the index
// expression is evaluated once there.
func normalize(prog *ast.Program) {
	ast.Walk(prog, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.Assignment:
			id, ok := s.Target.(*ast.Identifier)
			if ok && s.IsCompound() {
				s.Value = &ast.BinaryOp{
					NodeInfo: s.NodeInfo,
					Op:       s.BinaryOperator(),
					Left:     &ast.Identifier{NodeInfo: id.NodeInfo, Name: id.Name},
					Right:    s.Value,
				}
				s.Op = "="
			}
		case *ast.If:
			s.Cond = stripTrueComparison(s.Cond)
		case *ast.While:
			s.Cond = stripTrueComparison(s.Cond)
		}
		return true
	})
}

func stripTrueComparison(cond ast.Expr) ast.Expr {
	for {
		bin, ok := cond.(*ast.BinaryOp)
		if !ok || bin.Op != "==" {
			return cond
		}
		lit, ok := bin.Right.(*ast.Literal)
		if !ok || lit.Kind != ast.LitBool || !lit.Bool {
			return cond
		}
		cond = bin.Left
	}
}
