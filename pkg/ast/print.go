package ast

import (
	"strconv"
	"strings"
)

// Binding strength of operators, lowest first. The parser and the
// printer share these so printed expressions parse back to the same tree.
const (
	PrecLowest = iota
	PrecOr
	PrecAnd
	PrecNot
	PrecCompare
	PrecSum
	PrecProduct
	PrecUnary
)

// Precedence returns the binding strength of a binary operator.
func Precedence(op string) int {
	switch op {
	case "o":
		return PrecOr
	case "at":
		return PrecAnd
	case "==", "!=", "<", "<=", ">", ">=":
		return PrecCompare
	case "+", "-":
		return PrecSum
	case "*", "/", "%":
		return PrecProduct
	default:
		return PrecLowest
	}
}

func (l *Literal) String() string {
	switch l.Kind {
	case LitInt:
		return strconv.FormatInt(l.Int, 10)
	case LitFloat:
		s := strconv.FormatFloat(l.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnNI") {
			s += ".0"
		}
		return s
	case LitString:
		return Quote(l.Str)
	case LitBool:
		if l.Bool {
			return "tama"
		}
		return "mali"
	default:
		return "wala"
	}
}

func (i *Identifier) String() string { return i.Name }

func (b *BinaryOp) String() string {
	prec := Precedence(b.Op)
	// Operators are left-associative: a right operand of equal strength
	// needs parentheses, a left one does not.
	return wrap(b.Left, prec, false) + " " + b.Op + " " + wrap(b.Right, prec, true)
}

func (u *UnaryOp) String() string {
	if u.Op == "hindi" {
		return "hindi " + wrap(u.X, PrecNot, false)
	}
	return u.Op + wrap(u.X, PrecUnary, false)
}

func (u *UnaryOp) precedence() int {
	if u.Op == "hindi" {
		return PrecNot
	}
	return PrecUnary
}

func (c *Call) String() string {
	return c.Callee.String() + "(" + joinExprs(c.Args) + ")"
}

func (x *Index) String() string {
	return wrap(x.Collection, PrecUnary+1, false) + "[" + x.Index.String() + "]"
}

func (l *ListLiteral) String() string {
	return "[" + joinExprs(l.Elements) + "]"
}

func (m *MapLiteral) String() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Quote renders s as a GZ string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func wrap(e Expr, parent int, right bool) string {
	var prec int
	switch n := e.(type) {
	case *BinaryOp:
		prec = Precedence(n.Op)
	case *UnaryOp:
		prec = n.precedence()
	default:
		return e.String()
	}
	if prec < parent || (right && prec == parent) {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
