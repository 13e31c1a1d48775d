// Package ast defines the abstract syntax tree of GZ programs.
//
// A tree is produced per compile by package parser, owned by that compile
// and discarded after evaluation. UI nodes (ui.go) are inert: the evaluator
// skips them and they are handed verbatim to a rendering collaborator.
package ast

import "github.com/leapstack-labs/gz/pkg/token"

// Node is implemented by every AST node.
type Node interface {
	Position() token.Position
}

// Stmt represents a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Expr represents an expression.
type Expr interface {
	Node
	exprNode()
	String() string
}

// NodeInfo provides the source position shared by all nodes.
type NodeInfo struct {
	Pos token.Position
}

// Position returns the node's source position.
func (n NodeInfo) Position() token.Position { return n.Pos }

// At builds a NodeInfo for pos.
func At(pos token.Position) NodeInfo { return NodeInfo{Pos: pos} }

// Program is the root of a parsed source file.
type Program struct {
	NodeInfo
	Statements []Stmt
}

// ---------- Statements ----------

// FunctionDecl is `simula name p1 p2` followed by an indented body.
type FunctionDecl struct {
	NodeInfo
	Name   string
	Params []string
	Body   []Stmt
}

// Assignment is `target = value` or a compound form such as `target += value`.
// Op holds the operator token text ("=", "+=", "-=", "*=", "/=").
type Assignment struct {
	NodeInfo
	Target Expr // *Identifier or *Index
	Op     string
	Value  Expr
}

// IsCompound reports whether the assignment uses a compound operator.
func (a *Assignment) IsCompound() bool { return a.Op != "=" }

// BinaryOperator returns the arithmetic operator of a compound assignment.
func (a *Assignment) BinaryOperator() string {
	if !a.IsCompound() {
		return ""
	}
	return a.Op[:len(a.Op)-1]
}

// If is `kung cond` with optional `kundi` block. `kundi kung` chains are
// represented as a single nested If inside Else.
type If struct {
	NodeInfo
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// While is `habang cond`.
type While struct {
	NodeInfo
	Cond Expr
	Body []Stmt
}

// ForRange is `para var start end` (or the `para var = start hanggang end`
// sugar); the range is inclusive on both ends.
type ForRange struct {
	NodeInfo
	Var   string
	Start Expr
	End   Expr
	Body  []Stmt
}

// Return is `balik [expr {, expr}]`.
type Return struct {
	NodeInfo
	Values []Expr
}

// Print is `sulat expr {, expr}`.
type Print struct {
	NodeInfo
	Values []Expr
}

// Break is `tigil`.
type Break struct {
	NodeInfo
}

// Continue is `tuloy`.
type Continue struct {
	NodeInfo
}

// ExprStmt is an expression evaluated for its side effects, usually a call.
type ExprStmt struct {
	NodeInfo
	X Expr
}

func (*FunctionDecl) stmtNode() {}
func (*Assignment) stmtNode()   {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*ForRange) stmtNode()     {}
func (*Return) stmtNode()       {}
func (*Print) stmtNode()        {}
func (*Break) stmtNode()        {}
func (*Continue) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}

// ---------- Expressions ----------

// LiteralKind identifies the type of a literal.
type LiteralKind int

// LiteralKind values.
const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

// Literal is a constant value. Exactly one of the value fields is
// meaningful, selected by Kind.
type Literal struct {
	NodeInfo
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// Identifier is a variable or function name.
type Identifier struct {
	NodeInfo
	Name string
}

// BinaryOp is `left op right`. Op is the operator spelling, with logical
// operators spelled as their keywords ("at", "o").
type BinaryOp struct {
	NodeInfo
	Op    string
	Left  Expr
	Right Expr
}

// UnaryOp is `-x` or `hindi x`.
type UnaryOp struct {
	NodeInfo
	Op string
	X  Expr
}

// Call is `callee(args...)`.
type Call struct {
	NodeInfo
	Callee Expr
	Args   []Expr
}

// Index is `collection[index]`.
type Index struct {
	NodeInfo
	Collection Expr
	Index      Expr
}

// ListLiteral is `[a, b, c]`.
type ListLiteral struct {
	NodeInfo
	Elements []Expr
}

// MapEntry is one `key: value` pair of a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// MapLiteral is `{k: v, ...}`; entry order is preserved.
type MapLiteral struct {
	NodeInfo
	Entries []MapEntry
}

func (*Literal) exprNode()     {}
func (*Identifier) exprNode()  {}
func (*BinaryOp) exprNode()    {}
func (*UnaryOp) exprNode()     {}
func (*Call) exprNode()        {}
func (*Index) exprNode()       {}
func (*ListLiteral) exprNode() {}
func (*MapLiteral) exprNode()  {}
