// Package parser provides the GZ lexer and recursive descent parser.
//
// # Usage
//
//	prog, err := parser.Parse(src)
//	if err != nil {
//	    // *LexError or *SyntaxError
//	}
//
// Parse is strict and stops at the first malformed construct; it is the only
// mode whose output may be evaluated. ParseTolerant recovers at statement
// boundaries and reports every error it saw, for diagnostics and learning.
//
// # Grammar Overview
//
//	program    → { statement }
//	statement  → function | return | print | if | while | for | control
//	           | ui_block | simple
//	function   → "simula" IDENT { IDENT } NEWLINE block
//	return     → "balik" [ expr_list ] NEWLINE
//	print      → "sulat" [ expr_list ] NEWLINE
//	if         → "kung" expr NEWLINE block
//	             { "kundi" "kung" expr NEWLINE block } [ "kundi" NEWLINE block ]
//	while      → "habang" expr NEWLINE block
//	for        → "para" IDENT ( expr expr | "=" expr "hanggang" expr ) NEWLINE block
//	control    → ( "tigil" | "tuloy" ) NEWLINE
//	simple     → expr [ assign_op expr ] NEWLINE
//	block      → INDENT { statement } DEDENT
//
// UI blocks are described in parser_ui.go, expressions in parser_expr.go.
package parser

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/token"
)

// Mode selects how the parser reacts to errors.
type Mode int

// Mode values.
const (
	// Strict stops at the first error.
	Strict Mode = iota
	// Tolerant resynchronizes at the next statement and keeps going.
	Tolerant
)

// Parser parses GZ source into an AST.
type Parser struct {
	lexer     *Lexer
	token     token.Token // current token
	peek      token.Token // lookahead token
	errors    []error
	mode      Mode
	loopDepth int
}

// NewParser creates a new parser for the given source.
func NewParser(src string, mode Mode) *Parser {
	p := &Parser{
		lexer: NewLexer(src),
		mode:  mode,
	}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses src in strict mode and returns the first error found.
func Parse(src string) (*ast.Program, error) {
	p := NewParser(src, Strict)
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return prog, nil
}

// ParseTolerant parses src, recovering from errors. It always returns the
// statements it could parse; the error, when non-nil, is a
// *multierror.Error holding every *LexError and *SyntaxError in source order.
func ParseTolerant(src string) (*ast.Program, error) {
	p := NewParser(src, Tolerant)
	prog := p.ParseProgram()
	var result *multierror.Error
	for _, err := range p.errors {
		result = multierror.Append(result, err)
	}
	return prog, result.ErrorOrNil()
}

// Errors returns the errors collected so far.
func (p *Parser) Errors() []error {
	return p.errors
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{NodeInfo: ast.At(token.Position{Line: 1, Column: 1})}
	for !p.check(token.EOF) && !p.failed() {
		switch {
		case p.match(token.NEWLINE), p.match(token.DEDENT):
			continue
		case p.check(token.INDENT):
			p.addMessage(ErrUnexpectedIndent)
			p.skipBlock()
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		} else {
			p.synchronize()
		}
	}
	return prog
}

// ---------- Token Helpers ----------

// nextToken advances to the next token. ILLEGAL tokens are recorded as lex
// errors and skipped.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
	for p.token.Type == token.ILLEGAL {
		p.addLexError(p.token)
		p.token = p.peek
		p.peek = p.lexer.NextToken()
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(describeType(t))
	return false
}

// expectIdent consumes an identifier and returns its name.
func (p *Parser) expectIdent(what string) (string, bool) {
	if !p.check(token.IDENT) {
		p.addError(what)
		return "", false
	}
	name := p.token.Literal
	p.nextToken()
	return name, true
}

// atLineEnd reports whether the current token ends a statement.
func (p *Parser) atLineEnd() bool {
	return p.check(token.NEWLINE) || p.check(token.EOF) || p.check(token.DEDENT)
}

// endStatement consumes the NEWLINE terminating a statement.
func (p *Parser) endStatement() bool {
	if p.match(token.NEWLINE) || p.check(token.EOF) || p.check(token.DEDENT) {
		return true
	}
	p.addError("end of line")
	return false
}

// ---------- Error Helpers ----------

// failed reports whether a strict parse has hit its first error.
func (p *Parser) failed() bool {
	return p.mode == Strict && len(p.errors) > 0
}

// addError adds a syntax error describing what was expected at the current token.
func (p *Parser) addError(expected string) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, &SyntaxError{
		Pos:      p.token.Pos,
		Expected: expected,
		Found:    p.token.Describe(),
	})
}

// addMessage adds a free-form syntax error at the current token.
func (p *Parser) addMessage(format string, args ...any) {
	p.addMessageAt(p.token.Pos, format, args...)
}

func (p *Parser) addMessageAt(pos token.Position, format string, args ...any) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, &SyntaxError{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) addLexError(tok token.Token) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, &LexError{Pos: tok.Pos, Message: tok.Literal})
}

// synchronize skips to the start of the next statement after an error,
// including any indented block that belonged to the broken line.
func (p *Parser) synchronize() {
	if p.failed() {
		return
	}
	for !p.atLineEnd() {
		p.nextToken()
	}
	if p.match(token.NEWLINE) && p.check(token.INDENT) {
		p.skipBlock()
	}
}

// skipBlock consumes an INDENT and everything up to its matching DEDENT.
func (p *Parser) skipBlock() {
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.INDENT:
			depth++
		case token.DEDENT:
			depth--
		}
		p.nextToken()
		if depth == 0 {
			return
		}
	}
}

func describeType(t token.TokenType) string {
	if token.IsOperator(t) || token.IsKeyword(t) {
		return fmt.Sprintf("'%s'", t)
	}
	switch t {
	case token.IDENT:
		return "identifier"
	case token.NEWLINE:
		return "end of line"
	case token.INDENT:
		return "indented block"
	default:
		return t.String()
	}
}
