package parser

import (
	"fmt"

	"github.com/leapstack-labs/gz/pkg/token"
)

// SyntaxError represents a parsing error with position information.
// Either Expected/Found or Message is set.
type SyntaxError struct {
	Pos      token.Position
	Expected string
	Found    string
	Message  string
}

func (e *SyntaxError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("syntax error at line %d, column %d: expected %s, found %s",
		e.Pos.Line, e.Pos.Column, e.Expected, e.Found)
}

// LexError represents a lexical analysis error.
type LexError struct {
	Pos     token.Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnterminatedString = "unterminated string literal"
	ErrInvalidNumber      = "invalid number literal"
	ErrMixedIndent        = "inconsistent indentation: tabs and spaces mixed"
	ErrInconsistentDedent = "inconsistent indentation: dedent does not match any outer level"

	ErrUnexpectedIndent = "unexpected indent"
	ErrOutsideLoop      = "%s outside loop"
	ErrElseWithoutIf    = "kundi without kung"
	ErrInvalidTarget    = "cannot assign to %s"
	ErrDuplicateParam   = "duplicate parameter %q in function %s"
)
