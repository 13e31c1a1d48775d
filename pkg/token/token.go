// Package token defines the lexical tokens of the GZ language.
//
// Keywords are Tagalog words (simula, balik, sulat, kung ...). Blocks are
// delimited by indentation, so the lexer also produces INDENT, DEDENT and
// NEWLINE tokens.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // token.TokenType mirrors the parser's vocabulary
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL
	NEWLINE
	INDENT
	DEDENT

	// Literals
	IDENT  // x, fibonacci
	NUMBER // 123, 45.67
	STRING // "hello"

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	ASSIGN    // =
	PLUSEQ    // +=
	MINUSEQ   // -=
	STAREQ    // *=
	SLASHEQ   // /=
	EQ        // ==
	NE        // !=
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	COMMA     // ,
	COLON     // :
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }
	ARROW     // ->
	AT        // @
	operatorEnd

	// Keywords
	SIMULA     // function
	BALIK      // return
	SULAT      // print
	KUNG       // if
	KUNDI      // else
	PARA       // for
	HABANG     // while
	HANGGANG   // to (range sugar)
	TIGIL      // break
	TULOY      // continue
	TAMA       // true
	MALI       // false
	WALA       // null
	AT_AND     // at (logical and)
	O_OR       // o (logical or)
	HINDI      // hindi (logical not)
	UI_ELEMENT // ui_element
	UI_LAYOUT  // ui_layout
	UI_STYLE   // ui_style
	UI_EVENT   // ui_event
	keywordEnd
)

// Kind is the coarse classification of a token.
type Kind int

// Kind values.
const (
	KindEOF Kind = iota
	KindKeyword
	KindIdentifier
	KindNumber
	KindString
	KindOperator
	KindIndent
	KindDedent
	KindNewline
	KindIllegal
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "eof"
	case KindKeyword:
		return "keyword"
	case KindIdentifier:
		return "identifier"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindOperator:
		return "operator"
	case KindIndent:
		return "indent"
	case KindDedent:
		return "dedent"
	case KindNewline:
		return "newline"
	default:
		return "illegal"
	}
}

// Kind returns the coarse classification of the token type.
func (t TokenType) Kind() Kind {
	switch {
	case t == EOF:
		return KindEOF
	case t == NEWLINE:
		return KindNewline
	case t == INDENT:
		return KindIndent
	case t == DEDENT:
		return KindDedent
	case t == IDENT:
		return KindIdentifier
	case t == NUMBER:
		return KindNumber
	case t == STRING:
		return KindString
	case IsOperator(t):
		return KindOperator
	case IsKeyword(t):
		return KindKeyword
	default:
		return KindIllegal
	}
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",
	NEWLINE: "NEWLINE",
	INDENT:  "INDENT",
	DEDENT:  "DEDENT",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	ASSIGN:   "=",
	PLUSEQ:   "+=",
	MINUSEQ:  "-=",
	STAREQ:   "*=",
	SLASHEQ:  "/=",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	COMMA:    ",",
	COLON:    ":",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	LBRACE:   "{",
	RBRACE:   "}",
	ARROW:    "->",
	AT:       "@",

	SIMULA:     "simula",
	BALIK:      "balik",
	SULAT:      "sulat",
	KUNG:       "kung",
	KUNDI:      "kundi",
	PARA:       "para",
	HABANG:     "habang",
	HANGGANG:   "hanggang",
	TIGIL:      "tigil",
	TULOY:      "tuloy",
	TAMA:       "tama",
	MALI:       "mali",
	WALA:       "wala",
	AT_AND:     "at",
	O_OR:       "o",
	HINDI:      "hindi",
	UI_ELEMENT: "ui_element",
	UI_LAYOUT:  "ui_layout",
	UI_STYLE:   "ui_style",
	UI_EVENT:   "ui_event",
}

// keywords maps keyword spellings to their token types.
var keywords = map[string]TokenType{
	"simula":     SIMULA,
	"balik":      BALIK,
	"sulat":      SULAT,
	"kung":       KUNG,
	"kundi":      KUNDI,
	"para":       PARA,
	"habang":     HABANG,
	"hanggang":   HANGGANG,
	"tigil":      TIGIL,
	"tuloy":      TULOY,
	"tama":       TAMA,
	"mali":       MALI,
	"wala":       WALA,
	"at":         AT_AND,
	"o":          O_OR,
	"hindi":      HINDI,
	"ui_element": UI_ELEMENT,
	"ui_layout":  UI_LAYOUT,
	"ui_style":   UI_STYLE,
	"ui_event":   UI_EVENT,
}

// LookupIdent returns the keyword token type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t > operatorEnd && t < keywordEnd
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t < operatorEnd
}

// IsCompoundAssign returns true for +=, -=, *= and /=.
func IsCompoundAssign(t TokenType) bool {
	return t == PLUSEQ || t == MINUSEQ || t == STAREQ || t == SLASHEQ
}

// IsAssign returns true for = and the compound assignment operators.
func IsAssign(t TokenType) bool {
	return t == ASSIGN || IsCompoundAssign(t)
}

// Keywords returns every keyword spelling.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}

// Token is a single lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// Kind returns the coarse classification of the token.
func (t Token) Kind() Kind {
	return t.Type.Kind()
}

// Describe renders the token for error messages.
func (t Token) Describe() string {
	switch t.Type {
	case EOF, NEWLINE, INDENT, DEDENT:
		return t.Type.String()
	case STRING:
		return fmt.Sprintf("%q", t.Literal)
	default:
		if t.Literal != "" {
			return fmt.Sprintf("'%s'", t.Literal)
		}
		return t.Type.String()
	}
}
