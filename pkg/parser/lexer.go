package parser

import (
	"fmt"

	"github.com/leapstack-labs/gz/pkg/token"
)

// Lexer tokenizes GZ source.
//
// Indentation is significant: the first token of a line deeper than the
// enclosing block is preceded by INDENT, and returning to an outer level
// produces one DEDENT per closed block. Every non-blank line ends with a
// NEWLINE. Lexical errors are reported as ILLEGAL tokens whose literal is the
// error message; lexing continues after them.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	indents    []int // open indentation levels, outermost first
	indentChar byte  // ' ' or '\t' once the first indented line is seen
	lineStart  bool
	lineHasTok bool
	pending    []token.Token
	done       bool
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:     input,
		line:      1,
		indents:   []int{0},
		lineStart: true,
	}
	l.readChar()
	return l
}

// Tokenize lexes the whole input and returns the token stream up to and
// including EOF. The first lexical error aborts tokenization.
func Tokenize(input string) ([]token.Token, error) {
	l := NewLexer(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.ILLEGAL {
			return nil, &LexError{Pos: tok.Pos, Message: tok.Literal}
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	if l.done {
		return token.Token{Type: token.EOF, Pos: l.currentPos()}
	}

	if l.lineStart {
		l.lineStart = false
		if l.readIndentation() {
			return l.NextToken()
		}
	}

	l.skipSpacesAndComments()
	pos := l.currentPos()

	if l.atEOF() {
		l.finish(pos)
		return l.NextToken()
	}

	if l.ch == '\n' {
		l.readChar()
		l.lineStart = true
		l.lineHasTok = false
		return token.Token{Type: token.NEWLINE, Literal: "\n", Pos: pos}
	}

	l.lineHasTok = true

	switch {
	case isLetter(l.ch):
		lit := l.readIdentifier()
		return token.Token{Type: token.LookupIdent(lit), Literal: lit, Pos: pos}
	case isDigit(l.ch):
		return l.readNumber(pos)
	case l.ch == '"':
		return l.readString(pos)
	}

	if tok, ok := l.readOperator(pos); ok {
		return tok
	}

	ch := l.ch
	l.readChar()
	return l.illegal(pos, fmt.Sprintf("invalid character %q", ch))
}

// readIndentation measures the indentation of the next non-blank line and
// queues INDENT/DEDENT tokens. It reports whether anything was queued.
func (l *Lexer) readIndentation() bool {
	for {
		start := l.currentPos()
		width := 0
		var spaces, tabs bool
		for l.ch == ' ' || l.ch == '\t' {
			if l.ch == ' ' {
				spaces = true
			} else {
				tabs = true
			}
			width++
			l.readChar()
		}

		// Blank and comment-only lines carry no indentation.
		if l.ch == '\r' && l.peekChar() == '\n' {
			l.readChar()
		}
		if l.atEOF() {
			return false
		}
		if l.ch == '\n' {
			l.readChar()
			continue
		}
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLine()
			continue
		}

		if width > 0 {
			ch := byte(' ')
			if tabs {
				ch = '\t'
			}
			if spaces && tabs || (l.indentChar != 0 && l.indentChar != ch) {
				l.pending = append(l.pending, l.illegal(start, ErrMixedIndent))
				return true
			}
			l.indentChar = ch
		}
		return l.adjustIndent(start, width)
	}
}

func (l *Lexer) adjustIndent(pos token.Position, width int) bool {
	top := l.indents[len(l.indents)-1]
	switch {
	case width > top:
		l.indents = append(l.indents, width)
		l.pending = append(l.pending, token.Token{Type: token.INDENT, Pos: pos})
	case width < top:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, token.Token{Type: token.DEDENT, Pos: pos})
		}
		if l.indents[len(l.indents)-1] != width {
			l.indents = append(l.indents, width)
			l.pending = append(l.pending, l.illegal(pos, ErrInconsistentDedent))
		}
	}
	return len(l.pending) > 0
}

// finish queues the final NEWLINE, the outstanding DEDENTs and EOF.
func (l *Lexer) finish(pos token.Position) {
	if l.lineHasTok {
		l.pending = append(l.pending, token.Token{Type: token.NEWLINE, Pos: pos})
		l.lineHasTok = false
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.pending = append(l.pending, token.Token{Type: token.DEDENT, Pos: pos})
	}
	l.pending = append(l.pending, token.Token{Type: token.EOF, Pos: pos})
	l.done = true
}

func (l *Lexer) skipSpacesAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// skipLine consumes the rest of the current line including its newline.
func (l *Lexer) skipLine() {
	for !l.atEOF() && l.ch != '\n' {
		l.readChar()
	}
	if l.ch == '\n' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) {
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		return l.illegal(pos, ErrInvalidNumber)
	}
	return token.Token{Type: token.NUMBER, Literal: l.input[start:l.pos], Pos: pos}
}

// readString reads a double-quoted literal. The token literal holds the
// unescaped value.
func (l *Lexer) readString(pos token.Position) token.Token {
	l.readChar() // opening quote
	var buf []byte
	for {
		switch {
		case l.atEOF() || l.ch == '\n':
			return l.illegal(pos, ErrUnterminatedString)
		case l.ch == '"':
			l.readChar()
			return token.Token{Type: token.STRING, Literal: string(buf), Pos: pos}
		case l.ch == '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			case '"', '\\':
				buf = append(buf, l.ch)
			case '\n', 0:
				return l.illegal(pos, ErrUnterminatedString)
			default:
				buf = append(buf, '\\', l.ch)
			}
			l.readChar()
		default:
			buf = append(buf, l.ch)
			l.readChar()
		}
	}
}

var twoCharOps = map[string]token.TokenType{
	"+=": token.PLUSEQ,
	"-=": token.MINUSEQ,
	"*=": token.STAREQ,
	"/=": token.SLASHEQ,
	"==": token.EQ,
	"!=": token.NE,
	"<=": token.LE,
	">=": token.GE,
	"->": token.ARROW,
}

var oneCharOps = map[byte]token.TokenType{
	'+': token.PLUS,
	'-': token.MINUS,
	'*': token.STAR,
	'/': token.SLASH,
	'%': token.PERCENT,
	'=': token.ASSIGN,
	'<': token.LT,
	'>': token.GT,
	',': token.COMMA,
	':': token.COLON,
	'(': token.LPAREN,
	')': token.RPAREN,
	'[': token.LBRACKET,
	']': token.RBRACKET,
	'{': token.LBRACE,
	'}': token.RBRACE,
	'@': token.AT,
}

func (l *Lexer) readOperator(pos token.Position) (token.Token, bool) {
	if l.peekChar() != 0 {
		lit := string([]byte{l.ch, l.peekChar()})
		if t, ok := twoCharOps[lit]; ok {
			l.readChar()
			l.readChar()
			return token.Token{Type: t, Literal: lit, Pos: pos}, true
		}
	}
	if t, ok := oneCharOps[l.ch]; ok {
		lit := string(l.ch)
		l.readChar()
		return token.Token{Type: t, Literal: lit, Pos: pos}, true
	}
	return token.Token{}, false
}

func (l *Lexer) illegal(pos token.Position, msg string) token.Token {
	return token.Token{Type: token.ILLEGAL, Literal: msg, Pos: pos}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
