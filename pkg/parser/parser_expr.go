package parser

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/token"
)

// Expression parsing uses precedence climbing with the levels defined in
// package ast, lowest first:
//
//	PrecOr      = o
//	PrecAnd     = at
//	PrecNot     = hindi (prefix)
//	PrecCompare = == != < <= > >=
//	PrecSum     = + -
//	PrecProduct = * / %
//	PrecUnary   = - (prefix)
//
// Calls and indexing are postfix and bind tightest. Binary operators are
// left-associative.

// parseExpression parses an expression.
func (p *Parser) parseExpression() ast.Expr {
	return p.parseExpressionWithPrecedence(ast.PrecOr)
}

// parseExpressionWithPrecedence parses operators binding at least as tight as minPrecedence.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) ast.Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		op, ok := infixOperator(p.token.Type)
		if !ok {
			break
		}
		prec := ast.Precedence(op)
		if prec < minPrecedence {
			break
		}

		pos := p.token.Pos
		p.nextToken()
		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			return nil
		}
		left = &ast.BinaryOp{NodeInfo: ast.At(pos), Op: op, Left: left, Right: right}
	}

	return left
}

// infixOperator returns the operator spelling of an infix token.
func infixOperator(t token.TokenType) (string, bool) {
	switch t {
	case token.O_OR:
		return "o", true
	case token.AT_AND:
		return "at", true
	case token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT:
		return t.String(), true
	default:
		return "", false
	}
}

// parsePrefixExpr parses prefix operators and primary expressions.
func (p *Parser) parsePrefixExpr() ast.Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case token.HINDI:
		p.nextToken()
		x := p.parseExpressionWithPrecedence(ast.PrecNot)
		if x == nil {
			return nil
		}
		return &ast.UnaryOp{NodeInfo: ast.At(pos), Op: "hindi", X: x}

	case token.MINUS:
		p.nextToken()
		x := p.parseExpressionWithPrecedence(ast.PrecUnary)
		if x == nil {
			return nil
		}
		return &ast.UnaryOp{NodeInfo: ast.At(pos), Op: "-", X: x}

	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// parsePrimary parses literals, identifiers, grouping, lists and maps.
func (p *Parser) parsePrimary() ast.Expr {
	tok := p.token
	info := ast.At(tok.Pos)

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return p.numberLiteral(tok)

	case token.STRING:
		p.nextToken()
		return &ast.Literal{NodeInfo: info, Kind: ast.LitString, Str: tok.Literal}

	case token.TAMA, token.MALI:
		p.nextToken()
		return &ast.Literal{NodeInfo: info, Kind: ast.LitBool, Bool: tok.Type == token.TAMA}

	case token.WALA:
		p.nextToken()
		return &ast.Literal{NodeInfo: info, Kind: ast.LitNull}

	case token.IDENT:
		p.nextToken()
		return &ast.Identifier{NodeInfo: info, Name: tok.Literal}

	case token.LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil || !p.expect(token.RPAREN) {
			return nil
		}
		return expr

	case token.LBRACKET:
		return p.parseList()

	case token.LBRACE:
		return p.parseMap()

	default:
		p.addError("expression")
		return nil
	}
}

// parsePostfix parses call and index suffixes.
func (p *Parser) parsePostfix(expr ast.Expr) ast.Expr {
	for expr != nil {
		pos := p.token.Pos
		switch p.token.Type {
		case token.LPAREN:
			p.nextToken()
			var args []ast.Expr
			if !p.check(token.RPAREN) {
				list, ok := p.parseExpressionList()
				if !ok {
					return nil
				}
				args = list
			}
			if !p.expect(token.RPAREN) {
				return nil
			}
			expr = &ast.Call{NodeInfo: ast.At(pos), Callee: expr, Args: args}

		case token.LBRACKET:
			p.nextToken()
			index := p.parseExpression()
			if index == nil || !p.expect(token.RBRACKET) {
				return nil
			}
			expr = &ast.Index{NodeInfo: ast.At(pos), Collection: expr, Index: index}

		default:
			return expr
		}
	}
	return nil
}

// parseExpressionList parses: expr {, expr}
func (p *Parser) parseExpressionList() ([]ast.Expr, bool) {
	var exprs []ast.Expr
	for {
		expr := p.parseExpression()
		if expr == nil {
			return nil, false
		}
		exprs = append(exprs, expr)
		if !p.match(token.COMMA) {
			return exprs, true
		}
	}
}

// parseList parses: [ [expr {, expr} [,]] ]
func (p *Parser) parseList() ast.Expr {
	list := &ast.ListLiteral{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume [

	for !p.check(token.RBRACKET) {
		elem := p.parseExpression()
		if elem == nil {
			return nil
		}
		list.Elements = append(list.Elements, elem)
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	return list
}

// parseMap parses: { [key : value {, key : value} [,]] }
func (p *Parser) parseMap() ast.Expr {
	m := &ast.MapLiteral{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume {

	for !p.check(token.RBRACE) {
		key := p.parseExpression()
		if key == nil || !p.expect(token.COLON) {
			return nil
		}
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		m.Entries = append(m.Entries, ast.MapEntry{Key: key, Value: value})
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	return m
}

func (p *Parser) numberLiteral(tok token.Token) ast.Expr {
	info := ast.At(tok.Pos)
	if strings.Contains(tok.Literal, ".") {
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addMessageAt(tok.Pos, ErrInvalidNumber)
			return nil
		}
		return &ast.Literal{NodeInfo: info, Kind: ast.LitFloat, Float: f}
	}
	n, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.addMessageAt(tok.Pos, ErrInvalidNumber)
		return nil
	}
	return &ast.Literal{NodeInfo: info, Kind: ast.LitInt, Int: n}
}
