package parser

import (
	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/token"
)

// parseStatement parses one statement. It returns nil after recording an
// error; the caller is responsible for resynchronizing.
func (p *Parser) parseStatement() ast.Stmt {
	switch p.token.Type {
	case token.SIMULA:
		return nilIfFailed(p.parseFunction())
	case token.BALIK:
		return nilIfFailed(p.parseReturn())
	case token.SULAT:
		return nilIfFailed(p.parsePrint())
	case token.KUNG:
		return nilIfFailed(p.parseIf())
	case token.KUNDI:
		p.addMessage(ErrElseWithoutIf)
		return nil
	case token.HABANG:
		return nilIfFailed(p.parseWhile())
	case token.PARA:
		return nilIfFailed(p.parseFor())
	case token.TIGIL, token.TULOY:
		return p.parseLoopControl()
	case token.UI_ELEMENT:
		return nilIfFailed(p.parseUIElement())
	case token.UI_LAYOUT:
		return nilIfFailed(p.parseUILayout())
	case token.UI_STYLE:
		return nilIfFailed(p.parseUIStyle())
	case token.UI_EVENT:
		return nilIfFailed(p.parseUIEvent())
	default:
		return p.parseSimpleStatement()
	}
}

// nilIfFailed converts a typed nil node into a nil interface.
func nilIfFailed[T interface {
	ast.Stmt
	comparable
}](stmt T) ast.Stmt {
	var zero T
	if stmt == zero {
		return nil
	}
	return stmt
}

// parseBlock parses NEWLINE INDENT { statement } DEDENT. ok is false only
// when the header line was not terminated, in which case nothing is consumed.
func (p *Parser) parseBlock() (body []ast.Stmt, ok bool) {
	if !p.endStatement() {
		return nil, false
	}
	if !p.check(token.INDENT) {
		p.addError("indented block")
		return nil, true
	}
	p.nextToken()

	for !p.check(token.DEDENT) && !p.check(token.EOF) && !p.failed() {
		if p.match(token.NEWLINE) {
			continue
		}
		if p.check(token.INDENT) {
			p.addMessage(ErrUnexpectedIndent)
			p.skipBlock()
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			body = append(body, stmt)
		} else {
			p.synchronize()
		}
	}
	p.match(token.DEDENT)
	return body, true
}

// parseLoopBody parses a block in which tigil and tuloy are allowed.
func (p *Parser) parseLoopBody() ([]ast.Stmt, bool) {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.parseBlock()
}

// parseFunction parses: simula name p1 p2 ... NEWLINE block
func (p *Parser) parseFunction() *ast.FunctionDecl {
	fn := &ast.FunctionDecl{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume simula

	name, ok := p.expectIdent("function name")
	if !ok {
		return nil
	}
	fn.Name = name

	seen := make(map[string]bool)
	for p.check(token.IDENT) {
		param := p.token.Literal
		if seen[param] {
			p.addMessage(ErrDuplicateParam, param, name)
			return nil
		}
		seen[param] = true
		fn.Params = append(fn.Params, param)
		p.nextToken()
	}

	// tigil/tuloy never cross a function boundary.
	saved := p.loopDepth
	p.loopDepth = 0
	body, ok := p.parseBlock()
	p.loopDepth = saved
	if !ok {
		return nil
	}
	fn.Body = body
	return fn
}

// parseReturn parses: balik [expr {, expr}]
func (p *Parser) parseReturn() *ast.Return {
	ret := &ast.Return{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume balik

	if !p.atLineEnd() {
		values, ok := p.parseExpressionList()
		if !ok {
			return nil
		}
		ret.Values = values
	}
	if !p.endStatement() {
		return nil
	}
	return ret
}

// parsePrint parses: sulat [expr {, expr}]
func (p *Parser) parsePrint() *ast.Print {
	stmt := &ast.Print{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume sulat

	if !p.atLineEnd() {
		values, ok := p.parseExpressionList()
		if !ok {
			return nil
		}
		stmt.Values = values
	}
	if !p.endStatement() {
		return nil
	}
	return stmt
}

// parseIf parses: kung cond block {kundi kung cond block} [kundi block]
func (p *Parser) parseIf() *ast.If {
	stmt := &ast.If{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume kung

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	stmt.Cond = cond

	then, ok := p.parseBlock()
	if !ok {
		return nil
	}
	stmt.Then = then

	if !p.check(token.KUNDI) {
		return stmt
	}
	if p.checkPeek(token.KUNG) {
		p.nextToken() // consume kundi
		elif := p.parseIf()
		if elif == nil {
			return nil
		}
		stmt.Else = []ast.Stmt{elif}
		return stmt
	}

	p.nextToken() // consume kundi
	els, ok := p.parseBlock()
	if !ok {
		return nil
	}
	stmt.Else = els
	return stmt
}

// parseWhile parses: habang cond block
func (p *Parser) parseWhile() *ast.While {
	stmt := &ast.While{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume habang

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	stmt.Cond = cond

	body, ok := p.parseLoopBody()
	if !ok {
		return nil
	}
	stmt.Body = body
	return stmt
}

// parseFor parses both range forms:
//
//	para i start end
//	para i = start hanggang end
func (p *Parser) parseFor() *ast.ForRange {
	stmt := &ast.ForRange{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume para

	name, ok := p.expectIdent("loop variable")
	if !ok {
		return nil
	}
	stmt.Var = name

	sugar := p.match(token.ASSIGN)
	if stmt.Start = p.parseExpression(); stmt.Start == nil {
		return nil
	}
	if sugar && !p.expect(token.HANGGANG) {
		return nil
	}
	if stmt.End = p.parseExpression(); stmt.End == nil {
		return nil
	}

	body, ok := p.parseLoopBody()
	if !ok {
		return nil
	}
	stmt.Body = body
	return stmt
}

// parseLoopControl parses tigil and tuloy.
func (p *Parser) parseLoopControl() ast.Stmt {
	tok := p.token
	if p.loopDepth == 0 {
		p.addMessage(ErrOutsideLoop, tok.Literal)
		return nil
	}
	p.nextToken()
	if !p.endStatement() {
		return nil
	}
	if tok.Type == token.TIGIL {
		return &ast.Break{NodeInfo: ast.At(tok.Pos)}
	}
	return &ast.Continue{NodeInfo: ast.At(tok.Pos)}
}

// parseSimpleStatement parses an assignment or an expression statement.
func (p *Parser) parseSimpleStatement() ast.Stmt {
	pos := p.token.Pos
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}

	if token.IsAssign(p.token.Type) {
		switch expr.(type) {
		case *ast.Identifier, *ast.Index:
		default:
			p.addMessageAt(pos, ErrInvalidTarget, expr.String())
			return nil
		}
		op := p.token.Literal
		p.nextToken()

		value := p.parseExpression()
		if value == nil || !p.endStatement() {
			return nil
		}
		return &ast.Assignment{NodeInfo: ast.At(pos), Target: expr, Op: op, Value: value}
	}

	if !p.endStatement() {
		return nil
	}
	return &ast.ExprStmt{NodeInfo: ast.At(pos), X: expr}
}
