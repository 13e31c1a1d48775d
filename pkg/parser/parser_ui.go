package parser

import (
	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/token"
)

// UI blocks are declarative and indentation-delimited:
//
//	ui_element → "ui_element" IDENT IDENT NEWLINE [ INDENT { property } DEDENT ]
//	ui_layout  → "ui_layout" IDENT NEWLINE [ INDENT { relation } DEDENT ]
//	ui_style   → "ui_style" IDENT IDENT NEWLINE [ INDENT { property } DEDENT ]
//	ui_event   → "ui_event" IDENT NEWLINE [ INDENT { binding } DEDENT ]
//	property   → name ":" expr NEWLINE
//	relation   → IDENT "->" IDENT NEWLINE | IDENT "@" IDENT NEWLINE
//	binding    → IDENT IDENT ":" IDENT NEWLINE

func (p *Parser) parseUIElement() *ast.UIElement {
	el := &ast.UIElement{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume ui_element

	var ok bool
	if el.Name, ok = p.expectIdent("element name"); !ok {
		return nil
	}
	if el.Type, ok = p.expectIdent("element type"); !ok {
		return nil
	}
	if !p.parseUIBody(func() bool {
		prop, ok := p.parseProperty()
		if ok {
			el.Properties = append(el.Properties, prop)
		}
		return ok
	}) {
		return nil
	}
	return el
}

func (p *Parser) parseUILayout() *ast.UILayout {
	layout := &ast.UILayout{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume ui_layout

	var ok bool
	if layout.Name, ok = p.expectIdent("layout name"); !ok {
		return nil
	}
	if !p.parseUIBody(func() bool {
		rel, ok := p.parseRelation()
		if ok {
			layout.Relations = append(layout.Relations, rel)
		}
		return ok
	}) {
		return nil
	}
	return layout
}

func (p *Parser) parseUIStyle() *ast.UIStyle {
	style := &ast.UIStyle{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume ui_style

	var ok bool
	if style.Name, ok = p.expectIdent("style name"); !ok {
		return nil
	}
	if style.Target, ok = p.expectIdent("style target"); !ok {
		return nil
	}
	if !p.parseUIBody(func() bool {
		prop, ok := p.parseProperty()
		if ok {
			style.Properties = append(style.Properties, prop)
		}
		return ok
	}) {
		return nil
	}
	return style
}

func (p *Parser) parseUIEvent() *ast.UIEvent {
	ev := &ast.UIEvent{NodeInfo: ast.At(p.token.Pos)}
	p.nextToken() // consume ui_event

	var ok bool
	if ev.Name, ok = p.expectIdent("event group name"); !ok {
		return nil
	}
	if !p.parseUIBody(func() bool {
		b, ok := p.parseBinding()
		if ok {
			ev.Bindings = append(ev.Bindings, b)
		}
		return ok
	}) {
		return nil
	}
	return ev
}

// parseUIBody terminates the header line and feeds each line of an optional
// indented body to line. A failing line is skipped; the block goes on.
func (p *Parser) parseUIBody(line func() bool) bool {
	if !p.endStatement() {
		return false
	}
	if !p.check(token.INDENT) {
		return true
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
		if !line() {
			p.synchronize()
		}
	}
	p.match(token.DEDENT)
	return true
}

// parseProperty parses: name ":" expr NEWLINE
func (p *Parser) parseProperty() (ast.Property, bool) {
	if !p.check(token.IDENT) && !token.IsKeyword(p.token.Type) {
		p.addError("property name")
		return ast.Property{}, false
	}
	key := p.token.Literal
	p.nextToken()

	if !p.expect(token.COLON) {
		return ast.Property{}, false
	}
	value := p.parseExpression()
	if value == nil || !p.endStatement() {
		return ast.Property{}, false
	}
	return ast.Property{Key: key, Value: value}, true
}

// parseRelation parses: parent "->" child | element "@" position
func (p *Parser) parseRelation() (ast.LayoutRelation, bool) {
	left, ok := p.expectIdent("element name")
	if !ok {
		return ast.LayoutRelation{}, false
	}

	var rel ast.LayoutRelation
	switch {
	case p.match(token.ARROW):
		child, ok := p.expectIdent("child element")
		if !ok {
			return rel, false
		}
		rel = ast.LayoutRelation{Kind: ast.RelationChild, Parent: left, Child: child}
	case p.match(token.AT):
		where, ok := p.expectIdent("position")
		if !ok {
			return rel, false
		}
		rel = ast.LayoutRelation{Kind: ast.RelationPosition, Element: left, Position: where}
	default:
		p.addError("'->' or '@'")
		return rel, false
	}
	return rel, p.endStatement()
}

// parseBinding parses: element event ":" handler
func (p *Parser) parseBinding() (ast.EventBinding, bool) {
	var b ast.EventBinding
	var ok bool
	if b.Element, ok = p.expectIdent("element name"); !ok {
		return b, false
	}
	if b.Event, ok = p.expectIdent("event name"); !ok {
		return b, false
	}
	if !p.expect(token.COLON) {
		return b, false
	}
	if b.Handler, ok = p.expectIdent("handler name"); !ok {
		return b, false
	}
	return b, p.endStatement()
}
