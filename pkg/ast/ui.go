package ast

// Property is one `key: value` line of a UI element or style block.
type Property struct {
	Key   string
	Value Expr
}

// UIElement is `ui_element name type` with an indented property list.
type UIElement struct {
	NodeInfo
	Name       string
	Type       string
	Properties []Property
}

// RelationKind distinguishes layout lines.
type RelationKind string

// RelationKind values.
const (
	RelationChild    RelationKind = "child"    // parent -> child
	RelationPosition RelationKind = "position" // element @ position
)

// LayoutRelation is one line of a ui_layout block.
type LayoutRelation struct {
	Kind     RelationKind
	Parent   string // child relations
	Child    string // child relations
	Element  string // position relations
	Position string // position relations
}

// UILayout is `ui_layout name` with an indented relation list.
type UILayout struct {
	NodeInfo
	Name      string
	Relations []LayoutRelation
}

// UIStyle is `ui_style name target` with an indented property list.
type UIStyle struct {
	NodeInfo
	Name       string
	Target     string
	Properties []Property
}

// EventBinding binds an element event to a handler name. The handler is
// resolved by name at evaluation time; invocation is up to the renderer.
type EventBinding struct {
	Element string
	Event   string
	Handler string
}

// UIEvent is `ui_event name` with an indented binding list.
type UIEvent struct {
	NodeInfo
	Name     string
	Bindings []EventBinding
}

func (*UIElement) stmtNode() {}
func (*UILayout) stmtNode()  {}
func (*UIStyle) stmtNode()   {}
func (*UIEvent) stmtNode()   {}

// UITree is the declarative UI description of a program, in source order.
type UITree struct {
	Elements []*UIElement
	Layouts  []*UILayout
	Styles   []*UIStyle
	Events   []*UIEvent
}

// IsEmpty reports whether the program declared no UI blocks.
func (t *UITree) IsEmpty() bool {
	return len(t.Elements) == 0 && len(t.Layouts) == 0 && len(t.Styles) == 0 && len(t.Events) == 0
}

// UI collects the top-level UI blocks of the program.
func (p *Program) UI() *UITree {
	tree := &UITree{}
	for _, s := range p.Statements {
		switch n := s.(type) {
		case *UIElement:
			tree.Elements = append(tree.Elements, n)
		case *UILayout:
			tree.Layouts = append(tree.Layouts, n)
		case *UIStyle:
			tree.Styles = append(tree.Styles, n)
		case *UIEvent:
			tree.Events = append(tree.Events, n)
		}
	}
	return tree
}
