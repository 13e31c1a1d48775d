package ast

// Walk traverses an AST depth-first and calls fn for each node.
// If fn returns false, the children of that node are skipped.
func Walk(node Node, fn func(node Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	walkNode(node, fn)
}

func walkNode(node Node, fn func(node Node) bool) {
	switch n := node.(type) {
	case *Program:
		walkStmts(n.Statements, fn)

	case *FunctionDecl:
		walkStmts(n.Body, fn)

	case *Assignment:
		Walk(n.Target, fn)
		Walk(n.Value, fn)

	case *If:
		Walk(n.Cond, fn)
		walkStmts(n.Then, fn)
		walkStmts(n.Else, fn)

	case *While:
		Walk(n.Cond, fn)
		walkStmts(n.Body, fn)

	case *ForRange:
		Walk(n.Start, fn)
		Walk(n.End, fn)
		walkStmts(n.Body, fn)

	case *Return:
		walkExprs(n.Values, fn)

	case *Print:
		walkExprs(n.Values, fn)

	case *ExprStmt:
		Walk(n.X, fn)

	case *BinaryOp:
		Walk(n.Left, fn)
		Walk(n.Right, fn)

	case *UnaryOp:
		Walk(n.X, fn)

	case *Call:
		Walk(n.Callee, fn)
		walkExprs(n.Args, fn)

	case *Index:
		Walk(n.Collection, fn)
		Walk(n.Index, fn)

	case *ListLiteral:
		walkExprs(n.Elements, fn)

	case *MapLiteral:
		for _, e := range n.Entries {
			Walk(e.Key, fn)
			Walk(e.Value, fn)
		}

	case *UIElement:
		for _, p := range n.Properties {
			Walk(p.Value, fn)
		}

	case *UIStyle:
		for _, p := range n.Properties {
			Walk(p.Value, fn)
		}
	}
}

func walkStmts(stmts []Stmt, fn func(node Node) bool) {
	for _, s := range stmts {
		Walk(s, fn)
	}
}

func walkExprs(exprs []Expr, fn func(node Node) bool) {
	for _, e := range exprs {
		Walk(e, fn)
	}
}
