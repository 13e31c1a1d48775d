package interp

import (
	"github.com/leapstack-labs/gz/pkg/ast"
	"github.com/leapstack-labs/gz/pkg/token"
)

// eval evaluates an expression. It never returns a nil Value without an error.
func (in *Interpreter) eval(expr ast.Expr, env *frame) (Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return literalValue(e), nil

	case *ast.Identifier:
		v, ok := in.lookup(e.Name, env)
		if !ok {
			return nil, NewNameError(e.Pos, e.Name)
		}
		return v, nil

	case *ast.BinaryOp:
		return in.evalBinary(e, env)

	case *ast.UnaryOp:
		x, err := in.eval(e.X, env)
		if err != nil {
			return nil, err
		}
		return unaryOp(e.Op, x, e.Pos)

	case *ast.Call:
		return in.evalCall(e, env)

	case *ast.Index:
		coll, err := in.eval(e.Collection, env)
		if err != nil {
			return nil, err
		}
		key, err := in.eval(e.Index, env)
		if err != nil {
			return nil, err
		}
		return indexValue(coll, key, e.Pos)

	case *ast.ListLiteral:
		list := &List{Elems: make([]Value, len(e.Elements))}
		for i, el := range e.Elements {
			v, err := in.eval(el, env)
			if err != nil {
				return nil, err
			}
			list.Elems[i] = v
		}
		return list, nil

	case *ast.MapLiteral:
		m := NewMap()
		for _, entry := range e.Entries {
			k, err := in.eval(entry.Key, env)
			if err != nil {
				return nil, err
			}
			v, err := in.eval(entry.Value, env)
			if err != nil {
				return nil, err
			}
			if !m.Set(k, v) {
				return nil, NewTypeErrorf(entry.Key.Position(), "unhashable map key of type %s", k.Kind())
			}
		}
		return m, nil

	default:
		return nil, NewRuntimeErrorf(expr.Position(), "unsupported expression %T", expr)
	}
}

func literalValue(l *ast.Literal) Value {
	switch l.Kind {
	case ast.LitInt:
		return Int(l.Int)
	case ast.LitFloat:
		return Float(l.Float)
	case ast.LitString:
		return Str(l.Str)
	case ast.LitBool:
		return Bool(l.Bool)
	default:
		return Wala
	}
}

// evalBinary short-circuits at and o; both yield the deciding operand.
func (in *Interpreter) evalBinary(e *ast.BinaryOp, env *frame) (Value, error) {
	left, err := in.eval(e.Left, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "at":
		if !Truthy(left) {
			return left, nil
		}
		return in.eval(e.Right, env)
	case "o":
		if Truthy(left) {
			return left, nil
		}
		return in.eval(e.Right, env)
	}

	right, err := in.eval(e.Right, env)
	if err != nil {
		return nil, err
	}
	return binaryOp(e.Op, left, right, e.Pos)
}

func (in *Interpreter) evalCall(e *ast.Call, env *frame) (Value, error) {
	callee, err := in.eval(e.Callee, env)
	if err != nil {
		return nil, err
	}

	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		if args[i], err = in.eval(a, env); err != nil {
			return nil, err
		}
	}

	switch fn := callee.(type) {
	case *Function:
		return in.callFunction(fn, args, e.Pos)
	case *Builtin:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return nil, NewRuntimeErrorf(e.Pos, "%s expects %d argument(s), got %d", fn.Name, fn.Arity, len(args))
		}
		return fn.Fn(&callInfo{pos: e.Pos}, args)
	default:
		return nil, NewTypeErrorf(e.Pos, "%s is not callable (%s)", e.Callee, callee.Kind())
	}
}

// callFunction invokes a user function in a fresh frame.
func (in *Interpreter) callFunction(fn *Function, args []Value, pos token.Position) (Value, error) {
	decl := fn.Decl
	if len(args) != len(decl.Params) {
		return nil, NewRuntimeErrorf(pos, "%s expects %d argument(s), got %d", decl.Name, len(decl.Params), len(args))
	}
	if in.depth >= in.opts.MaxCallDepth {
		return nil, NewStackOverflowError(pos, in.opts.MaxCallDepth)
	}

	local := newFrame()
	for i, name := range decl.Params {
		local.vars[name] = args[i]
	}

	in.depth++
	defer func() { in.depth-- }()

	sig, val, err := in.execBlock(decl.Body, local)
	if err != nil {
		return nil, err
	}
	if sig == sigReturn && val != nil {
		return val, nil
	}
	return Wala, nil
}
