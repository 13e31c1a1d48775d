package interp

import (
	"strings"

	"github.com/leapstack-labs/gz/pkg/ast"
)

// execBlock executes statements until one of them yields a non-normal signal.
func (in *Interpreter) execBlock(stmts []ast.Stmt, env *frame) (signal, Value, error) {
	for _, stmt := range stmts {
		sig, val, err := in.exec(stmt, env)
		if err != nil || sig != sigNormal {
			return sig, val, err
		}
	}
	return sigNormal, nil, nil
}

func (in *Interpreter) exec(stmt ast.Stmt, env *frame) (signal, Value, error) {
	if err := in.tick(stmt.Position()); err != nil {
		return sigNormal, nil, err
	}

	switch s := stmt.(type) {
	case *ast.FunctionDecl:
		env.vars[s.Name] = &Function{Decl: s}
		return sigNormal, nil, nil

	case *ast.Assignment:
		return sigNormal, nil, in.execAssignment(s, env)

	case *ast.ExprStmt:
		_, err := in.eval(s.X, env)
		return sigNormal, nil, err

	case *ast.Print:
		return sigNormal, nil, in.execPrint(s, env)

	case *ast.Return:
		val, err := in.evalReturnValue(s, env)
		if err != nil {
			return sigNormal, nil, err
		}
		return sigReturn, val, nil

	case *ast.If:
		cond, err := in.eval(s.Cond, env)
		if err != nil {
			return sigNormal, nil, err
		}
		if Truthy(cond) {
			return in.execBlock(s.Then, env)
		}
		return in.execBlock(s.Else, env)

	case *ast.While:
		return in.execWhile(s, env)

	case *ast.ForRange:
		return in.execFor(s, env)

	case *ast.Break:
		return sigBreak, nil, nil

	case *ast.Continue:
		return sigContinue, nil, nil

	case *ast.UIElement, *ast.UILayout, *ast.UIStyle, *ast.UIEvent:
		// Declarative; consumed by the renderer, not the evaluator.
		return sigNormal, nil, nil

	default:
		return sigNormal, nil, NewRuntimeErrorf(stmt.Position(), "unsupported statement %T", stmt)
	}
}

// execAssignment binds a value. A compound assignment `t op= e` evaluates
// like `t = t op e` with the target read before e.
func (in *Interpreter) execAssignment(s *ast.Assignment, env *frame) error {
	switch target := s.Target.(type) {
	case *ast.Identifier:
		var current Value
		if s.IsCompound() {
			var err error
			if current, err = in.eval(target, env); err != nil {
				return err
			}
		}
		value, err := in.eval(s.Value, env)
		if err != nil {
			return err
		}
		if s.IsCompound() {
			if value, err = binaryOp(s.BinaryOperator(), current, value, s.Pos); err != nil {
				return err
			}
		}
		env.vars[target.Name] = value
		return nil

	case *ast.Index:
		coll, err := in.eval(target.Collection, env)
		if err != nil {
			return err
		}
		key, err := in.eval(target.Index, env)
		if err != nil {
			return err
		}
		value, err := in.eval(s.Value, env)
		if err != nil {
			return err
		}
		if s.IsCompound() {
			current, err := indexValue(coll, key, target.Pos)
			if err != nil {
				return err
			}
			if value, err = binaryOp(s.BinaryOperator(), current, value, s.Pos); err != nil {
				return err
			}
		}
		return setIndex(coll, key, value, target.Pos)

	default:
		return NewRuntimeErrorf(s.Pos, "cannot assign to %s", s.Target)
	}
}

func (in *Interpreter) execPrint(s *ast.Print, env *frame) error {
	parts := make([]string, len(s.Values))
	for i, expr := range s.Values {
		v, err := in.eval(expr, env)
		if err != nil {
			return err
		}
		parts[i] = v.String()
	}
	if err := in.write(strings.Join(parts, " ") + "\n"); err != nil {
		return NewRuntimeErrorf(s.Pos, "write output: %v", err)
	}
	return nil
}

// evalReturnValue evaluates balik's operands: none yields wala, one yields
// the value, several yield a list.
func (in *Interpreter) evalReturnValue(s *ast.Return, env *frame) (Value, error) {
	switch len(s.Values) {
	case 0:
		return Wala, nil
	case 1:
		return in.eval(s.Values[0], env)
	}
	list := &List{Elems: make([]Value, len(s.Values))}
	for i, expr := range s.Values {
		v, err := in.eval(expr, env)
		if err != nil {
			return nil, err
		}
		list.Elems[i] = v
	}
	return list, nil
}

func (in *Interpreter) execWhile(s *ast.While, env *frame) (signal, Value, error) {
	for {
		cond, err := in.eval(s.Cond, env)
		if err != nil {
			return sigNormal, nil, err
		}
		if !Truthy(cond) {
			return sigNormal, nil, nil
		}

		sig, val, err := in.execBlock(s.Body, env)
		if err != nil {
			return sigNormal, nil, err
		}
		switch sig {
		case sigBreak:
			return sigNormal, nil, nil
		case sigReturn:
			return sig, val, nil
		}

		if err := in.tick(s.Pos); err != nil {
			return sigNormal, nil, err
		}
	}
}

// execFor runs an inclusive integer range. Bounds are evaluated once.
func (in *Interpreter) execFor(s *ast.ForRange, env *frame) (signal, Value, error) {
	start, err := in.evalInt(s.Start, env, "range start")
	if err != nil {
		return sigNormal, nil, err
	}
	end, err := in.evalInt(s.End, env, "range end")
	if err != nil {
		return sigNormal, nil, err
	}

	for i := start; i <= end; i++ {
		env.vars[s.Var] = Int(i)

		sig, val, err := in.execBlock(s.Body, env)
		if err != nil {
			return sigNormal, nil, err
		}
		switch sig {
		case sigBreak:
			return sigNormal, nil, nil
		case sigReturn:
			return sig, val, nil
		}

		if err := in.tick(s.Pos); err != nil {
			return sigNormal, nil, err
		}
		if i == end {
			break
		}
	}
	return sigNormal, nil, nil
}

func (in *Interpreter) evalInt(expr ast.Expr, env *frame, what string) (int64, error) {
	v, err := in.eval(expr, env)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case Int:
		return int64(x), nil
	case Float:
		if float64(x) == float64(int64(x)) {
			return int64(x), nil
		}
	}
	return 0, NewTypeErrorf(expr.Position(), "%s must be an integer, got %s", what, v.Kind())
}
