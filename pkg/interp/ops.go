package interp

import (
	"math"

	"github.com/leapstack-labs/gz/pkg/token"
)

// binaryOp applies a non-short-circuit binary operator.
func binaryOp(op string, left, right Value, pos token.Position) (Value, error) {
	switch op {
	case "==":
		return Bool(Equal(left, right)), nil
	case "!=":
		return Bool(!Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		return compare(op, left, right, pos)
	case "+":
		if ls, ok := left.(Str); ok {
			rs, ok := right.(Str)
			if !ok {
				return nil, NewTypeErrorf(pos, "cannot add %s to string", right.Kind())
			}
			return ls + rs, nil
		}
		if _, ok := right.(Str); ok {
			return nil, NewTypeErrorf(pos, "cannot add string to %s", left.Kind())
		}
		return arith(op, left, right, pos)
	case "-", "*", "/", "%":
		return arith(op, left, right, pos)
	default:
		return nil, NewRuntimeErrorf(pos, "unknown operator %s", op)
	}
}

// arith implements + - * / % on numbers. Int with float promotes to float;
// / always yields a float.
func arith(op string, left, right Value, pos token.Position) (Value, error) {
	li, lInt := left.(Int)
	ri, rInt := right.(Int)
	lf, lNum := toFloat(left)
	rf, rNum := toFloat(right)
	if !lNum || !rNum {
		return nil, NewTypeErrorf(pos, "unsupported operand types for %s: %s and %s", op, left.Kind(), right.Kind())
	}

	if lInt && rInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, NewRuntimeErrorf(pos, "division by zero")
			}
			return li % ri, nil
		}
	}

	switch op {
	case "+":
		return Float(lf + rf), nil
	case "-":
		return Float(lf - rf), nil
	case "*":
		return Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return nil, NewRuntimeErrorf(pos, "division by zero")
		}
		return Float(lf / rf), nil
	case "%":
		if rf == 0 {
			return nil, NewRuntimeErrorf(pos, "division by zero")
		}
		return Float(math.Mod(lf, rf)), nil
	}
	return nil, NewRuntimeErrorf(pos, "unknown operator %s", op)
}

// compare implements ordering on two numbers or two strings.
func compare(op string, left, right Value, pos token.Position) (Value, error) {
	var c int
	ls, lStr := left.(Str)
	rs, rStr := right.(Str)
	lf, lNum := toFloat(left)
	rf, rNum := toFloat(right)

	switch {
	case lStr && rStr:
		c = cmpOrdered(ls, rs)
	case lNum && rNum:
		li, lInt := left.(Int)
		ri, rInt := right.(Int)
		if lInt && rInt {
			c = cmpOrdered(li, ri)
		} else {
			c = cmpOrdered(lf, rf)
		}
	default:
		return nil, NewTypeErrorf(pos, "cannot compare %s and %s", left.Kind(), right.Kind())
	}

	switch op {
	case "<":
		return Bool(c < 0), nil
	case "<=":
		return Bool(c <= 0), nil
	case ">":
		return Bool(c > 0), nil
	default:
		return Bool(c >= 0), nil
	}
}

func cmpOrdered[T ~int64 | ~float64 | ~string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func unaryOp(op string, x Value, pos token.Position) (Value, error) {
	switch op {
	case "hindi":
		return Bool(!Truthy(x)), nil
	case "-":
		switch v := x.(type) {
		case Int:
			return -v, nil
		case Float:
			return -v, nil
		}
		return nil, NewTypeErrorf(pos, "cannot negate %s", x.Kind())
	default:
		return nil, NewRuntimeErrorf(pos, "unknown operator %s", op)
	}
}

// indexValue implements coll[key] for lists, strings and maps.
func indexValue(coll, key Value, pos token.Position) (Value, error) {
	switch c := coll.(type) {
	case *List:
		i, err := listIndex(len(c.Elems), key, pos)
		if err != nil {
			return nil, err
		}
		return c.Elems[i], nil
	case Str:
		runes := []rune(string(c))
		i, err := listIndex(len(runes), key, pos)
		if err != nil {
			return nil, err
		}
		return Str(string(runes[i])), nil
	case *Map:
		v, ok := c.Get(key)
		if !ok {
			return nil, NewRuntimeErrorf(pos, "key %s not found", Repr(key))
		}
		return v, nil
	default:
		return nil, NewRuntimeErrorf(pos, "%s is not indexable", coll.Kind())
	}
}

// setIndex implements coll[key] = value for lists and maps.
func setIndex(coll, key, value Value, pos token.Position) error {
	switch c := coll.(type) {
	case *List:
		i, err := listIndex(len(c.Elems), key, pos)
		if err != nil {
			return err
		}
		c.Elems[i] = value
		return nil
	case *Map:
		if !c.Set(key, value) {
			return NewTypeErrorf(pos, "unhashable map key of type %s", key.Kind())
		}
		return nil
	default:
		return NewRuntimeErrorf(pos, "%s does not support item assignment", coll.Kind())
	}
}

// listIndex validates an index; negative indexes count from the end.
func listIndex(n int, key Value, pos token.Position) (int, error) {
	k, ok := key.(Int)
	if !ok {
		return 0, NewTypeErrorf(pos, "index must be an int, got %s", key.Kind())
	}
	i := int(k)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, NewRuntimeErrorf(pos, "index %d out of range (length %d)", int(k), n)
	}
	return i, nil
}
