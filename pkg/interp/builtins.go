package interp

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// newBuiltins returns the builtin function table.
//
//	haba(x)         length of a string, list or map
//	idagdag(xs, v)  appends v to xs in place and returns xs
//	teksto(x)       converts x to its printed string form
//	numero(s)       parses a string as int or float
//	susi(m)         the keys of a map, in insertion order
func newBuiltins() map[string]*Builtin {
	list := []*Builtin{
		{Name: "haba", Arity: 1, Fn: builtinHaba},
		{Name: "idagdag", Arity: 2, Fn: builtinIdagdag},
		{Name: "teksto", Arity: 1, Fn: builtinTeksto},
		{Name: "numero", Arity: 1, Fn: builtinNumero},
		{Name: "susi", Arity: 1, Fn: builtinSusi},
	}
	out := make(map[string]*Builtin, len(list))
	for _, b := range list {
		out[b.Name] = b
	}
	return out
}

// BuiltinNames lists the names of the builtin functions.
func BuiltinNames() []string {
	names := make([]string, 0, 5)
	for name := range newBuiltins() {
		names = append(names, name)
	}
	return names
}

func builtinHaba(call *callInfo, args []Value) (Value, error) {
	switch x := args[0].(type) {
	case Str:
		return Int(utf8.RuneCountInString(string(x))), nil
	case *List:
		return Int(len(x.Elems)), nil
	case *Map:
		return Int(x.Len()), nil
	default:
		return nil, NewTypeErrorf(call.pos, "haba() of %s", x.Kind())
	}
}

func builtinIdagdag(call *callInfo, args []Value) (Value, error) {
	list, ok := args[0].(*List)
	if !ok {
		return nil, NewTypeErrorf(call.pos, "idagdag() expects a list, got %s", args[0].Kind())
	}
	list.Elems = append(list.Elems, args[1])
	return list, nil
}

func builtinTeksto(_ *callInfo, args []Value) (Value, error) {
	return Str(args[0].String()), nil
}

func builtinNumero(call *callInfo, args []Value) (Value, error) {
	switch x := args[0].(type) {
	case Int, Float:
		return x, nil
	case Str:
		s := strings.TrimSpace(string(x))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), nil
		}
		return nil, NewRuntimeErrorf(call.pos, "numero(): %q is not a number", string(x))
	default:
		return nil, NewTypeErrorf(call.pos, "numero() of %s", x.Kind())
	}
}

func builtinSusi(call *callInfo, args []Value) (Value, error) {
	m, ok := args[0].(*Map)
	if !ok {
		return nil, NewTypeErrorf(call.pos, "susi() expects a map, got %s", args[0].Kind())
	}
	return NewList(m.Keys()...), nil
}
