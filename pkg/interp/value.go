package interp

import (
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/gz/pkg/ast"
)

// Kind identifies the runtime type of a value.
type Kind int

// Kind values.
const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindList
	KindMap
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindFunction:
		return "function"
	default:
		return "wala"
	}
}

// Value is a runtime value. String renders the value the way sulat prints it.
type Value interface {
	Kind() Kind
	String() string
}

// Null is the wala value.
type Null struct{}

// Int is a 64-bit integer.
type Int int64

// Float is a 64-bit float.
type Float float64

// Str is an immutable string.
type Str string

// Bool is tama or mali.
type Bool bool

// List is a mutable list shared by reference.
type List struct {
	Elems []Value
}

// Map is a mutable, insertion-ordered map shared by reference. Keys are
// ints, floats, strings or bools; numerically equal keys are the same key.
type Map struct {
	keys  []Value
	vals  []Value
	index map[mapKey]int
}

// Function is a user-defined function.
type Function struct {
	Decl *ast.FunctionDecl
}

// Builtin is a function implemented in Go.
type Builtin struct {
	Name  string
	Arity int
	Fn    func(call *callInfo, args []Value) (Value, error)
}

// Wala is the shared null value.
var Wala Value = Null{}

func (Null) Kind() Kind      { return KindNull }
func (Int) Kind() Kind       { return KindInt }
func (Float) Kind() Kind     { return KindFloat }
func (Str) Kind() Kind       { return KindString }
func (Bool) Kind() Kind      { return KindBool }
func (*List) Kind() Kind     { return KindList }
func (*Map) Kind() Kind      { return KindMap }
func (*Function) Kind() Kind { return KindFunction }
func (*Builtin) Kind() Kind  { return KindFunction }

func (Null) String() string { return "wala" }

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

func (v Float) String() string {
	f := float64(v)
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func (v Str) String() string { return string(v) }

func (v Bool) String() string {
	if v {
		return "tama"
	}
	return "mali"
}

func (l *List) String() string { return render(l, nil) }

func (m *Map) String() string { return render(m, nil) }

// render prints v, showing a container already being printed as [...] or
// {...}.
func render(v Value, active map[Value]bool) string {
	switch x := v.(type) {
	case *List:
		if active[x] {
			return "[...]"
		}
		active = enter(active, x)
		defer delete(active, x)
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = reprIn(e, active)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Map:
		if active[x] {
			return "{...}"
		}
		active = enter(active, x)
		defer delete(active, x)
		parts := make([]string, len(x.keys))
		for i := range x.keys {
			parts[i] = reprIn(x.keys[i], active) + ": " + reprIn(x.vals[i], active)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.String()
	}
}

func enter(active map[Value]bool, v Value) map[Value]bool {
	if active == nil {
		active = make(map[Value]bool)
	}
	active[v] = true
	return active
}

func reprIn(v Value, active map[Value]bool) string {
	if s, ok := v.(Str); ok {
		return ast.Quote(string(s))
	}
	return render(v, active)
}

func (f *Function) String() string { return "<simula " + f.Decl.Name + ">" }

func (b *Builtin) String() string { return "<builtin " + b.Name + ">" }

// Repr renders v as it appears nested inside a list or map: strings are
// quoted, everything else prints as usual.
func Repr(v Value) string {
	if s, ok := v.(Str); ok {
		return ast.Quote(string(s))
	}
	return v.String()
}

// NewList creates a list holding elems.
func NewList(elems ...Value) *List {
	return &List{Elems: elems}
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[mapKey]int)}
}

type mapKey struct {
	kind Kind
	repr string
}

// keyOf normalizes a hashable value. Integral floats share the key of the
// equal int.
func keyOf(v Value) (mapKey, bool) {
	switch x := v.(type) {
	case Int:
		return mapKey{KindInt, x.String()}, true
	case Float:
		f := float64(x)
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return mapKey{KindInt, strconv.FormatInt(int64(f), 10)}, true
		}
		return mapKey{KindFloat, strconv.FormatFloat(f, 'g', -1, 64)}, true
	case Str:
		return mapKey{KindString, string(x)}, true
	case Bool:
		return mapKey{KindBool, x.String()}, true
	default:
		return mapKey{}, false
	}
}

// Get returns the value stored under key.
func (m *Map) Get(key Value) (Value, bool) {
	k, ok := keyOf(key)
	if !ok {
		return nil, false
	}
	i, ok := m.index[k]
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

// Set stores value under key, keeping the position of an existing key.
// It reports false when key is not hashable.
func (m *Map) Set(key, value Value) bool {
	k, ok := keyOf(key)
	if !ok {
		return false
	}
	if i, exists := m.index[k]; exists {
		m.vals[i] = value
		return true
	}
	m.index[k] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, value)
	return true
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value {
	return append([]Value(nil), m.keys...)
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x != 0
	case Float:
		return x != 0
	case Str:
		return x != ""
	case *List:
		return len(x.Elems) > 0
	case *Map:
		return x.Len() > 0
	default:
		return true
	}
}

// Equal implements ==. Numbers compare numerically, lists and maps deeply,
// and a comparison against a bool compares the other operand's truthiness.
// Self-containing lists and maps compare without recursing forever.
func Equal(a, b Value) bool {
	return equal(a, b, nil)
}

type valuePair struct{ a, b Value }

func equal(a, b Value, seen map[valuePair]bool) bool {
	if ab, ok := a.(Bool); ok {
		return bool(ab) == Truthy(b)
	}
	if bb, ok := b.(Bool); ok {
		return Truthy(a) == bool(bb)
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return false
		}
		if ai, aok := a.(Int); aok {
			if bi, bok := b.(Int); bok {
				return ai == bi
			}
		}
		return af == bf
	}

	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		if x == y {
			return true
		}
		pair := valuePair{x, y}
		if seen[pair] {
			return true
		}
		seen = enterPair(seen, pair)
		for i := range x.Elems {
			if !equal(x.Elems[i], y.Elems[i], seen) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		if x == y {
			return true
		}
		pair := valuePair{x, y}
		if seen[pair] {
			return true
		}
		seen = enterPair(seen, pair)
		for i, k := range x.keys {
			other, found := y.Get(k)
			if !found || !equal(x.vals[i], other, seen) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// enterPair records a container pair under comparison. A pair met again
// while its own comparison is in progress is assumed equal.
func enterPair(seen map[valuePair]bool, pair valuePair) map[valuePair]bool {
	if seen == nil {
		seen = make(map[valuePair]bool)
	}
	seen[pair] = true
	return seen
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int:
		return float64(x), true
	case Float:
		return float64(x), true
	default:
		return 0, false
	}
}
