package cache

import (
	"cmp"
	"reflect"
	"slices"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
)

// Classifier decides whether a value produced by a real object is wrapped
// in a Proxy, recursed into as a sequence, or passed through as plain.
type Classifier struct {
	prefixes []string
}

// NewClassifier returns a classifier wrapping values whose named type
// (after pointer indirection) lives under one of the package path prefixes.
func NewClassifier(prefixes ...string) Classifier {
	return Classifier{prefixes: slices.Clone(prefixes)}
}

// Wraps reports whether values of type t belong to a wrapped type family.
func (c Classifier) Wraps(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return false
	}
	pkg := t.PkgPath()
	if pkg == "" {
		return false
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(pkg, p) {
			return true
		}
	}
	return false
}

// opaque reports whether a slice/array element type can be passed through
// without looking at each element: basic kinds are never wrapped.
func (c Classifier) opaque(elem reflect.Type) bool {
	if c.Wraps(elem) {
		return false
	}
	switch elem.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// classify turns v, obtained from parent by replaying steps, into a Value.
// Slices, arrays and maps holding wrapped values become sequences; map
// entries are visited in key order and indexed by key.
func (c *Cache) classify(v any, parent *Handle, steps []Step) Value {
	switch x := v.(type) {
	case nil:
		return None()
	case *Proxy:
		if x == nil {
			return None()
		}
		return nodeValue(x)
	case Value:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return None()
		}
	}

	if c.cls.Wraps(rv.Type()) {
		h := c.newHandle(Derived{Parent: parent, Steps: steps}, v)
		return nodeValue(c.newProxy(h))
	}

	if k := rv.Kind(); (k == reflect.Slice || k == reflect.Array) && !c.cls.opaque(rv.Type().Elem()) {
		out := make([]Value, rv.Len())
		for i := range out {
			out[i] = c.classify(rv.Index(i).Interface(), parent, extend(steps, Step{
				Name: keyGetItem,
				Call: true,
				Args: []Arg{{Value: i}},
			}))
		}
		return seqValue(out)
	}

	if rv.Kind() == reflect.Map && !c.cls.opaque(rv.Type().Elem()) && basicKind(rv.Type().Key().Kind()) {
		keys := rv.MapKeys()
		slices.SortFunc(keys, compareKeys)
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = c.classify(rv.MapIndex(k).Interface(), parent, extend(steps, Step{
				Name: keyGetItem,
				Call: true,
				Args: []Arg{{Value: basicKey(k)}},
			}))
		}
		return seqValue(out)
	}
	return Plain(v)
}

func basicKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// basicKey strips the named type off a map key so it can be recorded as a
// plain argument.
func basicKey(k reflect.Value) any {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Bool:
		return k.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return k.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return k.Uint()
	case reflect.Float32, reflect.Float64:
		return k.Float()
	}
	return k.Interface()
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Bool:
		switch {
		case a.Bool() == b.Bool():
			return 0
		case b.Bool():
			return -1
		}
		return 1
	}
	return 0
}

// extend returns steps+s without aliasing the caller's backing array.
func extend(steps []Step, s Step) []Step {
	out := make([]Step, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, s)
}

// bind converts caller arguments into bound Args: proxies (bare or held
// in a Value) contribute their handle, sequences recurse, anything else is
// a plain content-hashed value.
func bind(args []any, kwargs map[string]any) ([]Arg, map[string]Arg, error) {
	out := make([]Arg, len(args))
	for i, a := range args {
		b, err := bindOne(a)
		if err != nil {
			return nil, nil, err
		}
		out[i] = b
	}
	var kw map[string]Arg
	if len(kwargs) > 0 {
		kw = make(map[string]Arg, len(kwargs))
		for k, a := range kwargs {
			b, err := bindOne(a)
			if err != nil {
				return nil, nil, err
			}
			kw[k] = b
		}
	}
	return out, kw, nil
}

func bindOne(a any) (Arg, error) {
	switch x := a.(type) {
	case *Proxy:
		if x == nil {
			return Arg{}, nil
		}
		return Arg{Ref: x.handle}, nil
	case Value:
		return bindValue(x)
	case []*Proxy:
		items := make([]Arg, len(x))
		for i, p := range x {
			items[i], _ = bindOne(p)
		}
		return Arg{List: true, Items: items}, nil
	case []Value:
		return bindValue(seqValue(x))
	case []any:
		items := make([]Arg, len(x))
		for i, e := range x {
			b, err := bindOne(e)
			if err != nil {
				return Arg{}, err
			}
			items[i] = b
		}
		return Arg{List: true, Items: items}, nil
	}
	return Arg{Value: a}, nil
}

func bindValue(v Value) (Arg, error) {
	switch v.Kind() {
	case KindNone:
		return Arg{}, nil
	case KindPlain:
		return Arg{Value: v.plain}, nil
	case KindNode:
		return Arg{Ref: v.node.handle}, nil
	case KindSequence:
		items := make([]Arg, len(v.items))
		for i, it := range v.items {
			b, err := bindValue(it)
			if err != nil {
				return Arg{}, err
			}
			items[i] = b
		}
		return Arg{List: true, Items: items}, nil
	}
	return Arg{}, wrapCoded(ErrBadArguments, platformerrors.CodeInvalidInput,
		"a method cannot be passed as an argument", map[string]interface{}{"kind": v.Kind().String()})
}
