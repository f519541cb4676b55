package cache

import (
	"fmt"
	"reflect"

	platformerrors "github.com/jmgilman/go/errors"
)

var (
	errorType  = reflect.TypeFor[error]()
	kwargsType = reflect.TypeFor[map[string]any]()
)

// attr is the outcome of an attribute lookup on a real object.
type attr struct {
	val      any
	fn       reflect.Value
	callable bool
}

// getAttr resolves name on obj: AttrGetter, then exported methods, then
// exported struct fields (through pointers), then string-keyed map entries.
func getAttr(obj any, name string) (attr, error) {
	if g, ok := obj.(AttrGetter); ok {
		if v, ok := g.GetAttr(name); ok {
			return attrOf(v), nil
		}
	}
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return attr{}, noAttribute(obj, name)
	}
	if m := rv.MethodByName(name); m.IsValid() {
		return attr{fn: m, callable: true}, nil
	}

	ev := rv
	for ev.Kind() == reflect.Pointer || ev.Kind() == reflect.Interface {
		if ev.IsNil() {
			return attr{}, noAttribute(obj, name)
		}
		ev = ev.Elem()
	}
	switch ev.Kind() {
	case reflect.Struct:
		if f, ok := ev.Type().FieldByName(name); ok && f.IsExported() {
			fv, err := ev.FieldByIndexErr(f.Index)
			if err != nil {
				return attr{}, noAttribute(obj, name)
			}
			return attrOf(fv.Interface()), nil
		}
	case reflect.Map:
		if ev.Type().Key().Kind() == reflect.String {
			mv := ev.MapIndex(reflect.ValueOf(name).Convert(ev.Type().Key()))
			if mv.IsValid() {
				return attrOf(mv.Interface()), nil
			}
		}
	}
	return attr{}, noAttribute(obj, name)
}

func attrOf(v any) attr {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func && !rv.IsNil() {
		return attr{fn: rv, callable: true}
	}
	return attr{val: v}
}

func noAttribute(obj any, name string) error {
	return wrapCoded(ErrNoAttribute, platformerrors.CodeNotFound,
		fmt.Sprintf("%T has no attribute %q", obj, name),
		map[string]interface{}{"attr": name, "type": fmt.Sprintf("%T", obj)})
}

// applyStep performs one accessor on obj. It is shared by cache misses and
// by Derived replay so both produce the same object.
func applyStep(obj any, s Step) (any, error) {
	args, kwargs, err := resolveArgs(s.Args, s.Kwargs)
	if err != nil {
		return nil, err
	}
	switch s.Name {
	case keyGetItem, keyIter:
		if len(args) != 1 {
			return nil, badArguments(s.Name, "exactly one index argument required")
		}
		if rv := derefValue(obj); rv.Kind() == reflect.Map {
			return entry(rv, s.Name, args[0])
		}
		i, ok := toInt(args[0])
		if !ok {
			return nil, badArguments(s.Name, fmt.Sprintf("index must be an integer, got %T", args[0]))
		}
		return index(obj, i)
	case keyLen:
		return length(obj)
	case keyBool:
		return truth(obj), nil
	}

	a, err := getAttr(obj, s.Name)
	if err != nil {
		return nil, err
	}
	if !s.Call {
		if a.callable {
			return a.fn.Interface(), nil
		}
		return a.val, nil
	}
	if !a.callable {
		return nil, badArguments(s.Name, "attribute is not callable")
	}
	return invoke(a.fn, s.Name, args, kwargs)
}

// invoke calls fn with converted arguments. A trailing map[string]any
// parameter receives kwargs. A trailing non-nil error result is returned
// as is; remaining results map to nil, a single value or a []any.
func invoke(fn reflect.Value, name string, args []any, kwargs map[string]any) (any, error) {
	t := fn.Type()
	n := t.NumIn()
	variadic := t.IsVariadic()
	hasKw := n > 0 && !variadic && t.In(n-1) == kwargsType
	fixed := n
	if hasKw {
		fixed--
	}
	if len(kwargs) > 0 && !hasKw {
		return nil, badArguments(name, "method takes no keyword arguments")
	}
	switch {
	case variadic && len(args) < n-1:
		return nil, badArguments(name, fmt.Sprintf("want at least %d arguments, got %d", n-1, len(args)))
	case !variadic && len(args) != fixed:
		return nil, badArguments(name, fmt.Sprintf("want %d arguments, got %d", fixed, len(args)))
	}

	in := make([]reflect.Value, 0, len(args)+1)
	for i, a := range args {
		var pt reflect.Type
		if variadic && i >= n-1 {
			pt = t.In(n - 1).Elem()
		} else {
			pt = t.In(i)
		}
		v, err := convertArg(a, pt)
		if err != nil {
			return nil, badArguments(name, fmt.Sprintf("argument %d: %v", i, err))
		}
		in = append(in, v)
	}
	if hasKw {
		if kwargs == nil {
			in = append(in, reflect.Zero(kwargsType))
		} else {
			in = append(in, reflect.ValueOf(kwargs))
		}
	}

	out := fn.Call(in)
	if len(out) > 0 && t.Out(len(out)-1) == errorType {
		if e := out[len(out)-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		res := make([]any, len(out))
		for i, o := range out {
			res[i] = o.Interface()
		}
		return res, nil
	}
}

func convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumber(v.Kind()) && isNumber(t.Kind()) {
		return v.Convert(t), nil
	}
	if v.Kind() == reflect.Slice && t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convertArg(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(e)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

func toInt(a any) (int, bool) {
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint()), true
	}
	return 0, false
}

func badArguments(name, msg string) error {
	return wrapCoded(ErrBadArguments, platformerrors.CodeInvalidInput,
		fmt.Sprintf("%s: %s", name, msg), map[string]interface{}{"attr": name})
}

func notContainer(obj any) error {
	return wrapCoded(ErrNotContainer, platformerrors.CodeInvalidInput,
		fmt.Sprintf("%T is not a container", obj), map[string]interface{}{"type": fmt.Sprintf("%T", obj)})
}

// index returns element i of a container; negative i counts from the end.
func index(obj any, i int) (any, error) {
	n, err := length(obj)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, wrapCoded(ErrOutOfRange, platformerrors.CodeInvalidInput,
			fmt.Sprintf("index %d out of range [0:%d]", i, n), map[string]interface{}{"index": i, "len": n})
	}
	if s, ok := obj.(Sequence); ok {
		return s.At(i), nil
	}
	rv := derefValue(obj)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, notContainer(obj)
	}
	return rv.Index(i).Interface(), nil
}

// entry returns the map element stored under key, converting key to the
// map's key type within the same kind family.
func entry(m reflect.Value, name string, key any) (any, error) {
	kt := m.Type().Key()
	kv := reflect.ValueOf(key)
	if !kv.IsValid() || !sameFamily(kv.Kind(), kt.Kind()) || !kv.CanConvert(kt) {
		return nil, badArguments(name, fmt.Sprintf("key must convert to %s, got %T", kt, key))
	}
	v := m.MapIndex(kv.Convert(kt))
	if !v.IsValid() {
		return nil, wrapCoded(ErrOutOfRange, platformerrors.CodeInvalidInput,
			fmt.Sprintf("key %v not in map", key), map[string]interface{}{"key": key})
	}
	return v.Interface(), nil
}

func sameFamily(a, b reflect.Kind) bool {
	family := func(k reflect.Kind) int {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return 1
		case reflect.Float32, reflect.Float64:
			return 2
		}
		return int(k) << 2
	}
	return family(a) == family(b)
}

// items materialises every element of a container, in order.
func items(obj any) ([]any, error) {
	if s, ok := obj.(Sequence); ok {
		out := make([]any, s.Len())
		for i := range out {
			out[i] = s.At(i)
		}
		return out, nil
	}
	rv := derefValue(obj)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, notContainer(obj)
}

func length(obj any) (int, error) {
	if s, ok := obj.(Sequence); ok {
		return s.Len(), nil
	}
	rv := derefValue(obj)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len(), nil
	}
	return 0, notContainer(obj)
}

func truth(obj any) bool {
	if t, ok := obj.(Truther); ok {
		return t.Truth()
	}
	if s, ok := obj.(Sequence); ok {
		return s.Len() > 0
	}
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return false
		}
	}
	rv = derefValue(obj)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}

func derefValue(obj any) reflect.Value {
	rv := reflect.ValueOf(obj)
	for rv.IsValid() && rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv
}

// setAttr forwards an attribute write to the real object.
func setAttr(obj any, name string, v any) error {
	if s, ok := obj.(AttrSetter); ok {
		return s.SetAttr(name, v)
	}
	rv := derefValue(obj)
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			return noAttribute(obj, name)
		}
		cv, err := convertArg(v, f.Type())
		if err != nil {
			return badArguments(name, err.Error())
		}
		f.Set(cv)
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return noAttribute(obj, name)
		}
		cv, err := convertArg(v, rv.Type().Elem())
		if err != nil {
			return badArguments(name, err.Error())
		}
		rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), cv)
		return nil
	}
	return noAttribute(obj, name)
}

// setIndex forwards an indexed write to the real object.
func setIndex(obj any, i int, v any) error {
	if s, ok := obj.(IndexSetter); ok {
		return s.SetAt(i, v)
	}
	rv := derefValue(obj)
	if rv.Kind() != reflect.Slice && !(rv.Kind() == reflect.Array && rv.CanAddr()) {
		return notContainer(obj)
	}
	if i < 0 {
		i += rv.Len()
	}
	if i < 0 || i >= rv.Len() {
		return wrapCoded(ErrOutOfRange, platformerrors.CodeInvalidInput,
			fmt.Sprintf("index %d out of range [0:%d]", i, rv.Len()), map[string]interface{}{"index": i})
	}
	cv, err := convertArg(v, rv.Type().Elem())
	if err != nil {
		return badArguments(keyGetItem, err.Error())
	}
	rv.Index(i).Set(cv)
	return nil
}
