package cache

// Real objects are read through reflection by default. A type can take
// over any part of that by implementing one of the interfaces below; the
// proxy checks them first.

// AttrGetter resolves attributes by name. Returning ok=false falls back
// to reflection.
type AttrGetter interface {
	GetAttr(name string) (v any, ok bool)
}

// AttrSetter receives forwarded attribute writes.
type AttrSetter interface {
	SetAttr(name string, v any) error
}

// Sequence is an ordered, indexable container. Iteration, indexing and
// length on a proxy go through it.
type Sequence interface {
	Len() int
	At(i int) any
}

// IndexSetter receives forwarded indexed writes.
type IndexSetter interface {
	SetAt(i int, v any) error
}

// Truther overrides boolean coercion.
type Truther interface {
	Truth() bool
}
