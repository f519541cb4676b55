package cache

import (
	"fmt"
	"slices"
)

// Kind is the tag of a cached Value.
type Kind uint8

const (
	// KindPlain is a content-hashable value returned unchanged.
	KindPlain Kind = iota
	// KindNone is a cached "no result", distinct from an absent entry.
	KindNone
	// KindNode is a nested Proxy.
	KindNode
	// KindSequence is an ordered list of Values.
	KindSequence
	// KindMethod is a callable attribute backed by a Method cache.
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindNone:
		return "none"
	case KindNode:
		return "node"
	case KindSequence:
		return "sequence"
	case KindMethod:
		return "method"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is what a proxy hands back for every read: a plain value, the
// none sentinel, a nested proxy, a sequence of values or a method cache.
// The zero Value is None.
type Value struct {
	kind   Kind
	plain  any
	node   *Proxy
	items  []Value
	method *Method
}

// None returns the none sentinel.
func None() Value { return Value{kind: KindNone} }

// Plain wraps v as a plain value. A nil v yields None.
func Plain(v any) Value {
	if v == nil {
		return None()
	}
	return Value{kind: KindPlain, plain: v}
}

func nodeValue(p *Proxy) Value     { return Value{kind: KindNode, node: p} }
func seqValue(items []Value) Value { return Value{kind: KindSequence, items: items} }
func methodValue(m *Method) Value  { return Value{kind: KindMethod, method: m} }

// Kind returns the tag.
func (v Value) Kind() Kind {
	if v.kind == KindPlain && v.plain == nil {
		return KindNone
	}
	return v.kind
}

// IsNone reports whether v is the none sentinel.
func (v Value) IsNone() bool { return v.Kind() == KindNone }

// Interface returns the plain value, or nil for any other kind.
func (v Value) Interface() any {
	if v.kind != KindPlain {
		return nil
	}
	return v.plain
}

// Node returns the nested proxy, or nil.
func (v Value) Node() *Proxy { return v.node }

// Method returns the method cache, or nil.
func (v Value) Method() *Method { return v.method }

// Items returns a copy of the sequence elements, or nil.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return slices.Clone(v.items)
}

// Len returns the number of sequence elements.
func (v Value) Len() int { return len(v.items) }

func (v Value) String() string {
	switch v.Kind() {
	case KindPlain:
		return fmt.Sprintf("%v", v.plain)
	case KindNone:
		return "<none>"
	case KindNode:
		return fmt.Sprintf("<proxy #%d>", v.node.ID())
	case KindSequence:
		return fmt.Sprintf("<sequence len=%d>", len(v.items))
	case KindMethod:
		return fmt.Sprintf("<method %s>", v.method.Name())
	default:
		return "<invalid>"
	}
}

// As returns v's plain value as a T.
func As[T any](v Value) (T, bool) {
	t, ok := v.Interface().(T)
	return t, ok
}
