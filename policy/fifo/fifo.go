// Package fifo implements first-in-first-out replacement: entries leave
// in insertion order regardless of how often they are read.
package fifo

import "github.com/DIDONEproject/musif-sub000/policy"

type fifo[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type fifoPolicy[K comparable, V any] struct{}

// New returns a Policy factory for FIFO instances.
func New[K comparable, V any]() policy.Policy[K, V] { return fifoPolicy[K, V]{} }

// New implements policy.Policy.
func (fifoPolicy[K, V]) New(h policy.Hooks[K, V]) policy.Instance[K, V] {
	return &fifo[K, V]{h: h}
}

// OnAdd places the new entry at the front; the back is always the oldest.
func (p *fifo[K, V]) OnAdd(n policy.Node[K, V]) { p.h.PushFront(n) }

// OnGet keeps insertion order.
func (p *fifo[K, V]) OnGet(policy.Node[K, V]) {}

// OnUpdate keeps insertion order: replacing a value does not make it new.
func (p *fifo[K, V]) OnUpdate(policy.Node[K, V]) {}

func (p *fifo[K, V]) OnEvict(policy.Node[K, V])  {}
func (p *fifo[K, V]) OnRemove(policy.Node[K, V]) {}

// Victim is the oldest entry.
func (p *fifo[K, V]) Victim() policy.Node[K, V] { return p.h.Back() }
