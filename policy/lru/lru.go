// Package lru implements least-recently-used replacement for the reuse
// cache: reads promote an entry, the back of the list is the stalest one.
package lru

import "github.com/DIDONEproject/musif-sub000/policy"

type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory for LRU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

// New implements policy.Policy by binding the cache's hooks.
func (lruPolicy[K, V]) New(h policy.Hooks[K, V]) policy.Instance[K, V] {
	return &lru[K, V]{h: h}
}

// OnAdd places the new entry at the front. Capacity is enforced by the
// cache, which evicts Victim() before admitting.
func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) { p.h.PushFront(n) }

// OnGet promotes the entry.
func (p *lru[K, V]) OnGet(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry (replacing a document counts as use).
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnEvict and OnRemove are no-ops: LRU keeps no state outside the list.
func (p *lru[K, V]) OnEvict(policy.Node[K, V])  {}
func (p *lru[K, V]) OnRemove(policy.Node[K, V]) {}

// Victim is the least recently used entry.
func (p *lru[K, V]) Victim() policy.Node[K, V] { return p.h.Back() }
