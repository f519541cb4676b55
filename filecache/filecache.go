// Package filecache keeps a handful of whole parsed documents in memory so
// that one run never parses the same file twice. It is deliberately small:
// lookups scan the resident entries linearly, nothing is persisted and
// there is no locking.
package filecache

import (
	"github.com/DIDONEproject/musif-sub000/cache"
	"github.com/DIDONEproject/musif-sub000/policy"
	"github.com/DIDONEproject/musif-sub000/policy/fifo"
)

// DefaultCapacity is used when Options.Capacity is not positive.
const DefaultCapacity = 4

// Options configures a Cache. Zero values are safe:
//   - Capacity <= 0 => DefaultCapacity
//   - nil Policy    => FIFO
//   - nil Metrics   => cache.NoopMetrics
type Options[K comparable, V any] struct {
	Capacity int
	Policy   policy.Policy[K, V]

	// OnEvict is called for every entry leaving the cache.
	OnEvict func(k K, v V, reason cache.EvictReason)

	Metrics cache.Metrics
}

// Cache is a bounded reuse cache. It is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	head *node[K, V]
	tail *node[K, V]
	len  int
	cap  int

	pol policy.Instance[K, V]
	opt Options[K, V]
}

// New returns an empty cache.
func New[K comparable, V any](opt Options[K, V]) *Cache[K, V] {
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}
	if opt.Policy == nil {
		opt.Policy = fifo.New[K, V]()
	}
	if opt.Metrics == nil {
		opt.Metrics = cache.NoopMetrics{}
	}
	c := &Cache[K, V]{cap: opt.Capacity, opt: opt}
	c.pol = opt.Policy.New(hooks[K, V]{c: c})
	return c
}

// Get returns the value stored under k.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	n := c.find(k)
	if n == nil {
		c.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	c.pol.OnGet(n)
	c.opt.Metrics.Hit()
	return n.val, true
}

// Put stores v under k. A new key arriving at capacity first evicts the
// policy's victim (the oldest entry under FIFO).
func (c *Cache[K, V]) Put(k K, v V) {
	if n := c.find(k); n != nil {
		n.val = v
		c.pol.OnUpdate(n)
		return
	}
	if c.len >= c.cap {
		if victim := c.pol.Victim(); victim != nil {
			c.evict(victim.(*node[K, V]), cache.EvictCapacity)
		}
	}
	c.pol.OnAdd(&node[K, V]{key: k, val: v})
	c.opt.Metrics.Size(c.len)
}

// Remove deletes k. Returns true if it was present.
func (c *Cache[K, V]) Remove(k K) bool {
	n := c.find(k)
	if n == nil {
		return false
	}
	c.evict(n, cache.EvictExplicit)
	c.opt.Metrics.Size(c.len)
	return true
}

// GetOrLoad returns the cached value for k, or calls load and caches its
// result. Load errors are returned as is and nothing is stored.
func (c *Cache[K, V]) GetOrLoad(k K, load func(K) (V, error)) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	v, err := load(k)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(k, v)
	return v, nil
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int { return c.len }

// Keys returns the resident keys from front to back.
func (c *Cache[K, V]) Keys() []K {
	out := make([]K, 0, c.len)
	for n := c.head; n != nil; n = n.next {
		out = append(out, n.key)
	}
	return out
}

func (c *Cache[K, V]) find(k K) *node[K, V] {
	for n := c.head; n != nil; n = n.next {
		if n.key == k {
			return n
		}
	}
	return nil
}

func (c *Cache[K, V]) evict(n *node[K, V], reason cache.EvictReason) {
	if reason == cache.EvictCapacity {
		c.pol.OnEvict(n)
	} else {
		c.pol.OnRemove(n)
	}
	c.unlink(n)
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// -------------------- list --------------------

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.len++
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.head == n {
		c.head = n.next
	}
	if c.tail == n {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
	c.len--
}

// hooks adapts the list to policy.Hooks.
type hooks[K comparable, V any] struct{ c *Cache[K, V] }

func (h hooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.c.moveToFront(x.(*node[K, V])) }
func (h hooks[K, V]) PushFront(x policy.Node[K, V])   { h.c.pushFront(x.(*node[K, V])) }
func (h hooks[K, V]) Remove(x policy.Node[K, V])      { h.c.unlink(x.(*node[K, V])) }
func (h hooks[K, V]) Back() policy.Node[K, V] {
	if h.c.tail == nil {
		return nil
	}
	return h.c.tail
}
func (h hooks[K, V]) Len() int { return h.c.len }
