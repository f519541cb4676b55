package filecache

// node is an intrusive doubly linked list element owned by a Cache.
// Front is the newest (or most recently used) entry, back the next victim.
type node[K comparable, V any] struct {
	key K
	val V

	prev *node[K, V]
	next *node[K, V]
}

// Key returns the node key (part of policy.Node).
func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value (part of policy.Node).
func (n *node[K, V]) Value() *V { return &n.val }
