// Package policy defines the replacement-policy contract used by the
// document reuse cache (package filecache).
package policy

// Node is the minimal contract a reuse-cache entry satisfies for a policy:
// read-only access to the key and a pointer to the value.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose the O(1) list operations a policy may use. The list runs
// from front (newest or most recently used) to back (next victim).
//
// Hooks manage only the list; the owning cache does its own bookkeeping.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node.
	MoveToFront(Node[K, V])
	// PushFront inserts the node (used on admission).
	PushFront(Node[K, V])
	// Remove detaches the node from the list.
	Remove(Node[K, V])
	// Back returns the next eviction victim (or nil if empty).
	Back() Node[K, V]
	// Len returns the number of resident nodes.
	Len() int
}

// Instance is a policy bound to one cache's hooks.
//
// Semantics:
//   - OnAdd must place the node in the list (usually PushFront).
//   - OnGet/OnUpdate may reorder (LRU promotes, FIFO does nothing).
//   - OnEvict and OnRemove are notifications; the cache unlinks the node
//     itself. OnEvict follows a capacity eviction of the Victim, OnRemove
//     an explicit removal.
//   - Victim names the node to evict when the cache is full (nil if empty).
type Instance[K comparable, V any] interface {
	OnAdd(Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnEvict(Node[K, V])
	OnRemove(Node[K, V])
	Victim() Node[K, V]
}

// Policy is a factory binding an Instance to a cache's hooks.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) Instance[K, V]
}
