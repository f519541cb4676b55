// Package twoq implements the 2Q replacement policy for the reuse cache:
// a document opened once leaves before documents that were opened again.
package twoq

import (
	"container/list"

	"github.com/DIDONEproject/musif-sub000/policy"
)

// twoQ keeps two resident queues in the cache's list:
//
//   - A1in: first-time entries, tracked in inList (front = newest).
//   - Am:   entries read again or readmitted from the ghosts.
//
// A1out (ghosts) remembers the keys of entries evicted from A1in, so a
// document reopened soon after skips A1in. Ghosts hold keys only.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	capIn    int
	capGhost int

	inList *list.List
	inIdx  map[policy.Node[K, V]]*list.Element

	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New constructs a 2Q policy factory. capIn bounds A1in before its
// entries are preferred as victims; capGhost bounds the ghost keys.
// Typical values are a quarter and a half of the cache capacity.
func New[K comparable, V any](capIn, capGhost int) policy.Policy[K, V] {
	return twoQPolicy[K, V]{capIn: max(capIn, 1), capGhost: max(capGhost, 1)}
}

// ForCapacity sizes a 2Q policy for a cache holding capacity entries.
func ForCapacity[K comparable, V any](capacity int) policy.Policy[K, V] {
	return New[K, V](capacity/4, capacity/2)
}

type twoQPolicy[K comparable, V any] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.Instance[K, V] {
	return &twoQ[K, V]{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[K, V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// OnAdd admits a ghost key straight into Am and anything else into A1in.
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) {
	q.h.PushFront(n)
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		return
	}
	q.inIdx[n] = q.inList.PushFront(n)
}

// OnGet promotes an A1in entry to Am and moves it to the front.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate counts as a read.
func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) { q.OnGet(n) }

// OnEvict turns an evicted A1in entry into a ghost. Evictions from Am
// leave no ghost.
func (q *twoQ[K, V]) OnEvict(n policy.Node[K, V]) {
	if !q.forget(n) {
		return
	}
	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)
	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}

// OnRemove forgets the entry. A document removed on purpose leaves no
// ghost, so adding it again starts over in A1in.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) { q.forget(n) }

// forget drops n from A1in and reports whether it was there.
func (q *twoQ[K, V]) forget(n policy.Node[K, V]) bool {
	el, ok := q.inIdx[n]
	if !ok {
		return false
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)
	return true
}

// Victim is the oldest A1in entry while A1in is over its share, otherwise
// the back of the list.
func (q *twoQ[K, V]) Victim() policy.Node[K, V] {
	if q.inList.Len() > q.capIn {
		return q.inList.Back().Value.(policy.Node[K, V])
	}
	return q.h.Back()
}
