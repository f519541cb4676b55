package filecache

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/DIDONEproject/musif-sub000/cache"
	"github.com/DIDONEproject/musif-sub000/policy/lru"
	"github.com/DIDONEproject/musif-sub000/policy/twoq"
)

// Inserting capacity+1 distinct keys evicts exactly the first one.
func TestFileCache_FIFOEvictsFirstInserted(t *testing.T) {
	t.Parallel()

	const capacity = 3
	var evicted []string
	c := New[string, int](Options[string, int]{
		Capacity: capacity,
		OnEvict: func(k string, _ int, reason cache.EvictReason) {
			if reason != cache.EvictCapacity {
				t.Errorf("reason: want EvictCapacity, got %v", reason)
			}
			evicted = append(evicted, k)
		},
	})

	for i := range capacity + 1 {
		c.Put(fmt.Sprintf("score-%d.yaml", i), i)
	}

	if !slices.Equal(evicted, []string{"score-0.yaml"}) {
		t.Fatalf("evicted: want [score-0.yaml], got %v", evicted)
	}
	if _, ok := c.Get("score-0.yaml"); ok {
		t.Fatal("first-inserted key must be gone")
	}
	for i := 1; i <= capacity; i++ {
		k := fmt.Sprintf("score-%d.yaml", i)
		if v, ok := c.Get(k); !ok || v != i {
			t.Fatalf("Get %s: want %d, got %v ok=%v", k, i, v, ok)
		}
	}
	if c.Len() != capacity {
		t.Fatalf("Len: want %d, got %d", capacity, c.Len())
	}
}

// Reads do not protect an entry under FIFO, but do under LRU.
func TestFileCache_FIFOVersusLRU(t *testing.T) {
	t.Parallel()

	fill := func(c *Cache[string, int]) {
		c.Put("a", 1)
		c.Put("b", 2)
		c.Get("a")
		c.Put("c", 3)
	}

	f := New[string, int](Options[string, int]{Capacity: 2})
	fill(f)
	if _, ok := f.Get("a"); ok {
		t.Fatal("FIFO: a must be evicted although it was read")
	}

	l := New[string, int](Options[string, int]{Capacity: 2, Policy: lru.New[string, int]()})
	fill(l)
	if _, ok := l.Get("a"); !ok {
		t.Fatal("LRU: a was read last and must survive")
	}
	if _, ok := l.Get("b"); ok {
		t.Fatal("LRU: b must be evicted")
	}
}

// Updating an existing key neither grows the cache nor evicts.
func TestFileCache_PutExistingUpdates(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{Capacity: 2})
	c.Put("k", "v1")
	c.Put("other", "x")
	c.Put("k", "v2")

	if c.Len() != 2 {
		t.Fatalf("Len: want 2, got %d", c.Len())
	}
	if v, _ := c.Get("k"); v != "v2" {
		t.Fatalf("want v2, got %q", v)
	}
	if got := c.Keys(); !slices.Equal(got, []string{"other", "k"}) {
		t.Fatalf("Keys: want [other k], got %v", got)
	}
}

func TestFileCache_Remove(t *testing.T) {
	t.Parallel()

	var reasons []cache.EvictReason
	c := New[string, int](Options[string, int]{
		OnEvict: func(_ string, _ int, r cache.EvictReason) { reasons = append(reasons, r) },
	})
	c.Put("a", 1)

	if !c.Remove("a") {
		t.Fatal("Remove a must be true")
	}
	if c.Remove("a") {
		t.Fatal("second Remove must be false")
	}
	if len(reasons) != 1 || reasons[0] != cache.EvictExplicit {
		t.Fatalf("want one EvictExplicit, got %v", reasons)
	}
}

// GetOrLoad loads once and does not cache failures.
func TestFileCache_GetOrLoad(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})
	calls := 0
	load := func(k string) (int, error) {
		calls++
		if k == "broken.yaml" {
			return 0, errors.New("parse error")
		}
		return len(k), nil
	}

	for range 3 {
		v, err := c.GetOrLoad("aria.yaml", load)
		if err != nil || v != len("aria.yaml") {
			t.Fatalf("GetOrLoad: v=%d err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader calls: want 1, got %d", calls)
	}

	if _, err := c.GetOrLoad("broken.yaml", load); err == nil {
		t.Fatal("want loader error")
	}
	if _, ok := c.Get("broken.yaml"); ok {
		t.Fatal("failed load must not be cached")
	}
}

// Under 2Q a document read twice outlives documents opened once, and a
// document evicted from A1in comes back as a ghost.
func TestFileCache_TwoQProtectsRereads(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := New[string, int](Options[string, int]{
		Capacity: 4,
		Policy:   twoq.ForCapacity[string, int](4),
		OnEvict:  func(k string, _ int, _ cache.EvictReason) { evicted = append(evicted, k) },
	})

	c.Put("a", 1)
	c.Get("a")
	for i, k := range []string{"b", "c", "d", "e"} {
		c.Put(k, i+2)
	}
	c.Put("b", 2)

	if !slices.Equal(evicted, []string{"b", "c"}) {
		t.Fatalf("evicted: want [b c], got %v", evicted)
	}
	for _, k := range []string{"a", "b", "d", "e"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s must be resident", k)
		}
	}
}

// Under 2Q a document removed on purpose is re-added as a first-time
// entry, not straight into the protected queue.
func TestFileCache_TwoQRemoveLeavesNoGhost(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := New[string, int](Options[string, int]{
		Capacity: 4,
		Policy:   twoq.ForCapacity[string, int](4),
		OnEvict: func(k string, _ int, reason cache.EvictReason) {
			if reason == cache.EvictCapacity {
				evicted = append(evicted, k)
			}
		},
	})

	c.Put("x", 0)
	c.Get("x")
	c.Put("a", 1)
	if !c.Remove("a") {
		t.Fatal("a must be removed")
	}
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Put("d", 4)

	if !slices.Equal(evicted, []string{"a"}) {
		t.Fatalf("evicted: want [a], got %v", evicted)
	}
	if _, ok := c.Get("x"); !ok {
		t.Fatal("x must be resident")
	}
}
