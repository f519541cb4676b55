package lru

import (
	"testing"

	"github.com/DIDONEproject/musif-sub000/policy"
)

// --- test doubles ---

type testNode[K comparable, V any] struct {
	k K
	v V
}

func (n *testNode[K, V]) Key() K    { return n.k }
func (n *testNode[K, V]) Value() *V { return &n.v }

type mockHooks[K comparable, V any] struct {
	pushFrontCnt   int
	moveToFrontCnt int
	removeCnt      int

	lastPush policy.Node[K, V]
	lastMove policy.Node[K, V]
	lastRem  policy.Node[K, V]

	lenVal  int
	backVal policy.Node[K, V]
}

func (h *mockHooks[K, V]) MoveToFront(n policy.Node[K, V]) { h.moveToFrontCnt++; h.lastMove = n }
func (h *mockHooks[K, V]) PushFront(n policy.Node[K, V])   { h.pushFrontCnt++; h.lastPush = n }
func (h *mockHooks[K, V]) Remove(n policy.Node[K, V])      { h.removeCnt++; h.lastRem = n }
func (h *mockHooks[K, V]) Back() policy.Node[K, V]         { return h.backVal }
func (h *mockHooks[K, V]) Len() int                        { return h.lenVal }

// --- tests ---

// Admission pushes, reads and updates promote, removal touches nothing.
func TestLRU_HookCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		event           func(policy.Instance[string, int], policy.Node[string, int])
		push, move, rem int
	}{
		{"add", policy.Instance[string, int].OnAdd, 1, 0, 0},
		{"get", policy.Instance[string, int].OnGet, 0, 1, 0},
		{"update", policy.Instance[string, int].OnUpdate, 0, 1, 0},
		{"evict", policy.Instance[string, int].OnEvict, 0, 0, 0},
		{"remove", policy.Instance[string, int].OnRemove, 0, 0, 0},
	}
	for _, tt := range tests {
		h := &mockHooks[string, int]{}
		n := &testNode[string, int]{k: "vinci-" + tt.name + ".yaml"}
		tt.event(New[string, int]().New(h), n)

		if h.pushFrontCnt != tt.push || h.moveToFrontCnt != tt.move || h.removeCnt != tt.rem {
			t.Fatalf("%s: push=%d move=%d remove=%d, want %d/%d/%d", tt.name,
				h.pushFrontCnt, h.moveToFrontCnt, h.removeCnt, tt.push, tt.move, tt.rem)
		}
		if tt.push == 1 && h.lastPush != n {
			t.Fatalf("%s: PushFront got another node", tt.name)
		}
		if tt.move == 1 && h.lastMove != n {
			t.Fatalf("%s: MoveToFront got another node", tt.name)
		}
	}
}

// The victim is whatever sits at the back of the list.
func TestLRU_VictimIsBack(t *testing.T) {
	t.Parallel()

	stale := &testNode[string, int]{k: "hasse.yaml"}
	h := &mockHooks[string, int]{backVal: stale}
	if v := New[string, int]().New(h).Victim(); v != stale {
		t.Fatalf("Victim: want back of list, got %v", v)
	}
	if v := New[string, int]().New(&mockHooks[string, int]{}).Victim(); v != nil {
		t.Fatalf("Victim of an empty list: want nil, got %v", v)
	}
}
