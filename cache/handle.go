package cache

import (
	"errors"
	"strconv"
	"sync"
)

// Handle owns zero or one live real object plus the Recipe that rebuilds
// it. It is either Live(object) or Detached(recipe); Get is the only
// Detached->Live transition and Drop the only Live->Detached one.
type Handle struct {
	id     uint64
	owner  *Cache
	recipe Recipe // immutable once the handle is published

	mu   sync.Mutex
	obj  any
	live bool
}

// ID returns the surrogate identity shared by the handle and its proxy.
// It is assigned at creation and survives snapshots.
func (h *Handle) ID() uint64 { return h.id }

// Recipe returns the resurrection recipe (nil when terminal).
func (h *Handle) Recipe() Recipe { return h.recipe }

// Live reports whether the real object is currently held.
func (h *Handle) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// Drop releases the real object. Cached results are unaffected; the next
// dereference resurrects from the recipe.
func (h *Handle) Drop() {
	h.mu.Lock()
	h.obj, h.live = nil, false
	h.mu.Unlock()
}

// peek returns the real object without resurrecting it.
func (h *Handle) peek() (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.obj, h.live
}

// Get returns the real object, resurrecting it from the recipe when
// detached. Concurrent callers wait for a single resurrection.
//
// Errors raised by constructors or by the real object while replaying a
// step are returned unmodified; everything else wraps ErrNotResurrectable.
func (h *Handle) Get() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live {
		return h.obj, nil
	}

	obj, err := h.resurrect()
	if err != nil {
		return nil, err
	}
	h.obj, h.live = obj, true

	kind := RecipeNone
	if h.recipe != nil {
		kind = h.recipe.Kind()
	}
	if h.owner != nil {
		h.owner.stats.resurrect(kind)
		h.owner.log.Debug("resurrected handle", "handle", h.id, "recipe", kind)
	}
	return obj, nil
}

// stale reports whether a replayed step failed because the path no longer
// fits the object, as opposed to the object itself failing.
func stale(err error) bool {
	return errors.Is(err, ErrNoAttribute) || errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrBadArguments) || errors.Is(err, ErrNotContainer)
}

// resurrect runs the recipe. Called with h.mu held; it only locks
// ancestors and argument handles, never h itself.
func (h *Handle) resurrect() (any, error) {
	switch r := h.recipe.(type) {
	case nil:
		return nil, notResurrectable(h.id, "no recipe", nil)

	case Direct:
		if h.owner == nil {
			return nil, notResurrectable(h.id, "no constructor registry", nil)
		}
		ctor, ok := h.owner.constructor(r.Constructor)
		if !ok {
			return nil, notResurrectable(h.id, "unknown constructor",
				map[string]interface{}{"constructor": r.Constructor})
		}
		return ctor(r.Args...)

	case Derived:
		if r.Parent == nil {
			return nil, notResurrectable(h.id, "missing parent", nil)
		}
		obj, err := r.Parent.Get()
		if errors.Is(err, ErrNotResurrectable) {
			return nil, err
		}
		if err != nil {
			return nil, notResurrectable(h.id, "parent failed",
				map[string]interface{}{"parent": r.Parent.id, "cause": err.Error()})
		}
		for i, s := range r.Steps {
			if s.Name == "" {
				return nil, notResurrectable(h.id, "empty step name",
					map[string]interface{}{"step": i})
			}
			obj, err = applyStep(obj, s)
			if stale(err) {
				return nil, notResurrectable(h.id, "step "+strconv.Quote(s.Name)+" no longer resolves",
					map[string]interface{}{"step": i, "cause": err.Error()})
			}
			if err != nil {
				return nil, err
			}
		}
		return obj, nil

	default:
		return nil, notResurrectable(h.id, "unsupported recipe", nil)
	}
}
