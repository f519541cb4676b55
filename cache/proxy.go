package cache

import (
	"slices"
	"strings"
	"sync"

	"github.com/DIDONEproject/musif-sub000/internal/singleflight"
	platformerrors "github.com/jmgilman/go/errors"
)

// Proxy is the cache-carrying stand-in for a real object. Every read
// (attribute, method call, iteration, indexing, length, truth) is answered
// from its cache map after the first time; misses dereference the handle
// once and classify the result.
//
// A Proxy is safe for concurrent reads: concurrent misses on the same key
// are coalesced into one real computation.
type Proxy struct {
	owner  *Cache
	handle *Handle

	mu      sync.Mutex
	entries map[string]Value

	// in-flight markers for misses, keyed like entries
	sf singleflight.Group[string, Value]
}

func (c *Cache) newProxy(h *Handle) *Proxy {
	return &Proxy{owner: c, handle: h, entries: make(map[string]Value)}
}

// ID returns the proxy's surrogate identity (its handle's id).
func (p *Proxy) ID() uint64 { return p.handle.id }

// Handle returns the reference handle behind the proxy.
func (p *Proxy) Handle() *Handle { return p.handle }

// Keys returns the populated cache keys in sorted order.
func (p *Proxy) Keys() []string {
	p.mu.Lock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	p.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// Cached returns the entry for key without computing it.
func (p *Proxy) Cached(key string) (Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.entries[key]
	return v, ok
}

// Attr returns attribute name. A callable attribute yields a KindMethod
// value without invoking anything; other values are classified. Names
// starting with the raw marker yield an uncached raw method.
func (p *Proxy) Attr(name string) (Value, error) {
	if marker := p.owner.opt.RawMarker; strings.HasPrefix(name, marker) && len(name) > len(marker) {
		return methodValue(newMethod(p, strings.TrimPrefix(name, marker), true)), nil
	}
	return p.lookup(name, func() (Value, error) {
		obj, err := p.handle.Get()
		if err != nil {
			return Value{}, err
		}
		a, err := getAttr(obj, name)
		if err != nil {
			return Value{}, err
		}
		if a.callable {
			return methodValue(newMethod(p, name, false)), nil
		}
		return p.owner.classify(a.val, p.handle, []Step{{Name: name}}), nil
	})
}

// Call invokes method name with positional arguments.
func (p *Proxy) Call(name string, args ...any) (Value, error) {
	return p.CallKw(name, args, nil)
}

// CallKw invokes method name with positional and keyword arguments.
func (p *Proxy) CallKw(name string, args []any, kwargs map[string]any) (Value, error) {
	v, err := p.Attr(name)
	if err != nil {
		return Value{}, err
	}
	if v.Kind() != KindMethod {
		return Value{}, badArguments(name, "attribute is not callable")
	}
	return v.method.Call(args, kwargs)
}

// Iter materialises and classifies every element once; later iterations
// and indexing are served from the cache.
func (p *Proxy) Iter() ([]Value, error) {
	v, err := p.lookup(keyIter, func() (Value, error) {
		obj, err := p.handle.Get()
		if err != nil {
			return Value{}, err
		}
		elems, err := items(obj)
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, len(elems))
		for i, e := range elems {
			out[i] = p.owner.classify(e, p.handle, []Step{{
				Name: keyIter,
				Call: true,
				Args: []Arg{{Value: i}},
			}})
		}
		return seqValue(out), nil
	})
	if err != nil {
		return nil, err
	}
	return v.Items(), nil
}

// Index returns element i (negative counts from the end).
func (p *Proxy) Index(i int) (Value, error) {
	if it, ok := p.Cached(keyIter); ok {
		j := i
		if j < 0 {
			j += len(it.items)
		}
		if j < 0 || j >= len(it.items) {
			return Value{}, wrapCoded(ErrOutOfRange, platformerrors.CodeInvalidInput,
				"index out of range", map[string]interface{}{"index": i, "len": len(it.items)})
		}
		p.owner.stats.hit()
		return it.items[j], nil
	}
	m, err := p.lookup(keyGetItem, func() (Value, error) {
		return methodValue(newMethod(p, keyGetItem, false)), nil
	})
	if err != nil {
		return Value{}, err
	}
	return m.method.Call([]any{i}, nil)
}

// Len returns the container length.
func (p *Proxy) Len() (int, error) {
	if it, ok := p.Cached(keyIter); ok {
		return len(it.items), nil
	}
	v, err := p.lookup(keyLen, func() (Value, error) {
		obj, err := p.handle.Get()
		if err != nil {
			return Value{}, err
		}
		n, err := length(obj)
		if err != nil {
			return Value{}, err
		}
		return Plain(n), nil
	})
	if err != nil {
		return 0, err
	}
	n, _ := As[int](v)
	return n, nil
}

// Bool returns the truth value of the real object.
func (p *Proxy) Bool() (bool, error) {
	v, err := p.lookup(keyBool, func() (Value, error) {
		obj, err := p.handle.Get()
		if err != nil {
			return Value{}, err
		}
		return Plain(truth(obj)), nil
	})
	if err != nil {
		return false, err
	}
	b, _ := As[bool](v)
	return b, nil
}

// SetAttr forwards an attribute write to the real object if it is live.
// The cache is not updated and may disagree with the object afterwards:
// treat proxies as read-only.
func (p *Proxy) SetAttr(name string, v any) {
	p.forwardWrite("attr", name, func(obj any) error {
		return setAttr(obj, name, unwrapLive(v))
	})
}

// SetIndex forwards an indexed write to the real object if it is live,
// with the same caveats as SetAttr.
func (p *Proxy) SetIndex(i int, v any) {
	p.forwardWrite("index", i, func(obj any) error {
		return setIndex(obj, i, unwrapLive(v))
	})
}

func (p *Proxy) forwardWrite(kind string, target any, write func(obj any) error) {
	l := p.owner.log.With("handle", p.handle.id, kind, target)
	l.Warn("write through proxy is not reflected in the cache")
	obj, live := p.handle.peek()
	if !live {
		p.owner.stats.dropped.Add(1)
		l.Debug("write dropped, handle detached")
		return
	}
	if err := write(obj); err != nil {
		l.Warn("write forwarding failed", "err", err)
	}
}

// unwrapLive replaces a proxy by its live real object; a detached proxy
// stays as is (writes never resurrect).
func unwrapLive(v any) any {
	switch x := v.(type) {
	case *Proxy:
		if obj, ok := x.handle.peek(); ok {
			return obj
		}
	case Value:
		if x.Kind() == KindNode {
			return unwrapLive(x.node)
		}
		return x.Interface()
	}
	return v
}

// Drop detaches the handles of this proxy and of every proxy reachable
// through its cache. Cached results stay.
func (p *Proxy) Drop() {
	p.walk(func(q *Proxy) { q.handle.Drop() })
}

// walk visits p and every proxy reachable from its entries, once each.
func (p *Proxy) walk(visit func(*Proxy)) {
	seen := make(map[*Proxy]struct{})
	var rec func(q *Proxy)
	var val func(v Value)
	rec = func(q *Proxy) {
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		visit(q)
		q.mu.Lock()
		vals := make([]Value, 0, len(q.entries))
		for _, v := range q.entries {
			vals = append(vals, v)
		}
		q.mu.Unlock()
		for _, v := range vals {
			val(v)
		}
	}
	val = func(v Value) {
		switch v.Kind() {
		case KindNode:
			rec(v.node)
		case KindSequence:
			for _, it := range v.items {
				val(it)
			}
		case KindMethod:
			for _, r := range v.method.results() {
				val(r)
			}
		}
	}
	rec(p)
}

// lookup returns entries[key], computing and storing it on a miss. A
// miss runs compute at most once across concurrent callers.
func (p *Proxy) lookup(key string, compute func() (Value, error)) (Value, error) {
	if v, ok := p.Cached(key); ok {
		p.owner.stats.hit()
		return v, nil
	}
	v, err, _ := p.sf.Do(key, func() (Value, error) {
		// double-check after flight join
		if v, ok := p.Cached(key); ok {
			return v, nil
		}
		p.owner.stats.miss()
		v, err := compute()
		if err != nil {
			return Value{}, err
		}
		p.mu.Lock()
		p.entries[key] = v
		p.mu.Unlock()
		return v, nil
	})
	return v, err
}

// set stores an entry directly; used when loading snapshots.
func (p *Proxy) set(key string, v Value) {
	p.mu.Lock()
	p.entries[key] = v
	p.mu.Unlock()
}
