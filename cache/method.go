package cache

import (
	"sync"

	"github.com/DIDONEproject/musif-sub000/internal/singleflight"
)

// Method caches the results of one callable attribute of one proxy,
// keyed by ArgumentKey. A raw Method caches nothing.
type Method struct {
	proxy *Proxy
	name  string
	raw   bool

	mu      sync.Mutex
	calls   map[ArgumentKey]Value
	flights singleflight.Group[ArgumentKey, Value]
}

func newMethod(p *Proxy, name string, raw bool) *Method {
	return &Method{proxy: p, name: name, raw: raw, calls: make(map[ArgumentKey]Value)}
}

// Name returns the attribute name (without the raw marker).
func (m *Method) Name() string { return m.name }

// Raw reports whether this is a raw escape method.
func (m *Method) Raw() bool { return m.raw }

// Len returns the number of cached argument lists.
func (m *Method) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Call returns the cached result for the arguments, invoking the real
// method on a miss. A method that returns nothing is cached as None.
//
// Raw methods invoke the real method every time with proxies replaced by
// their real objects and return the result unclassified as a plain value.
func (m *Method) Call(args []any, kwargs map[string]any) (Value, error) {
	bargs, bkw, err := bind(args, kwargs)
	if err != nil {
		return Value{}, err
	}
	step := Step{Name: m.name, Call: true, Args: bargs, Kwargs: bkw}
	c := m.proxy.owner

	if m.raw {
		c.stats.raw.Add(1)
		obj, err := m.proxy.handle.Get()
		if err != nil {
			return Value{}, err
		}
		out, err := applyStep(obj, step)
		if err != nil {
			return Value{}, err
		}
		return Plain(out), nil
	}

	key := NewArgumentKey(bargs, bkw)
	if v, ok := m.cached(key); ok {
		c.stats.hit()
		return v, nil
	}
	v, err, _ := m.flights.Do(key, func() (Value, error) {
		if v, ok := m.cached(key); ok {
			return v, nil
		}
		c.stats.miss()
		obj, err := m.proxy.handle.Get()
		if err != nil {
			return Value{}, err
		}
		out, err := applyStep(obj, step)
		if err != nil {
			return Value{}, err
		}
		v := c.classify(out, m.proxy.handle, []Step{step})
		m.mu.Lock()
		m.calls[key] = v
		m.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Cached returns the stored result for the arguments without invoking
// anything. ok is false for argument lists never queried; a cached
// "no result" comes back as None with ok true.
func (m *Method) Cached(args []any, kwargs map[string]any) (v Value, ok bool) {
	if m.raw {
		return Value{}, false
	}
	bargs, bkw, err := bind(args, kwargs)
	if err != nil {
		return Value{}, false
	}
	return m.cached(NewArgumentKey(bargs, bkw))
}

func (m *Method) cached(key ArgumentKey) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.calls[key]
	return v, ok
}

// results returns a copy of the cached values.
func (m *Method) results() []Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Value, 0, len(m.calls))
	for _, v := range m.calls {
		out = append(out, v)
	}
	return out
}

// entries returns a copy of the cached results by key.
func (m *Method) entries() map[ArgumentKey]Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[ArgumentKey]Value, len(m.calls))
	for k, v := range m.calls {
		out[k] = v
	}
	return out
}
