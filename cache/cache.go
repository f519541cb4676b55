package cache

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	platformerrors "github.com/jmgilman/go/errors"
)

// ErrClosed is returned by Root, Wrap-free operations and Load after Close.
var ErrClosed = platformerrors.New(platformerrors.CodeConflict, "cache: closed")

// Cache owns everything one extraction run shares: the constructor
// registry, the surrogate id allocator, the classifier, logging and
// counters. Proxies obtained from it stay usable until the process drops
// them; Close only stops new roots from being created.
type Cache struct {
	opt    Options
	log    *log.Logger
	cls    Classifier
	stats  counters
	nextID atomic.Uint64
	closed atomic.Bool

	mu    sync.RWMutex
	ctors map[string]Constructor
}

// New constructs a Cache with the provided Options.
// Defaults:
//   - empty RawMarker -> DefaultRawMarker
//   - nil Logger      -> log.Default()
//   - nil Metrics     -> NoopMetrics
func New(opt Options) *Cache {
	if opt.RawMarker == "" {
		opt.RawMarker = DefaultRawMarker
	}
	if opt.Logger == nil {
		opt.Logger = log.Default()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	c := &Cache{
		opt:   opt,
		log:   opt.Logger.WithPrefix("proxycache"),
		cls:   NewClassifier(opt.WrapPrefixes...),
		ctors: make(map[string]Constructor, len(opt.Constructors)),
	}
	maps.Copy(c.ctors, opt.Constructors)
	c.stats.m = opt.Metrics
	return c
}

// Register adds or replaces a constructor usable by Direct recipes.
func (c *Cache) Register(name string, fn Constructor) {
	c.mu.Lock()
	c.ctors[name] = fn
	c.mu.Unlock()
}

func (c *Cache) constructor(name string) (Constructor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.ctors[name]
	return fn, ok && fn != nil
}

// Root builds a real object with the named constructor and returns the
// root proxy over it. The handle records a Direct recipe, so the object
// can be dropped and rebuilt later. Constructor errors are returned as is.
func (c *Cache) Root(constructor string, args ...any) (*Proxy, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	fn, ok := c.constructor(constructor)
	if !ok {
		return nil, platformerrors.WrapWithContext(ErrUnknownConstructor, platformerrors.CodeInvalidConfig,
			"unknown constructor "+constructor, map[string]interface{}{"constructor": constructor})
	}
	obj, err := fn(args...)
	if err != nil {
		return nil, err
	}
	h := c.newHandle(Direct{Constructor: constructor, Args: args}, obj)
	return c.newProxy(h), nil
}

// Wrap returns a root proxy over an existing object. The handle has no
// recipe: once dropped (or after a snapshot round trip) any cache miss
// fails with ErrNotResurrectable.
func (c *Cache) Wrap(obj any) *Proxy {
	return c.newProxy(c.newHandle(nil, obj))
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats { return c.stats.snapshot() }

// Close marks the cache closed. Existing proxies keep working.
func (c *Cache) Close() error {
	c.closed.Store(true)
	return nil
}

// newHandle allocates a live handle with a fresh surrogate id.
func (c *Cache) newHandle(r Recipe, obj any) *Handle {
	return &Handle{
		id:     c.nextID.Add(1),
		owner:  c,
		recipe: r,
		obj:    obj,
		live:   true,
	}
}

// claimIDs hands the id range [1, top] to a snapshot being loaded. It
// fails once the cache has issued ids of its own, since those overlap the
// range and argument keys would confuse the two handles.
func (c *Cache) claimIDs(top uint64) error {
	if c.nextID.CompareAndSwap(0, top) {
		return nil
	}
	return wrapCoded(ErrIDConflict, platformerrors.CodeConflict, "load snapshot: surrogate ids already issued",
		map[string]interface{}{"issued": c.nextID.Load(), "snapshot": top})
}

// reserveIDs makes sure future ids are greater than max.
func (c *Cache) reserveIDs(max uint64) {
	for {
		cur := c.nextID.Load()
		if cur >= max || c.nextID.CompareAndSwap(cur, max) {
			return
		}
	}
}
