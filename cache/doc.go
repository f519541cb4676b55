// Package cache provides a transparent memoizing proxy over graphs of
// parsed documents. Every attribute read, method call, iteration, index or
// length taken through a Proxy is computed once on the real object and
// answered from the proxy's cache afterwards. Wrapped results become nested
// proxies, so the cache mirrors the shape of the object graph that was
// actually explored.
//
// Design
//
//   - Handles: each Proxy points at exactly one Handle. A Handle is either
//     Live (it holds the real object) or Detached (it holds only a Recipe).
//     Handle.Get is the only Detached→Live transition; it rebuilds the object
//     from a Direct recipe (registered constructor + arguments) or by
//     replaying Derived steps on the parent's object.
//
//   - Identity: handles and proxies share a surrogate id allocated by the
//     owning Cache. Ids are persisted in snapshots, so argument keys that
//     mention a proxy compare equal across a save/load round trip.
//
//   - Methods: a callable attribute is cached as a Method, a per-name map
//     keyed by ArgumentKey. "No result" is cached as None and is
//     distinguishable from "never called".
//
//   - Classification: the Classifier wraps values whose type belongs to one
//     of Options.WrapPrefixes (Go package paths), recurses into slices, and
//     passes everything else through as plain values.
//
//   - Raw escape: names prefixed with Options.RawMarker ("raw_" by default)
//     invoke the real method every time and bypass caching.
//
//   - Writes: SetAttr/SetIndex are forwarded to live objects only, logged as
//     a warning and never reflected in the cache.
//
//   - Persistence: Save/Load write handles, recipes and cache entries (never
//     live objects) as gob, optionally zstd-compressed.
//
// Basic usage
//
//	c := cache.New(cache.Options{
//	    WrapPrefixes: []string{"example.com/score"},
//	    Constructors: map[string]cache.Constructor{
//	        "parse": func(args ...any) (any, error) { return score.Load(args[0].(string)) },
//	    },
//	})
//	root, err := c.Root("parse", "aria.yaml")
//	parts, err := root.Attr("Parts")   // cached sequence of proxies
//	n, err := parts.Items()[0].Node().Call("CountPitch", "C")
//
// Persisting and resuming
//
//	_ = c.SaveFile("aria.snap", root)
//	root2, _ := cache.New(opt).LoadFile("aria.snap") // all handles detached
//	v, _ := root2.Attr("Title")                      // served from cache
//
// Thread-safety
//
// Proxy, Method and Handle are safe for concurrent use. Concurrent misses
// on the same cache key are coalesced: the real computation runs once and
// every waiter receives its result.
package cache
