package cache

import (
	"github.com/charmbracelet/log"
)

// DefaultRawMarker prefixes method names that bypass the cache.
const DefaultRawMarker = "raw_"

// RecipeKind identifies how a handle rebuilds its real object.
type RecipeKind int

const (
	// RecipeNone is terminal: the handle cannot be rebuilt once detached.
	RecipeNone RecipeKind = iota
	// RecipeDirect is a registered constructor plus arguments.
	RecipeDirect
	// RecipeDerived is a parent handle plus accessor steps to replay.
	RecipeDerived
)

// String returns a stable label for the kind.
func (k RecipeKind) String() string {
	switch k {
	case RecipeDirect:
		return "direct"
	case RecipeDerived:
		return "derived"
	default:
		return "none"
	}
}

// EvictReason explains why a reuse-cache entry was removed.
type EvictReason int

const (
	// EvictCapacity: removed to make room for a new entry.
	EvictCapacity EvictReason = iota
	// EvictExplicit: removed by the caller.
	EvictExplicit
)

// Metrics exposes observability hooks for the proxy cache and the
// document reuse cache. A NoopMetrics implementation is provided and used
// by default.
type Metrics interface {
	Hit()
	Miss()
	// Resurrect is called after a detached handle was rebuilt.
	Resurrect(kind RecipeKind)
	Evict(reason EvictReason)
	Size(entries int)
}

// Constructor builds a real object from scratch. It is the Direct recipe's
// "function reference": recipes persist the name it is registered under.
type Constructor func(args ...any) (any, error)

// Options configures a Cache. Zero values are safe;
// defaults are applied in New():
//   - empty RawMarker => DefaultRawMarker
//   - nil Logger      => log.Default()
//   - nil Metrics     => NoopMetrics
type Options struct {
	// WrapPrefixes lists Go package path prefixes whose values are wrapped
	// in a Proxy instead of being returned as plain values.
	WrapPrefixes []string

	// RawMarker prefixes method names invoked through the raw escape.
	RawMarker string

	// Constructors available to Direct recipes, by name.
	Constructors map[string]Constructor

	// Compression is the zstd level used by Save (0 = plain gob).
	Compression int

	Logger  *log.Logger
	Metrics Metrics
}
