package cache

import "sync/atomic"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                 {}
func (NoopMetrics) Miss()                {}
func (NoopMetrics) Resurrect(RecipeKind) {}
func (NoopMetrics) Evict(EvictReason)    {}
func (NoopMetrics) Size(entries int)     {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

// Stats is a point-in-time copy of a Cache's own counters.
type Stats struct {
	Hits         int64
	Misses       int64
	Resurrected  int64
	RawCalls     int64
	DroppedWrite int64
}

// counters backs Stats. It forwards every event to the configured Metrics.
type counters struct {
	m Metrics

	hits        atomic.Int64
	misses      atomic.Int64
	resurrected atomic.Int64
	raw         atomic.Int64
	dropped     atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1); c.m.Hit() }
func (c *counters) miss() { c.misses.Add(1); c.m.Miss() }
func (c *counters) resurrect(k RecipeKind) {
	c.resurrected.Add(1)
	c.m.Resurrect(k)
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Resurrected:  c.resurrected.Load(),
		RawCalls:     c.raw.Load(),
		DroppedWrite: c.dropped.Load(),
	}
}
