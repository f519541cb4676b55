package cache

import (
	"bytes"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

// A tiny document model that counts every real access.

type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func newCalls() *calls { return &calls{n: make(map[string]int)} }

func (c *calls) inc(name string) {
	c.mu.Lock()
	c.n[name]++
	c.mu.Unlock()
}

func (c *calls) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

var errBoom = errors.New("boom")

type doc struct {
	Title string
	Tags  []string

	parts []*part
	calls *calls
}

type part struct {
	Name  string
	notes []*note
	calls *calls
}

type note struct {
	Pitch string
	Midi  int
}

func (d *doc) Parts() []*part { d.calls.inc("Parts"); return d.parts }

func (d *doc) Part(name string) *part {
	d.calls.inc("Part")
	for _, p := range d.parts {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (d *doc) PartsByName() map[string]*part {
	d.calls.inc("PartsByName")
	out := make(map[string]*part, len(d.parts))
	for _, p := range d.parts {
		out[p.Name] = p
	}
	return out
}

// Nothing returns no result at all.
func (d *doc) Nothing() { d.calls.inc("Nothing") }

func (d *doc) Fail() error { d.calls.inc("Fail"); return errBoom }

func (d *doc) Sum(xs ...int) int {
	d.calls.inc("Sum")
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

func (d *doc) Scale(x float64, kw map[string]any) float64 {
	d.calls.inc("Scale")
	if f, ok := kw["factor"].(int); ok {
		return x * float64(f)
	}
	return x
}

func (d *doc) MinMax() (int, int) { return 1, 9 }

func (p *part) Len() int     { p.calls.inc("Len"); return len(p.notes) }
func (p *part) At(i int) any { p.calls.inc("At"); return p.notes[i] }

func (p *part) Count(n *note) int {
	p.calls.inc("Count")
	c := 0
	for _, x := range p.notes {
		if x.Midi == n.Midi {
			c++
		}
	}
	return c
}

func (p *part) Highest() *note {
	p.calls.inc("Highest")
	var h *note
	for _, n := range p.notes {
		if h == nil || n.Midi > h.Midi {
			h = n
		}
	}
	return h
}

// IsSame is an identity check a proxy argument would fail.
func (p *part) IsSame(n *note) bool { return len(p.notes) > 0 && p.notes[0] == n }

func buildDoc(c *calls, title string) *doc {
	mk := func(pitches ...int) []*note {
		out := make([]*note, len(pitches))
		for i, m := range pitches {
			out[i] = &note{Pitch: pitchName(m), Midi: m}
		}
		return out
	}
	return &doc{
		Title: title,
		Tags:  []string{"aria", "opera seria"},
		parts: []*part{
			{Name: "soprano", notes: mk(60, 64, 67, 64, 72), calls: c},
			{Name: "bass", notes: mk(36, 43), calls: c},
		},
		calls: c,
	}
}

func pitchName(m int) string {
	return [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}[m%12]
}

var fixturePkg = reflect.TypeOf(doc{}).PkgPath()

// newTestCache returns a cache wrapping the fixture types with a "doc"
// constructor that counts constructions.
func newTestCache(t testing.TB, c *calls, opts ...func(*Options)) *Cache {
	t.Helper()
	opt := Options{
		WrapPrefixes: []string{fixturePkg},
		Constructors: map[string]Constructor{
			"doc": func(args ...any) (any, error) {
				c.inc("construct")
				title, _ := args[0].(string)
				return buildDoc(c, title), nil
			},
		},
		Logger: log.New(&bytes.Buffer{}),
	}
	for _, o := range opts {
		o(&opt)
	}
	cc := New(opt)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func mustRoot(t testing.TB, c *Cache) *Proxy {
	t.Helper()
	p, err := c.Root("doc", "Son qual nave")
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	return p
}
