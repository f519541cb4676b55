package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/DIDONEproject/musif-sub000/cache"
)

// DumpOptions limits how much of a tree Dump prints.
type DumpOptions struct {
	// MaxDepth is the deepest proxy level printed (0 = root entries only).
	MaxDepth int
	// MaxItems is the number of sequence elements shown (<= 0 = all).
	MaxItems int
}

// Dump writes the cached entries of the tree under root. It only reads
// cached state and never reaches a real object.
func Dump(w io.Writer, root *cache.Proxy, opt DumpOptions) error {
	d := &dumper{w: w, opt: opt, seen: make(map[uint64]bool)}
	kind := cache.RecipeNone
	if r := root.Handle().Recipe(); r != nil {
		kind = r.Kind()
	}
	d.printf(0, "#%d recipe=%s\n", root.ID(), kind)
	d.proxy(root, 1)
	return d.err
}

type dumper struct {
	w    io.Writer
	opt  DumpOptions
	seen map[uint64]bool
	err  error
}

func (d *dumper) printf(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, strings.Repeat("  ", depth)+format, args...)
}

func (d *dumper) proxy(p *cache.Proxy, depth int) {
	d.seen[p.ID()] = true
	for _, k := range p.Keys() {
		v, _ := p.Cached(k)
		d.value(depth, k, v)
	}
}

func (d *dumper) value(depth int, label string, v cache.Value) {
	switch v.Kind() {
	case cache.KindNode:
		n := v.Node()
		if d.seen[n.ID()] {
			d.printf(depth, "%s: #%d (above)\n", label, n.ID())
			return
		}
		d.printf(depth, "%s: #%d\n", label, n.ID())
		if depth <= d.opt.MaxDepth {
			d.proxy(n, depth+1)
		}
	case cache.KindSequence:
		items := v.Items()
		d.printf(depth, "%s: [%d]\n", label, len(items))
		for i, it := range items {
			if d.opt.MaxItems > 0 && i >= d.opt.MaxItems {
				d.printf(depth+1, "... %d more\n", len(items)-i)
				break
			}
			d.value(depth+1, fmt.Sprintf("[%d]", i), it)
		}
	case cache.KindMethod:
		d.printf(depth, "%s(): %d cached calls\n", label, v.Method().Len())
	default:
		d.printf(depth, "%s = %s\n", label, clip(v.String(), 60))
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
