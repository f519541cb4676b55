package cache

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// One hundred goroutines miss on the same method at once. The real
// method runs once and every caller sees the same proxy.
func TestRace_CoalescedMiss(t *testing.T) {
	c := newCalls()
	cc := newTestCache(t, c)

	var slow atomic.Int64
	cc.Register("doc", func(args ...any) (any, error) {
		c.inc("construct")
		return &slowDoc{doc: buildDoc(c, "Cadence"), n: &slow}, nil
	})
	root := mustRoot(t, cc)

	const goroutines = 100
	start := make(chan struct{})
	got := make([]*Proxy, goroutines)

	var g errgroup.Group
	for i := range goroutines {
		g.Go(func() error {
			<-start
			v, err := root.Call("Part", "soprano")
			if err != nil {
				return err
			}
			got[i] = v.Node()
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if n := slow.Load(); n != 1 {
		t.Fatalf("real method should run once, ran %d times", n)
	}
	for i := range got {
		if got[i] != got[0] {
			t.Fatalf("goroutine %d got a different proxy", i)
		}
	}
}

// Concurrent readers on a dropped tree resurrect each handle once.
func TestRace_ConcurrentResurrection(t *testing.T) {
	c := newCalls()
	cc := newTestCache(t, c)
	root := mustRoot(t, cc)

	sop, err := root.Call("Part", "soprano")
	if err != nil {
		t.Fatal(err)
	}
	notes, err := sop.Node().Iter()
	if err != nil {
		t.Fatal(err)
	}
	root.Drop()

	workers := 4 * runtime.GOMAXPROCS(0)
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			n := notes[w%len(notes)].Node()
			if _, err := n.Attr("Pitch"); err != nil {
				return err
			}
			_, err := sop.Node().Call("Highest")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := c.get("construct"); got != 2 {
		t.Fatalf("root should be rebuilt once, constructions=%d", got)
	}
	if got := c.get("Highest"); got != 1 {
		t.Fatalf("Highest should run once, ran %d times", got)
	}
}

// slowDoc widens the window in which concurrent misses overlap.
type slowDoc struct {
	*doc
	n *atomic.Int64
}

func (d *slowDoc) Part(name string) *part {
	d.n.Add(1)
	time.Sleep(2 * time.Millisecond)
	return d.doc.Part(name)
}
