package singleflight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Many goroutines ask for the same key; fn must run once and everyone
// observes the leader's value.
func TestGroup_DoCoalesces(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int64

	const goroutines = 32
	start := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make([]int, goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			v, err, _ := g.Do("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	close(start)
	require.Eventually(t, func() bool { return g.InFlight("k") }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond) // let followers join the flight
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int64(goroutines))
	assert.GreaterOrEqual(t, calls.Load(), int64(1))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.False(t, g.InFlight("k"))
}

// Errors are shared with followers exactly like values.
func TestGroup_DoError(t *testing.T) {
	t.Parallel()

	var g Group[int, string]
	boom := errors.New("boom")
	_, err, shared := g.Do(1, func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, shared)

	// the marker is gone, the next flight runs again
	v, err, _ := g.Do(1, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

// A panicking leader must not leave the key stuck in flight.
func TestGroup_DoPanicClearsMarker(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	assert.Panics(t, func() {
		_, _, _ = g.Do("p", func() (int, error) { panic("bad") })
	})
	assert.False(t, g.InFlight("p"))

	v, err, _ := g.Do("p", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
