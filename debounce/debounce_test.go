package debounce_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/rangetype/debounce"
)

func TestDebouncer_RapidTriggersRunLastOnce(t *testing.T) {
	t.Parallel()

	d := debounce.New(30 * time.Millisecond)

	var (
		calls atomic.Int32
		mu    sync.Mutex
		last  int
	)

	for i := range 10 {
		d.Trigger(func(uint64) {
			calls.Add(1)
			mu.Lock()
			last = i
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Give any stray timers a chance to misfire.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 9, last)
}

func TestDebouncer_SpacedTriggers(t *testing.T) {
	t.Parallel()

	d := debounce.New(20 * time.Millisecond)

	var calls atomic.Int32

	for range 3 {
		d.Trigger(func(uint64) { calls.Add(1) })
		time.Sleep(60 * time.Millisecond)
	}

	assert.Equal(t, int32(3), calls.Load())
}

func TestDebouncer_Cancel(t *testing.T) {
	t.Parallel()

	d := debounce.New(20 * time.Millisecond)

	var calls atomic.Int32

	d.Trigger(func(uint64) { calls.Add(1) })
	assert.True(t, d.Pending())

	d.Cancel()
	assert.False(t, d.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncer_Current(t *testing.T) {
	t.Parallel()

	d := debounce.New(10 * time.Millisecond)

	fired := make(chan uint64, 1)
	gen := d.Trigger(func(g uint64) { fired <- g })

	select {
	case g := <-fired:
		assert.Equal(t, gen, g)
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}

	assert.True(t, d.Current(gen))

	// A newer trigger supersedes the finished one.
	next := d.Trigger(func(uint64) {})
	assert.False(t, d.Current(gen))
	assert.True(t, d.Current(next))

	d.Cancel()
	assert.False(t, d.Current(next))
}
