package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock()
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_AdvanceMovesTime(t *testing.T) {
	clock := NewManualClock()

	clock.Advance(5 * time.Millisecond)
	clock.Advance(time.Second)

	assert.Equal(t, Epoch.Add(time.Second+5*time.Millisecond), clock.Now())
}

func TestManualClock_TimersFireInDeadlineOrder(t *testing.T) {
	clock := NewManualClock()
	var fired []string

	clock.AfterFunc(3*time.Millisecond, func() { fired = append(fired, "c") })
	clock.AfterFunc(1*time.Millisecond, func() { fired = append(fired, "a") })
	clock.AfterFunc(2*time.Millisecond, func() { fired = append(fired, "b") })
	clock.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "late") })

	clock.Advance(3 * time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 1, clock.Pending())
}

func TestManualClock_TimerSeesItsDeadline(t *testing.T) {
	clock := NewManualClock()
	var at time.Time

	clock.AfterFunc(2*time.Millisecond, func() { at = clock.Now() })
	clock.Advance(10 * time.Millisecond)

	assert.Equal(t, Epoch.Add(2*time.Millisecond), at)
	assert.Equal(t, Epoch.Add(10*time.Millisecond), clock.Now())
}

func TestManualClock_Stop(t *testing.T) {
	clock := NewManualClock()
	fired := false

	stop := clock.AfterFunc(time.Millisecond, func() { fired = true })

	assert.True(t, stop())
	assert.False(t, stop(), "second stop reports nothing pending")

	clock.Advance(time.Second)
	assert.False(t, fired)
}

func TestManualClock_CallbackCanReschedule(t *testing.T) {
	clock := NewManualClock()
	count := 0

	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clock.AfterFunc(time.Millisecond, tick)
		}
	}
	clock.AfterFunc(time.Millisecond, tick)

	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, 3, count)
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock()
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			stop := clock.AfterFunc(time.Hour, func() {})
			_ = clock.Now()
			stop()
		}()
	}
	wg.Wait()

	require.Equal(t, 0, clock.Pending())
}

func TestRecorder(t *testing.T) {
	var rec Recorder[int]

	rec.Record(1)
	rec.Record(2)

	assert.Equal(t, []int{1, 2}, rec.All())
	assert.Equal(t, 2, rec.Len())
	assert.Equal(t, 2, rec.Last())

	rec.Reset()
	assert.Zero(t, rec.Len())
}
