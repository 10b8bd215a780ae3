package state

import (
	"sync/atomic"
	"time"
)

// Clock supplies time to debounced stores.
//
// AfterFunc schedules f to run once after d and returns a function that
// cancels it, reporting whether the call was still pending.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock returns a Clock backed by the time package. Deferred flushes
// run on the timer's goroutine.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// sequence numbers flush passes. Each pass gets a strictly increasing value.
type sequence struct {
	n atomic.Int64
}

// Next increments and returns the sequence number.
func (s *sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the latest number handed out, or 0.
func (s *sequence) Current() int64 {
	return s.n.Load()
}
