package testutil

import "sync"

// Recorder collects values passed to Record, in order. Its Record method
// fits any callback of shape func(C), such as a store's OnChange.
//
// Thread-safety: All methods are safe for concurrent use.
type Recorder[C any] struct {
	mu    sync.Mutex
	items []C
}

// Record appends c.
func (r *Recorder[C]) Record(c C) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, c)
}

// All returns a copy of everything recorded so far.
func (r *Recorder[C]) All() []C {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]C, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns how many values were recorded.
func (r *Recorder[C]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Last returns the latest value. It panics if nothing was recorded.
func (r *Recorder[C]) Last() C {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[len(r.items)-1]
}

// Reset forgets everything recorded.
func (r *Recorder[C]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
