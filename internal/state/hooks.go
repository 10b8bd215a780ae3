package state

import "time"

// Hooks receives instrumentation callbacks. Implementations must be cheap
// and must not call back into the store.
type Hooks interface {
	// Committed is called after a mutation replaced the current value.
	Committed(store string, action Action)

	// Vetoed is called when a middleware rejected a mutation.
	Vetoed(store string, action Action)

	// Skipped is called when the equality check found nothing to change.
	Skipped(store string, action Action)

	// Flushed is called after a flush pass notified subscribers.
	Flushed(store string, subscribers int, elapsed time.Duration)
}

type noopHooks struct{}

func (noopHooks) Committed(string, Action) {}
func (noopHooks) Vetoed(string, Action) {}
func (noopHooks) Skipped(string, Action) {}
func (noopHooks) Flushed(string, int, time.Duration) {}

// Target is the view of a store an Inspector gets. Replays made through
// Restore run the normal mutation pipeline.
type Target interface {
	Name() string
	Snapshot() any
	Restore(v any, action Action) (bool, error)
	Decode(data []byte) (any, error)
}

// Inspector is an external inspection side channel. Attach is called once
// per named store at construction and returns the function that receives
// every published change of that store, ahead of its subscribers.
type Inspector interface {
	Attach(target Target) func(Change[any])
}
