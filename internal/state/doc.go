// Package state implements the reactive store: a single value of arbitrary
// shape whose mutations are equality-checked, passed through middleware,
// committed, and then published to subscribers.
//
// Commit and flush:
//
// Every mutation (SetState, SetKey, SetPartialState, ProduceState) resolves a
// candidate next value, compares it with the current one, runs middleware in
// registration order and then commits. A commit replaces the current value
// and requests a flush. A flush notifies every subscriber, in registration
// order, with the last published value, the new current value and the cause.
//
// Flushes are held back inside Batch and between StopFlush and ResumeFlush,
// and may be deferred by a Debounce policy. While held back, commits
// accumulate into one pending transition whose Prev is the value published
// before the first of them.
//
// Re-entrancy:
//
// A subscriber may mutate the store it is subscribed to. Such mutations do
// not re-enter the notify loop. Each one is queued as its own transition and
// the flush in progress drains the queue iteratively once its pass ends, so
// every cause gets exactly one pass.
//
// Locking:
//
// Each store guards its bookkeeping with a mutex that is never held while
// middleware or subscribers run. Mutations are expected from one goroutine
// at a time; the debounce timer fires on the clock's goroutine.
package state
