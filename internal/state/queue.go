package state

// transition is a queued flush pass: a cause together with the values it
// moves between, captured when the pass was requested.
type transition[T any] struct {
	action  Action
	prev    T
	current T
}

// transitionQueue is the FIFO of flush passes requested while a flush was
// in progress. It is unbounded so subscribers can cascade mutations without
// losing any; the owning store's mutex guards it.
type transitionQueue[T any] struct {
	items []transition[T]
}

func newTransitionQueue[T any]() *transitionQueue[T] {
	return &transitionQueue[T]{items: make([]transition[T], 0, 8)}
}

// Enqueue adds a transition to the back of the queue.
func (q *transitionQueue[T]) Enqueue(t transition[T]) {
	q.items = append(q.items, t)
}

// TryDequeue removes and returns the front transition.
// Returns false if the queue is empty.
func (q *transitionQueue[T]) TryDequeue() (transition[T], bool) {
	if len(q.items) == 0 {
		return transition[T]{}, false
	}

	t := q.items[0]

	// Clear the slot so the backing array does not pin old snapshots.
	q.items[0] = transition[T]{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return t, true
}

// Drain empties the queue and returns what it held, oldest first.
func (q *transitionQueue[T]) Drain() []transition[T] {
	out := make([]transition[T], len(q.items))
	copy(out, q.items)
	clear(q.items)
	q.items = q.items[:0]
	return out
}

// Len returns the number of queued transitions.
func (q *transitionQueue[T]) Len() int {
	return len(q.items)
}
