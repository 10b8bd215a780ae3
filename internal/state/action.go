package state

// InitCallAction is the cause delivered to a subscriber registered with
// WithInitCall when it is replayed the current value.
var InitCallAction = Action{Type: "init.subscribe.call"}

// Action describes why a mutation happened. The zero Action means no cause
// was given.
type Action struct {
	Type   string
	Fields map[string]any
}

// Named returns an Action with only a type.
func Named(typ string) Action {
	return Action{Type: typ}
}

// IsZero reports whether a carries no cause.
func (a Action) IsZero() bool {
	return a.Type == "" && len(a.Fields) == 0
}

// IsInitCall reports whether a is InitCallAction.
func (a Action) IsInitCall() bool {
	return a.Type == InitCallAction.Type
}

func (a Action) String() string {
	return a.Type
}

// Change is one published transition.
type Change[T any] struct {
	Prev    T
	Current T
	Action  Action

	// Seq numbers the flush passes of one store, starting at 1. Init calls
	// carry the seq of the latest pass.
	Seq int64
}

func (c Change[T]) erase() Change[any] {
	return Change[any]{Prev: c.Prev, Current: c.Current, Action: c.Action, Seq: c.Seq}
}
