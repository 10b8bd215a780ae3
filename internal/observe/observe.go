// Package observe answers "what changed?" questions about one published
// transition, typically from inside a subscriber:
//
//	store.OnChange(func(c state.Change[Settings]) {
//		observe.Changes(c).IfKeysChange("theme").Then(applyTheme)
//	})
//
// Queries read the transition only; they never touch a store.
package observe

import (
	"github.com/roach88/tstate/internal/equal"
	"github.com/roach88/tstate/internal/state"
)

// Query inspects one (prev, current, action) triple.
type Query[T any] struct {
	prev     T
	current  T
	action   state.Action
	eq       equal.Func
	initCall bool
}

// Changes builds a query over a published change.
func Changes[T any](c state.Change[T]) *Query[T] {
	return New(c.Prev, c.Current, c.Action)
}

// New builds a query over an explicit triple. Values are compared with
// equal.Shallow unless WithEqualityFn says otherwise.
func New[T any](prev, current T, action state.Action) *Query[T] {
	return &Query[T]{prev: prev, current: current, action: action, eq: equal.Shallow}
}

// WithEqualityFn returns a copy of q comparing values with eq.
func (q *Query[T]) WithEqualityFn(eq equal.Func) *Query[T] {
	c := *q
	if eq != nil {
		c.eq = eq
	}
	return &c
}

// WithInitCall returns a copy of q that treats an init call replay as a
// change, so "on change" logic also runs once when a subscriber registered
// with state.WithInitCall is replayed the current value.
func (q *Query[T]) WithInitCall() *Query[T] {
	c := *q
	c.initCall = true
	return &c
}

func (q *Query[T]) replaying() bool {
	return q.initCall && q.action.IsInitCall()
}

// Condition is the outcome of a key query.
type Condition struct {
	ok  bool
	err error
}

// Then calls cb if the condition held and reports whether it did.
func (t Condition) Then(cb func()) bool {
	if t.ok && cb != nil {
		cb()
	}
	return t.ok
}

// Err returns the error met while evaluating the condition, such as a key
// the state type does not have. The condition never holds when Err is set.
func (t Condition) Err() error {
	return t.err
}

// IfKeysChange holds if any of the named fields differs between prev and
// current.
func (q *Query[T]) IfKeysChange(keys ...string) Condition {
	if q.replaying() {
		return Condition{ok: true}
	}
	for _, key := range keys {
		changed, err := q.keyChanged(key)
		if err != nil {
			return Condition{err: err}
		}
		if changed {
			return Condition{ok: true}
		}
	}
	return Condition{}
}

// IfKeysChangeTo holds if any field named in target differs between prev
// and current, and the current values of exactly those fields equal target.
func (q *Query[T]) IfKeysChangeTo(target map[string]any) Condition {
	slice := make(map[string]any, len(target))
	changed := q.replaying()
	for key := range target {
		cur, present, err := state.Lookup(q.current, key)
		if err != nil {
			return Condition{err: err}
		}
		if present {
			slice[key] = cur
		}
		if !changed {
			if changed, err = q.keyChanged(key); err != nil {
				return Condition{err: err}
			}
		}
	}
	return Condition{ok: changed && q.eq(slice, target)}
}

func (q *Query[T]) keyChanged(key string) (bool, error) {
	prev, prevOK, err := state.Lookup(q.prev, key)
	if err != nil {
		return false, err
	}
	cur, curOK, err := state.Lookup(q.current, key)
	if err != nil {
		return false, err
	}
	return prevOK != curOK || !q.eq(prev, cur), nil
}

// Selected is the pair of selections passed to selector callbacks.
type Selected[S any] struct {
	Prev    S
	Current S
}

// Selection compares one derived value of prev and current.
type Selection[S any] struct {
	prev, current S
	eq            equal.Func
	replaying     bool
}

// IfSelector selects a value from prev and current for comparison.
func (q *Query[T]) IfSelector(fn func(T) any) *Selection[any] {
	return Select(q, fn)
}

// Select is the typed form of IfSelector.
func Select[T, S any](q *Query[T], fn func(T) S) *Selection[S] {
	return &Selection[S]{
		prev:      fn(q.prev),
		current:   fn(q.current),
		eq:        q.eq,
		replaying: q.replaying(),
	}
}

func (s *Selection[S]) differs() bool {
	return s.replaying || !s.eq(s.prev, s.current)
}

// Change holds if the selection differs.
func (s *Selection[S]) Change() SelectorThen[S] {
	return SelectorThen[S]{ok: s.differs(), sel: Selected[S]{Prev: s.prev, Current: s.current}}
}

// ChangeTo holds if the selection differs and now equals target.
func (s *Selection[S]) ChangeTo(target S) SelectorThen[S] {
	ok := s.differs() && s.eq(s.current, target)
	return SelectorThen[S]{ok: ok, sel: Selected[S]{Prev: s.prev, Current: s.current}}
}

// SelectorThen runs a selection callback when its condition held.
type SelectorThen[S any] struct {
	ok  bool
	sel Selected[S]
}

// Then calls cb with the selections if the condition held and reports
// whether it did.
func (t SelectorThen[S]) Then(cb func(Selected[S])) bool {
	if t.ok && cb != nil {
		cb(t.sel)
	}
	return t.ok
}
