package computed

import (
	"sync"

	"github.com/roach88/tstate/internal/state"
)

// Source is anything a computed store can derive from. *state.Store and
// *Store both satisfy it.
type Source[T any] interface {
	State() T
	Subscribe(sub state.Subscriber[T], opts ...state.SubscribeOption) (unsubscribe func())
}

// input erases a Source's type so sources of different types can share one
// derivation.
type input struct {
	read      func() any
	subscribe func(onChange func(prev, cur any, action state.Action)) (unsubscribe func())
}

func inputOf[T any](src Source[T]) input {
	return input{
		read: func() any { return src.State() },
		subscribe: func(onChange func(prev, cur any, action state.Action)) func() {
			return src.Subscribe(state.SubscriberFunc[T](func(c state.Change[T]) {
				onChange(c.Prev, c.Current, c.Action)
			}))
		},
	}
}

// as converts an erased source value back to T. A nil interface becomes
// T's zero value.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// Store is a read-only store whose value is derived from sources.
type Store[R any] struct {
	mu      sync.Mutex
	cfg     config
	inputs  []input
	combine func(values []any) R
	inner   *state.Store[R]

	active bool
	unsubs []func()

	// seed substitutes one slot while the internal store is first produced,
	// so the first published change starts from the sources' previous values.
	seeding   bool
	seedSlot  int
	seedValue any
}

// From derives a store from one source.
func From[A, R any](a Source[A], fn func(A) R, opts ...Option) *Store[R] {
	return newStore([]input{inputOf(a)}, func(v []any) R {
		return fn(as[A](v[0]))
	}, opts)
}

// From2 derives a store from two sources.
func From2[A, B, R any](a Source[A], b Source[B], fn func(A, B) R, opts ...Option) *Store[R] {
	return newStore([]input{inputOf(a), inputOf(b)}, func(v []any) R {
		return fn(as[A](v[0]), as[B](v[1]))
	}, opts)
}

// From3 derives a store from three sources.
func From3[A, B, C, R any](a Source[A], b Source[B], c Source[C], fn func(A, B, C) R, opts ...Option) *Store[R] {
	return newStore([]input{inputOf(a), inputOf(b), inputOf(c)}, func(v []any) R {
		return fn(as[A](v[0]), as[B](v[1]), as[C](v[2]))
	}, opts)
}

// FromAll derives a store from any number of sources of one type. fn
// receives the values in source order.
func FromAll[A, R any](sources []Source[A], fn func([]A) R, opts ...Option) *Store[R] {
	inputs := make([]input, len(sources))
	for i, src := range sources {
		inputs[i] = inputOf(src)
	}
	return newStore(inputs, func(v []any) R {
		typed := make([]A, len(v))
		for i := range v {
			typed[i] = as[A](v[i])
		}
		return fn(typed)
	}, opts)
}

func newStore[R any](inputs []input, combine func([]any) R, opts []Option) *Store[R] {
	cfg := resolve(opts)
	s := &Store[R]{
		cfg:     cfg,
		inputs:  inputs,
		combine: combine,
	}
	stateOpts := append([]state.Option{state.WithName(cfg.name)}, cfg.stateOpts...)
	s.inner = state.NewLazy(s.produce, stateOpts...)
	return s
}

func (s *Store[R]) produce() R {
	values := s.readAll()

	s.mu.Lock()
	if s.seeding {
		values[s.seedSlot] = s.seedValue
		s.seeding = false
		s.seedValue = nil
	}
	s.mu.Unlock()

	return s.combine(values)
}

func (s *Store[R]) readAll() []any {
	values := make([]any, len(s.inputs))
	for i, in := range s.inputs {
		values[i] = in.read()
	}
	return values
}

// onSourceChange recomputes after source slot changed from prev to cur. The
// other slots are read live.
func (s *Store[R]) onSourceChange(slot int, prev, cur any, action state.Action) {
	if s.cfg.storeEq(prev, cur) {
		return
	}

	if !s.inner.Initialized() {
		s.mu.Lock()
		s.seeding, s.seedSlot, s.seedValue = true, slot, prev
		s.mu.Unlock()
		s.inner.Initialize()
	}

	values := s.readAll()
	values[slot] = cur
	s.inner.SetState(s.combine(values),
		state.WithEquality(s.cfg.computedEq),
		state.WithAction(action))
}

// refresh recomputes from the live source values.
func (s *Store[R]) refresh(opts ...state.SetOption) bool {
	opts = append([]state.SetOption{state.WithEquality(s.cfg.computedEq)}, opts...)
	return s.inner.SetState(s.combine(s.readAll()), opts...)
}

// Activate subscribes to every source. It is idempotent. A value computed
// while inactive is brought up to date first.
func (s *Store[R]) Activate() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	if s.inner.Initialized() {
		s.refresh()
	}

	unsubs := make([]func(), len(s.inputs))
	for i, in := range s.inputs {
		slot := i
		unsubs[i] = in.subscribe(func(prev, cur any, action state.Action) {
			s.onSourceChange(slot, prev, cur, action)
		})
	}

	s.mu.Lock()
	s.unsubs = unsubs
	s.mu.Unlock()
}

// Destroy unsubscribes from every source. It is idempotent; a destroyed
// store can be activated again.
func (s *Store[R]) Destroy() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.active = false
	s.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
}

// Active reports whether the store is subscribed to its sources.
func (s *Store[R]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Initialized reports whether the value has been computed yet.
func (s *Store[R]) Initialized() bool {
	return s.inner.Initialized()
}

// Name returns the debug name.
func (s *Store[R]) Name() string {
	return s.inner.Name()
}

// State returns the derived value. An inactive store that was computed
// before recomputes from its sources, since it has not been tracking them.
func (s *Store[R]) State() R {
	if !s.Active() && s.inner.Initialized() {
		s.refresh()
	}
	return s.inner.State()
}

// ForceUpdate recomputes and publishes even if the value did not change.
func (s *Store[R]) ForceUpdate() {
	s.refresh(state.WithoutEquality(), state.WithAction(state.Named("forceUpdate")))
}

// Subscribe activates the store and registers sub.
func (s *Store[R]) Subscribe(sub state.Subscriber[R], opts ...state.SubscribeOption) (unsubscribe func()) {
	s.Activate()
	return s.inner.Subscribe(sub, opts...)
}

// OnChange activates the store and registers fn.
func (s *Store[R]) OnChange(fn func(c state.Change[R]), opts ...state.SubscribeOption) (unsubscribe func()) {
	return s.Subscribe(state.SubscriberFunc[R](fn), opts...)
}

// SubscriberCount returns the number of subscribers of the derived value.
func (s *Store[R]) SubscriberCount() int {
	return s.inner.SubscriberCount()
}

// ExemptFromIntegrity keeps a computed store held in another store's state
// out of that store's seal.
func (*Store[R]) ExemptFromIntegrity() {}
