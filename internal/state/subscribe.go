package state

import "reflect"

// Subscriber receives published changes.
type Subscriber[T any] interface {
	OnChange(c Change[T])
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc[T any] func(c Change[T])

// OnChange calls f(c).
func (f SubscriberFunc[T]) OnChange(c Change[T]) {
	f(c)
}

// registry is an ordered set of registrations. Members are identified by
// value when their dynamic type is comparable; functions never are, so each
// registration of a function is distinct.
type registry[E any] struct {
	entries []registration[E]
	nextID  uint64
}

type registration[E any] struct {
	id   uint64
	item E
}

// addLocked registers item and returns its remover. The caller holds the
// store lock; the remover takes it again through lock.
func (r *registry[E]) addLocked(item E, lock func() func()) func() {
	for _, e := range r.entries {
		if sameMember(e.item, item) {
			return r.remover(e.id, lock)
		}
	}
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, registration[E]{id: id, item: item})
	return r.remover(id, lock)
}

func (r *registry[E]) remover(id uint64, lock func() func()) func() {
	return func() {
		defer lock()()
		r.remove(id)
	}
}

func (r *registry[E]) remove(id uint64) {
	for i, e := range r.entries {
		if e.id == id {
			// Copy on remove so snapshots held by a running pass stay intact.
			next := make([]registration[E], 0, len(r.entries)-1)
			next = append(next, r.entries[:i]...)
			next = append(next, r.entries[i+1:]...)
			r.entries = next
			return
		}
	}
}

// snapshot returns the members in registration order.
func (r *registry[E]) snapshot() []E {
	out := make([]E, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.item
	}
	return out
}

func (r *registry[E]) len() int {
	return len(r.entries)
}

func sameMember(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Type() != vb.Type() {
		return false
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}

// Subscribe registers sub and returns an idempotent unsubscribe function.
// A comparable sub that is already registered is not added again.
// Subscribing and unsubscribing from inside a notification takes effect from
// the next pass.
func (s *Store[T]) Subscribe(sub Subscriber[T], opts ...SubscribeOption) (unsubscribe func()) {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	unsubscribe = s.subscribers.addLocked(sub, s.locker)
	s.mu.Unlock()

	if cfg.initCall {
		cur := s.State()
		sub.OnChange(Change[T]{Prev: cur, Current: cur, Action: InitCallAction, Seq: s.seq.Current()})
	}
	return unsubscribe
}

// OnChange registers fn as a subscriber. Func values cannot be compared, so
// every call adds a new registration; pass a pointer Subscriber to Subscribe
// when registering twice must be a no-op.
func (s *Store[T]) OnChange(fn func(c Change[T]), opts ...SubscribeOption) (unsubscribe func()) {
	return s.Subscribe(SubscriberFunc[T](fn), opts...)
}

// SubscriberCount returns the number of registered subscribers.
func (s *Store[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers.len()
}
