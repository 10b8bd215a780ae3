package state

// Mutation is a proposed commit as seen by middleware.
type Mutation[T any] struct {
	Current T
	Next    T
	Action  Action
}

type decisionKind int

const (
	decideAllow decisionKind = iota
	decideVeto
	decideReplace
)

// Decision is a middleware verdict. The zero Decision allows the mutation.
type Decision[T any] struct {
	kind  decisionKind
	value T
}

// Allow lets the mutation continue unchanged.
func Allow[T any]() Decision[T] {
	return Decision[T]{kind: decideAllow}
}

// Veto aborts the whole mutation. Nothing is committed or flushed.
func Veto[T any]() Decision[T] {
	return Decision[T]{kind: decideVeto}
}

// Replace substitutes v as the next value for later middleware and for the
// commit.
func Replace[T any](v T) Decision[T] {
	return Decision[T]{kind: decideReplace, value: v}
}

// Vetoed reports whether d aborts the mutation.
func (d Decision[T]) Vetoed() bool {
	return d.kind == decideVeto
}

// Replacement returns the replacement value, if d carries one.
func (d Decision[T]) Replacement() (T, bool) {
	return d.value, d.kind == decideReplace
}

// Middleware intercepts mutations before they commit.
type Middleware[T any] interface {
	Intercept(m Mutation[T]) Decision[T]
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc[T any] func(m Mutation[T]) Decision[T]

// Intercept calls f(m).
func (f MiddlewareFunc[T]) Intercept(m Mutation[T]) Decision[T] {
	return f(m)
}

// AddMiddleware registers mw after the existing middleware and returns an
// idempotent function removing it. Registering a comparable middleware value
// that is already registered returns the existing registration's remover.
func (s *Store[T]) AddMiddleware(mw Middleware[T]) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.middleware.addLocked(mw, s.locker)
}

// UseMiddleware registers fn as middleware.
func (s *Store[T]) UseMiddleware(fn func(m Mutation[T]) Decision[T]) (remove func()) {
	return s.AddMiddleware(MiddlewareFunc[T](fn))
}

// intercept runs the middleware chain. It returns the value to commit and
// false if some middleware vetoed.
func (s *Store[T]) intercept(chain []Middleware[T], m Mutation[T]) (T, bool) {
	for _, mw := range chain {
		d := mw.Intercept(m)
		if d.Vetoed() {
			return m.Next, false
		}
		if v, ok := d.Replacement(); ok {
			m.Next = v
		}
	}
	return m.Next, true
}
