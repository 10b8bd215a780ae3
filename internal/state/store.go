package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tstate/internal/equal"
	"github.com/roach88/tstate/internal/integrity"
)

// Store holds one value of type T and publishes its changes.
//
// The value lives in a cell that is either uninitialized (holding the
// producer of a lazy store) or initialized. last-published is the value
// subscribers saw last; it trails current while a flush is held back.
type Store[T any] struct {
	mu  sync.Mutex
	cfg config
	log *slog.Logger

	// cell
	produce     func() T
	initialized bool
	current     T
	seal        *integrity.Seal

	published T
	dirty     bool // current has commits that were not flushed yet

	subscribers registry[Subscriber[T]]
	middleware  registry[Middleware[T]]
	inspect     func(Change[any])

	// flush bookkeeping
	batchDepth int
	stopped    bool
	flushing   bool
	deferred   Action
	queue      *transitionQueue[T]
	seq        sequence

	// debounce bookkeeping
	lastCall    time.Time
	lastFlush   time.Time
	windowStart time.Time
	stopTimer   func() bool
	timerGen    uint64
}

// New creates a store holding initial.
func New[T any](initial T, opts ...Option) *Store[T] {
	s := newStore[T](opts)
	s.initialized = true
	s.current, s.seal = s.freeze(initial)
	s.published = s.current
	s.attachInspector()
	return s
}

// NewLazy creates a store whose value is produced on first access. The
// producer runs at most once and must not access the store it initializes.
func NewLazy[T any](produce func() T, opts ...Option) *Store[T] {
	s := newStore[T](opts)
	s.produce = produce
	s.attachInspector()
	return s
}

func newStore[T any](opts []Option) *Store[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[T]{
		cfg:   cfg,
		log:   cfg.logger.With("store", cfg.name),
		queue: newTransitionQueue[T](),
	}
}

func (s *Store[T]) attachInspector() {
	if s.cfg.inspector == nil || s.cfg.name == "" {
		return
	}
	s.inspect = s.cfg.inspector.Attach(s)
}

// ExemptFromIntegrity keeps a store embedded in another store's state out of
// the outer store's seal.
func (*Store[T]) ExemptFromIntegrity() {}

// Name returns the debug name.
func (s *Store[T]) Name() string {
	return s.cfg.name
}

// Initialized reports whether the value has been produced.
func (s *Store[T]) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Initialize produces the value of a lazy store if needed and returns it.
func (s *Store[T]) Initialize() T {
	return s.State()
}

// State returns the current value, producing it first for a lazy store.
// Reads do not verify the seal; an in-place write is reported by the next
// commit or flush.
func (s *Store[T]) State() T {
	s.realize()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store[T]) realize() {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	produce := s.produce
	s.mu.Unlock()

	v := produce()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}
	s.initialized = true
	s.produce = nil
	s.current, s.seal = s.freeze(v)
	s.published = s.current
	s.log.Debug("lazy state produced")
}

func (s *Store[T]) guarded() bool {
	return integrity.Enabled && !s.cfg.noGuard
}

func (s *Store[T]) freeze(v T) (T, *integrity.Seal) {
	if !s.guarded() {
		return v, nil
	}
	return integrity.Freeze(v, s.cfg.ignore)
}

// mustBeIntact panics with a seal violation. Callers release the lock
// first so a recovered store stays usable.
func (s *Store[T]) mustBeIntact(err error) {
	if err != nil {
		panic(fmt.Errorf("store %q: %w", s.cfg.name, err))
	}
}

func (s *Store[T]) locker() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// SetState proposes next as the new value. It returns false if the
// equality check (Identity unless overridden) found nothing to change or a
// middleware vetoed.
func (s *Store[T]) SetState(next T, opts ...SetOption) bool {
	cfg := resolveSet(setConfig{eq: equal.Identity}, opts)
	return s.apply(func(T) (T, bool) { return next, true }, cfg)
}

// UpdateState derives the new value from the current one.
func (s *Store[T]) UpdateState(fn func(cur T) T, opts ...SetOption) bool {
	cfg := resolveSet(setConfig{eq: equal.Identity}, opts)
	return s.apply(func(cur T) (T, bool) { return fn(cur), true }, cfg)
}

// apply resolves the next value from the current one, runs the equality
// check and the middleware chain, commits and requests a flush. resolve
// returns false to abandon the mutation.
func (s *Store[T]) apply(resolve func(cur T) (T, bool), cfg setConfig) bool {
	s.realize()
	s.mu.Lock()
	err := s.seal.Check()
	cur := s.current
	chain := s.middleware.snapshot()
	s.mu.Unlock()
	s.mustBeIntact(err)

	next, ok := resolve(cur)
	if !ok {
		return false
	}
	if cfg.eq != nil && cfg.eq(cur, next) {
		s.cfg.hooks.Skipped(s.cfg.name, cfg.action)
		return false
	}

	next, ok = s.intercept(chain, Mutation[T]{Current: cur, Next: next, Action: cfg.action})
	if !ok {
		s.log.Debug("mutation vetoed", "action", cfg.action.Type)
		s.cfg.hooks.Vetoed(s.cfg.name, cfg.action)
		return false
	}

	s.mu.Lock()
	if !s.dirty {
		s.published = integrity.ShallowClone(s.current)
		s.dirty = true
	}
	s.current, s.seal = s.freeze(next)
	s.mu.Unlock()

	s.log.Debug("state committed", "action", cfg.action.Type)
	s.cfg.hooks.Committed(s.cfg.name, cfg.action)
	s.flush(cfg.action, false)
	return true
}

// Snapshot returns the current value as any.
func (s *Store[T]) Snapshot() any {
	return s.State()
}

// Restore replaces the value with v through SetState.
func (s *Store[T]) Restore(v any, action Action) (bool, error) {
	next, ok := v.(T)
	if !ok {
		var zero T
		return false, &ConfigError{
			Code:    ErrCodeSnapshotType,
			Store:   s.cfg.name,
			Message: fmt.Sprintf("cannot restore %T into %T", v, zero),
		}
	}
	return s.SetState(next, WithAction(action)), nil
}

// Decode parses a JSON snapshot into a T.
func (s *Store[T]) Decode(data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode snapshot for store %q: %w", s.cfg.name, err)
	}
	return v, nil
}
