package state

import (
	"log/slog"
	"time"

	"github.com/roach88/tstate/internal/equal"
)

// Debounce coalesces flushes in time. Mutations always commit immediately;
// only the notification is deferred.
//
// By default the policy is trailing: a burst of flush requests produces one
// flush Wait after the last request. MaxWait, when positive, forces a flush
// once the oldest unflushed request is that old. With Leading set, a request
// flushes immediately when Wait has passed since the previous request or
// MaxWait since the previous flush, and is deferred by Wait otherwise.
type Debounce struct {
	Wait    time.Duration
	MaxWait time.Duration
	Leading bool
}

type config struct {
	name      string
	debounce  *Debounce
	noGuard   bool
	ignore    func(any) bool
	clock     Clock
	logger    *slog.Logger
	hooks     Hooks
	inspector Inspector
}

func defaultConfig() config {
	return config{
		clock:  SystemClock(),
		logger: slog.Default(),
		hooks:  noopHooks{},
	}
}

// Option configures a store.
type Option func(*config)

// WithName sets the debug name. Default action types are prefixed with it
// and an Inspector is only attached to named stores.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithDebounce installs a debounce policy. A zero Wait disables it.
func WithDebounce(d Debounce) Option {
	return func(c *config) {
		if d.Wait <= 0 {
			c.debounce = nil
			return
		}
		c.debounce = &d
	}
}

// WithoutIntegrityGuard disables snapshot sealing for this store.
func WithoutIntegrityGuard() Option {
	return func(c *config) {
		c.noGuard = true
	}
}

// WithIntegrityIgnore excludes values for which ignore returns true from
// snapshot sealing.
func WithIntegrityIgnore(ignore func(any) bool) Option {
	return func(c *config) {
		c.ignore = ignore
	}
}

// WithClock replaces the clock used for debouncing.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHooks installs instrumentation callbacks.
func WithHooks(h Hooks) Option {
	return func(c *config) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithInspector attaches an inspection side channel at construction. It is
// ignored unless the store also has a name.
func WithInspector(i Inspector) Option {
	return func(c *config) {
		c.inspector = i
	}
}

type setConfig struct {
	action    Action
	hasAction bool
	eq        equal.Func
	hasEq     bool
}

// SetOption configures a single mutation.
type SetOption func(*setConfig)

// WithAction sets the cause reported with the mutation.
func WithAction(a Action) SetOption {
	return func(c *setConfig) {
		c.action = a
		c.hasAction = true
	}
}

// WithEquality replaces the equality check deciding whether the mutation is
// a no-op.
func WithEquality(eq equal.Func) SetOption {
	return func(c *setConfig) {
		c.eq = eq
		c.hasEq = true
	}
}

// WithoutEquality commits and flushes even if the value did not change.
func WithoutEquality() SetOption {
	return func(c *setConfig) {
		c.eq = nil
		c.hasEq = true
	}
}

func resolveSet(defaults setConfig, opts []SetOption) setConfig {
	c := defaults
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type subscribeConfig struct {
	initCall bool
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

// WithInitCall replays the current value to the subscriber once, with
// InitCallAction, before Subscribe returns.
func WithInitCall() SubscribeOption {
	return func(c *subscribeConfig) {
		c.initCall = true
	}
}
