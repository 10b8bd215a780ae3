package computed

import (
	"github.com/roach88/tstate/internal/equal"
	"github.com/roach88/tstate/internal/state"
)

type config struct {
	name       string
	storeEq    equal.Func
	computedEq equal.Func
	stateOpts  []state.Option
}

// Option configures a computed store.
type Option func(*config)

// WithName sets the debug name of the internal store.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithDebounce debounces the computed store's own notifications.
func WithDebounce(d state.Debounce) Option {
	return func(c *config) {
		c.stateOpts = append(c.stateOpts, state.WithDebounce(d))
	}
}

// WithStoreEquality sets the check deciding whether a source change is
// worth recomputing for.
func WithStoreEquality(eq equal.Func) Option {
	return func(c *config) {
		c.storeEq = eq
	}
}

// WithComputedEquality sets the check deciding whether a recomputed value
// is published.
func WithComputedEquality(eq equal.Func) Option {
	return func(c *config) {
		c.computedEq = eq
	}
}

// WithStateOptions passes options through to the internal store, for
// example a clock, logger or hooks.
func WithStateOptions(opts ...state.Option) Option {
	return func(c *config) {
		c.stateOpts = append(c.stateOpts, opts...)
	}
}

func resolve(opts []Option) config {
	c := config{storeEq: equal.Shallow, computedEq: equal.Shallow}
	for _, opt := range opts {
		opt(&c)
	}
	if c.storeEq == nil {
		c.storeEq = equal.Shallow
	}
	if c.computedEq == nil {
		c.computedEq = equal.Shallow
	}
	return c
}
