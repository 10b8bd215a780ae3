package inspect

import (
	"context"
	"log/slog"

	"github.com/roach88/tstate/internal/state"
)

// Session ties stores to one Tool. It implements state.Inspector.
type Session struct {
	id       string
	tool     Tool
	registry *Registry
	log      *slog.Logger
	ctx      context.Context
}

var _ state.Inspector = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRegistry shares a registry between sessions, so a store recreated
// under another session still replaces its old connection.
func WithRegistry(r *Registry) SessionOption {
	return func(s *Session) {
		s.registry = r
	}
}

// WithIDGenerator replaces the default UUIDv7 session IDs.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(s *Session) {
		s.id = g.Generate()
	}
}

// WithLogger sets the logger for tool errors and commands.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// WithContext sets the context passed to tool calls.
func WithContext(ctx context.Context) SessionOption {
	return func(s *Session) {
		s.ctx = ctx
	}
}

// NewSession creates a session that reports to tool.
func NewSession(tool Tool, opts ...SessionOption) *Session {
	s := &Session{tool: tool}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = UUIDv7Generator{}.Generate()
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	s.log = s.log.With("session", s.id)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the registry connections are kept in.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Connection returns the live connection of the named store.
func (s *Session) Connection(name string) (*Connection, bool) {
	return s.registry.Lookup(name)
}

// Attach connects a store. Stores that already hold a value initialize the
// tool right away; lazy ones do so on their first published change.
func (s *Session) Attach(target state.Target) func(state.Change[any]) {
	c := &Connection{
		session: s,
		target:  target,
		name:    target.Name(),
		log:     s.log.With("store", target.Name()),
	}
	if replaced := s.registry.Register(c); replaced != nil {
		c.log.Debug("replaced inspector connection")
	}

	if lazy, ok := target.(interface{ Initialized() bool }); !ok || lazy.Initialized() {
		c.start(target.Snapshot(), 0)
	}
	return c.observe
}
