package inspect

import (
	"context"
	"sync"

	"github.com/roach88/tstate/internal/state"
)

// EventKind distinguishes tool initializations from published changes.
type EventKind string

const (
	KindInit   EventKind = "init"
	KindChange EventKind = "change"
)

// Event is what a connection hands to its Tool. Init events carry the
// snapshot in Current and leave Prev nil.
type Event struct {
	Session string
	Store   string
	Kind    EventKind
	Seq     int64
	Action  state.Action
	Prev    any
	Current any
}

// Tool is the external side of an inspection session.
type Tool interface {
	// Init (re)starts the tool's view of a store at the given snapshot.
	Init(ctx context.Context, e Event) error
	// Send reports a published change.
	Send(ctx context.Context, e Event) error
}

// MemoryTool keeps events in memory. It is the tool used by scenario runs
// and tests.
type MemoryTool struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryTool) Init(_ context.Context, e Event) error {
	m.record(e)
	return nil
}

func (m *MemoryTool) Send(_ context.Context, e Event) error {
	m.record(e)
	return nil
}

func (m *MemoryTool) record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of everything recorded so far.
func (m *MemoryTool) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
