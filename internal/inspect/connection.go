package inspect

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/tstate/internal/state"
)

// Message types sent by a tool.
const (
	MsgStart    = "START"
	MsgStop     = "STOP"
	MsgDispatch = "DISPATCH"
)

// Dispatch payload types.
const (
	PayloadReset        = "RESET"
	PayloadJumpToState  = "JUMP_TO_STATE"
	PayloadJumpToAction = "JUMP_TO_ACTION"
	PayloadCommit       = "COMMIT"
)

// ErrClosed is returned by Handle on a connection that was replaced.
var ErrClosed = errors.New("inspector connection closed")

// Message is a command from the tool.
type Message struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
	// State is the JSON snapshot for jump commands.
	State string `json:"state,omitempty"`
}

// Payload is the body of a DISPATCH message.
type Payload struct {
	Type string `json:"type"`
}

// Connection links one store to its session's tool.
type Connection struct {
	session *Session
	target  state.Target
	name    string
	log     *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	initial any
	last    any
	lastSeq int64
}

// Name returns the store name.
func (c *Connection) Name() string {
	return c.name
}

// Closed reports whether a newer connection for the same name replaced c.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// start records the first known value and initializes the tool with it.
func (c *Connection) start(snapshot any, seq int64) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.initial = snapshot
	c.last = snapshot
	c.mu.Unlock()

	c.init(snapshot, seq)
}

func (c *Connection) init(snapshot any, seq int64) {
	e := Event{
		Session: c.session.id,
		Store:   c.name,
		Kind:    KindInit,
		Seq:     seq,
		Current: snapshot,
	}
	if err := c.session.tool.Init(c.session.ctx, e); err != nil {
		c.log.Warn("inspector init failed", "error", err)
	}
}

// observe receives every published change of the store.
func (c *Connection) observe(ch state.Change[any]) {
	c.start(ch.Prev, ch.Seq-1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.last = ch.Current
	c.lastSeq = ch.Seq
	c.mu.Unlock()

	e := Event{
		Session: c.session.id,
		Store:   c.name,
		Kind:    KindChange,
		Seq:     ch.Seq,
		Action:  ch.Action,
		Prev:    ch.Prev,
		Current: ch.Current,
	}
	if err := c.session.tool.Send(c.session.ctx, e); err != nil {
		c.log.Warn("inspector send failed", "seq", ch.Seq, "error", err)
	}
}

// Handle applies a command from the tool. Unknown commands are ignored.
func (c *Connection) Handle(msg Message) error {
	if c.Closed() {
		return ErrClosed
	}

	switch msg.Type {
	case MsgStart:
		c.log.Info("inspector started")
		c.start(c.target.Snapshot(), 0)
		return nil
	case MsgStop:
		c.log.Info("inspector stopped")
		return nil
	case MsgDispatch:
		return c.dispatch(msg)
	default:
		c.log.Debug("ignoring inspector message", "type", msg.Type)
		return nil
	}
}

func (c *Connection) dispatch(msg Message) error {
	switch msg.Payload.Type {
	case PayloadReset:
		c.mu.Lock()
		initial, started := c.initial, c.started
		c.mu.Unlock()
		if !started {
			return nil
		}
		return c.restore(initial, msg.Payload.Type)

	case PayloadJumpToState, PayloadJumpToAction:
		v, err := c.target.Decode([]byte(msg.State))
		if err != nil {
			return fmt.Errorf("%s: %w", msg.Payload.Type, err)
		}
		return c.restore(v, msg.Payload.Type)

	case PayloadCommit:
		c.mu.Lock()
		last, seq := c.last, c.lastSeq
		c.mu.Unlock()
		c.init(last, seq)
		return nil

	default:
		c.log.Debug("ignoring dispatch", "payload", msg.Payload.Type)
		return nil
	}
}

func (c *Connection) restore(v any, cause string) error {
	changed, err := c.target.Restore(v, state.Named(cause))
	if err != nil {
		return fmt.Errorf("%s: %w", cause, err)
	}
	c.log.Debug("inspector restore", "payload", cause, "changed", changed)
	return nil
}
