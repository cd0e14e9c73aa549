package socket

import (
	"context"
	"errors"
)

type Event string

const (
	EventConnect    Event = "connect"
	EventDisconnect Event = "disconnect"
	EventError      Event = "error"
	EventMessage    Event = "message"
)

// Reserved reports whether event is a lifecycle event raised locally. Frames
// carrying one of these names are dropped on receipt.
func (e Event) Reserved() bool {
	switch e {
	case EventConnect, EventDisconnect, EventError:
		return true
	}
	return false
}

// Message is the frame exchanged on the wire. A non-zero AckID on a regular
// message asks the receiver for an acknowledgement; a message with Ack set is
// that acknowledgement and carries the reply values in Args.
type Message struct {
	Event Event  `json:"event,omitempty"`
	Args  Args   `json:"args,omitempty"`
	AckID uint64 `json:"ackId,omitempty"`
	Ack   bool   `json:"ack,omitempty"`
}

// Handler receives one inbound message.
type Handler func(e *Envelope)

// AckHandler receives the values passed to an acknowledgement.
type AckHandler func(args Args)

// Emitter sends a named event with arguments to one or more connections.
type Emitter interface {
	Emit(event Event, args ...interface{}) error
}

type Socket interface {
	Emitter

	ID() string

	// Context is cancelled when the socket closes.
	Context() context.Context

	// EmitWithAck sends event and calls ack once the peer acknowledges it.
	EmitWithAck(event Event, ack AckHandler, args ...interface{}) error

	On(event Event, handler Handler)

	Off(event Event)

	// To returns an emitter for every socket in room except this one.
	To(room string) Emitter

	Close() error

	IsConnected() bool
}

var (
	ErrConnectionClosed    = errors.New("connection closed")
	ErrInvalidMessage      = errors.New("invalid message format")
	ErrAlreadyAcknowledged = errors.New("message already acknowledged")
)
