package socket

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Args is the ordered argument list of a message, kept as raw JSON until a
// handler decodes it into the type it expects.
type Args []json.RawMessage

// EncodeArgs marshals values into Args.
func EncodeArgs(values ...interface{}) (Args, error) {
	if len(values) == 0 {
		return nil, nil
	}
	args := make(Args, 0, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		args = append(args, raw)
	}
	return args, nil
}

func (a Args) Len() int {
	return len(a)
}

// Decode unmarshals argument i into v.
func (a Args) Decode(i int, v interface{}) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("%w: argument %d of %d", ErrInvalidMessage, i, len(a))
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("%w: argument %d: %v", ErrInvalidMessage, i, err)
	}
	return nil
}

// Envelope is an inbound message together with the way to answer it.
type Envelope struct {
	Event Event
	Args  Args

	respond   func(values ...interface{}) error
	responded atomic.Bool
}

// NewEnvelope builds an envelope. respond may be nil when the sender did not
// ask for an acknowledgement.
func NewEnvelope(event Event, args Args, respond func(values ...interface{}) error) *Envelope {
	return &Envelope{Event: event, Args: args, respond: respond}
}

// WantsAck reports whether the sender is waiting for an acknowledgement.
func (e *Envelope) WantsAck() bool {
	return e.respond != nil
}

// Respond acknowledges the message with values. Only the first call is sent;
// later calls return ErrAlreadyAcknowledged. Responding to a message that did
// not ask for an acknowledgement is a no-op.
func (e *Envelope) Respond(values ...interface{}) error {
	if e.respond == nil {
		return nil
	}
	if !e.responded.CompareAndSwap(false, true) {
		return ErrAlreadyAcknowledged
	}
	return e.respond(values...)
}

// Responded reports whether Respond has been called.
func (e *Envelope) Responded() bool {
	return e.responded.Load()
}
