package socket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kleeedolinux/roomsync/socket/transport"
)

type socketImpl struct {
	id       string
	mu       sync.RWMutex
	handlers map[Event][]Handler
	acks     *ackTable

	server    *Server
	transport transport.ServerTransport
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

func newSocketFromServerTransport(id string, t transport.ServerTransport, server *Server, logger *slog.Logger) *socketImpl {
	ctx, cancel := context.WithCancel(context.Background())
	s := &socketImpl{
		id:        id,
		handlers:  make(map[Event][]Handler),
		acks:      newAckTable(),
		server:    server,
		transport: t,
		connected: true,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With("socket", id),
	}
	s.logger.Debug("socket created")
	return s
}

// receiveLoop dispatches frames one at a time, in arrival order.
func (s *socketImpl) receiveLoop() {
	for {
		data, err := s.transport.Read()
		if err != nil {
			s.logger.Debug("read error", "error", err)
			s.Close()
			return
		}

		msg, err := decodeMessage(data)
		if err != nil {
			s.logger.Debug("dropping malformed frame", "error", err)
			s.triggerEvent(NewEnvelope(EventError, nil, nil))
			continue
		}

		if msg.Ack {
			if !s.acks.resolve(msg.AckID, msg.Args) {
				s.logger.Debug("acknowledgement for unknown id", "ack_id", msg.AckID)
			}
			continue
		}
		if msg.Event.Reserved() {
			s.logger.Debug("dropping frame with reserved event", "event", msg.Event)
			continue
		}

		s.triggerEvent(NewEnvelope(msg.Event, msg.Args, s.responder(msg.AckID)))
	}
}

func (s *socketImpl) responder(ackID uint64) func(values ...interface{}) error {
	if ackID == 0 {
		return nil
	}
	return func(values ...interface{}) error {
		data, err := encodeAck(ackID, values...)
		if err != nil {
			return err
		}
		return s.write(data)
	}
}

func (s *socketImpl) ID() string {
	return s.id
}

func (s *socketImpl) Context() context.Context {
	return s.ctx
}

func (s *socketImpl) write(data []byte) error {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()

	if !connected {
		return ErrConnectionClosed
	}

	if err := s.transport.Write(data); err != nil {
		s.logger.Debug("write error", "error", err)
		return err
	}
	return nil
}

func (s *socketImpl) Emit(event Event, args ...interface{}) error {
	data, err := encodeMessage(event, 0, args...)
	if err != nil {
		return err
	}
	return s.write(data)
}

func (s *socketImpl) EmitWithAck(event Event, ack AckHandler, args ...interface{}) error {
	id := s.acks.register(ack)
	data, err := encodeMessage(event, id, args...)
	if err != nil {
		s.acks.cancel(id)
		return err
	}

	if err := s.write(data); err != nil {
		s.acks.cancel(id)
		return err
	}
	return nil
}

func (s *socketImpl) On(event Event, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("registering handler", "event", event)
	s.handlers[event] = append(s.handlers[event], handler)
}

func (s *socketImpl) Off(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers, event)
}

func (s *socketImpl) To(room string) Emitter {
	if s.server == nil {
		return noopEmitter{}
	}
	return s.server.roomEmitter(room, s.id)
}

func (s *socketImpl) triggerEvent(e *Envelope) {
	s.mu.RLock()
	handlers := s.handlers[e.Event]
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug("no handler for event", "event", e.Event)
		return
	}

	for _, handler := range handlers {
		handler(e)
	}
}

func (s *socketImpl) Close() error {
	s.mu.Lock()

	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	s.connected = false
	s.mu.Unlock()

	s.cancel()
	if n := s.acks.drop(); n > 0 {
		s.logger.Debug("dropped pending acknowledgements", "count", n)
	}

	err := s.transport.Close()
	s.triggerEvent(NewEnvelope(EventDisconnect, nil, nil))
	return err
}

func (s *socketImpl) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.connected
}

type noopEmitter struct{}

func (noopEmitter) Emit(Event, ...interface{}) error { return nil }
