package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

var (
	ErrAlreadyBound    = errors.New("service already bound to another room")
	ErrUnknownProperty = errors.New("property is not mirrored")
)

// RoomEmitter is the transport handle used for room broadcasts.
// *socket.Server implements it.
type RoomEmitter interface {
	To(room string) socket.Emitter
}

// ConnectionInitializer is implemented by services that need custom setup
// for each joining connection, such as extra event handlers.
type ConnectionInitializer interface {
	InitConnection(conn socket.Socket)
}

// Service is the per-instance state of a room service: its shadow values and
// its room binding. Concrete services embed *Service.
type Service struct {
	core *typeCore
	self interface{}

	// writeMu keeps mirrored writes and their broadcasts in the same order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	values    map[string]interface{}
	transport RoomEmitter
	room      string
	bound     bool

	logger *slog.Logger
}

func (s *Service) Name() string {
	return s.core.name
}

// Room returns the bound room key, or "" while unbound.
func (s *Service) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

func (s *Service) Bound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bound
}

// ConnectToRoom binds the service to room on first use and joins conn to
// it: the type's default events are wired onto conn with this instance as
// receiver, the ConnectionInitializer hook runs, and every mirrored property
// is sent to conn alone in declaration order.
//
// The caller is responsible for adding conn to the transport room. Joining
// further connections to the same room is the normal case; a different room
// returns ErrAlreadyBound.
func (s *Service) ConnectToRoom(transport RoomEmitter, conn socket.Socket, room string) error {
	if transport == nil || conn == nil {
		return fmt.Errorf("%w: %s: nil transport or connection", protocol.ErrConfiguration, s.core.name)
	}

	s.mu.Lock()
	if s.bound && s.room != room {
		current := s.room
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is bound to %q, not %q", ErrAlreadyBound, s.core.name, current, room)
	}
	s.transport = transport
	s.room = room
	s.bound = true
	s.mu.Unlock()

	s.logger.Debug("connection joined room", "room", room, "socket", conn.ID())

	for _, entry := range s.core.snapshotEvents() {
		handler := entry.handler
		conn.On(entry.event, func(e *socket.Envelope) {
			handler(s, conn, e)
		})
	}

	if initializer, ok := s.self.(ConnectionInitializer); ok {
		initializer.InitConnection(conn)
	}

	s.replayProps(conn)
	s.core.metrics().roomConnection(s.core.name)
	return nil
}

func (s *Service) replayProps(conn socket.Socket) {
	for _, prop := range s.core.snapshotProps() {
		topic := protocol.MustTopic(protocol.FamilyPropUpdate, s.core.name, prop)
		if err := s.Unicast(conn, socket.Event(topic), s.value(prop)); err != nil {
			s.logger.Debug("replay failed", "prop", prop, "socket", conn.ID(), "error", err)
		}
	}
}

// Broadcast emits to every connection in the bound room. It does nothing
// while the service is unbound.
func (s *Service) Broadcast(event socket.Event, values ...interface{}) error {
	s.mu.RLock()
	transport, room := s.transport, s.room
	s.mu.RUnlock()

	if transport == nil {
		return nil
	}

	if err := transport.To(room).Emit(event, values...); err != nil {
		return err
	}
	s.core.metrics().broadcast(s.core.name)
	return nil
}

// Unicast emits to a single connection regardless of the room binding.
func (s *Service) Unicast(conn socket.Socket, event socket.Event, values ...interface{}) error {
	if err := conn.Emit(event, values...); err != nil {
		return err
	}
	s.core.metrics().unicast(s.core.name)
	return nil
}

// BroadcastExcludingSender emits to the bound room through sender's own
// room path, so every member except sender receives it.
func (s *Service) BroadcastExcludingSender(sender socket.Socket, event socket.Event, values ...interface{}) error {
	s.mu.RLock()
	bound, room := s.bound, s.room
	s.mu.RUnlock()

	if !bound {
		return nil
	}

	if err := sender.To(room).Emit(event, values...); err != nil {
		return err
	}
	s.core.metrics().broadcast(s.core.name)
	return nil
}

// EmitPropUpdate broadcasts the current value of a mirrored property. Use it
// after changing a mirrored value in place, which Set cannot observe.
func (s *Service) EmitPropUpdate(prop string) error {
	if !s.core.mirrored(prop) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, s.core.name, prop)
	}
	topic := protocol.MustTopic(protocol.FamilyPropUpdate, s.core.name, prop)
	return s.Broadcast(socket.Event(topic), s.value(prop))
}

func (s *Service) value(prop string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[prop]
}

func (s *Service) store(prop string, v interface{}) {
	s.mu.Lock()
	s.values[prop] = v
	s.mu.Unlock()
}
