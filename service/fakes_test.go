package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kleeedolinux/roomsync/socket"
)

type sent struct {
	room   string
	except string
	event  socket.Event
	args   []interface{}
}

// fakeRooms records every room emit.
type fakeRooms struct {
	mu   sync.Mutex
	sent []sent
}

func (r *fakeRooms) To(room string) socket.Emitter {
	return fakeRoomEmitter{rooms: r, room: room}
}

func (r *fakeRooms) log() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

type fakeRoomEmitter struct {
	rooms  *fakeRooms
	room   string
	except string
}

func (e fakeRoomEmitter) Emit(event socket.Event, args ...interface{}) error {
	e.rooms.mu.Lock()
	defer e.rooms.mu.Unlock()
	e.rooms.sent = append(e.rooms.sent, sent{room: e.room, except: e.except, event: event, args: args})
	return nil
}

type fakeSocket struct {
	id    string
	rooms *fakeRooms

	mu       sync.Mutex
	handlers map[socket.Event][]socket.Handler
	emitted  []sent
}

func newFakeSocket(id string, rooms *fakeRooms) *fakeSocket {
	return &fakeSocket{id: id, rooms: rooms, handlers: make(map[socket.Event][]socket.Handler)}
}

func (s *fakeSocket) ID() string { return s.id }

func (s *fakeSocket) Context() context.Context { return context.Background() }

func (s *fakeSocket) Close() error { return nil }

func (s *fakeSocket) IsConnected() bool { return true }

func (s *fakeSocket) To(room string) socket.Emitter {
	return fakeRoomEmitter{rooms: s.rooms, room: room, except: s.id}
}

func (s *fakeSocket) On(event socket.Event, h socket.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *fakeSocket) Off(event socket.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

func (s *fakeSocket) Emit(event socket.Event, args ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = append(s.emitted, sent{event: event, args: args})
	return nil
}

func (s *fakeSocket) EmitWithAck(event socket.Event, ack socket.AckHandler, args ...interface{}) error {
	return s.Emit(event, args...)
}

func (s *fakeSocket) unicasts() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.emitted...)
}

func (s *fakeSocket) listens(event socket.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[event]) > 0
}

// deliver dispatches an inbound message asking for an acknowledgement and
// returns the channel the acknowledged values arrive on.
func (s *fakeSocket) deliver(t *testing.T, event socket.Event, values ...interface{}) <-chan []interface{} {
	t.Helper()

	args, err := socket.EncodeArgs(values...)
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	acks := make(chan []interface{}, 1)
	e := socket.NewEnvelope(event, args, func(values ...interface{}) error {
		acks <- values
		return nil
	})

	s.mu.Lock()
	handlers := append([]socket.Handler(nil), s.handlers[event]...)
	s.mu.Unlock()

	if len(handlers) == 0 {
		t.Fatalf("no handler for %s", event)
	}
	for _, h := range handlers {
		h(e)
	}
	return acks
}

func awaitAck(t *testing.T, acks <-chan []interface{}) []interface{} {
	t.Helper()
	select {
	case values := <-acks:
		return values
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for acknowledgement")
	}
	return nil
}

type lobby struct {
	*Service

	mu          sync.Mutex
	initialized []string
}

func (l *lobby) InitConnection(conn socket.Socket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = append(l.initialized, conn.ID())
}

type lobbyFixture struct {
	registry    *Registry
	typ         *Type[*lobby]
	playerCount Mirrored[int]
}

func newLobbyFixture(t *testing.T, opts ...RegistryOption) *lobbyFixture {
	t.Helper()

	r := NewRegistry(opts...)
	typ, err := Define[*lobby](r, "Lobby")
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	playerCount, err := Mirror(typ, "playerCount", 0)
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	return &lobbyFixture{registry: r, typ: typ, playerCount: playerCount}
}

func (f *lobbyFixture) newLobby() *lobby {
	l := &lobby{}
	l.Service = f.typ.New(l)
	return l
}

func eventuallyTrue(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
