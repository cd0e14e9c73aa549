package socket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/kleeedolinux/roomsync/debug"
	"github.com/kleeedolinux/roomsync/socket/transport"
)

// ServerHandler handles an event received on one of the server's sockets.
type ServerHandler func(s Socket, e *Envelope)

type Server struct {
	mu       sync.RWMutex
	sockets  map[string]*socketImpl
	handlers map[Event][]ServerHandler

	roomManager *RoomManager

	maxConcurrency       int
	concurrencySemaphore chan struct{}
	compressionEnabled   bool
	bufferSize           int
	wsConfig             transport.WebSocketServerConfig
	logger               *slog.Logger
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		sockets:            make(map[string]*socketImpl),
		handlers:           make(map[Event][]ServerHandler),
		roomManager:        NewRoomManager(),
		maxConcurrency:     100,
		bufferSize:         1024,
		compressionEnabled: false,
		wsConfig:           transport.DefaultWebSocketServerConfig(),
		logger:             debug.Component("socket-server"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.concurrencySemaphore == nil && s.maxConcurrency > 0 {
		s.concurrencySemaphore = make(chan struct{}, s.maxConcurrency)
	}

	return s
}

type ServerOption func(*Server)

// WithMaxConcurrency limits how many websocket handshakes run at once.
func WithMaxConcurrency(maxConcurrent int) ServerOption {
	return func(s *Server) {
		s.maxConcurrency = maxConcurrent
		s.concurrencySemaphore = make(chan struct{}, maxConcurrent)
	}
}

func WithCompression(enabled bool) ServerOption {
	return func(s *Server) {
		s.compressionEnabled = enabled
	}
}

func WithBufferSize(size int) ServerOption {
	return func(s *Server) {
		s.bufferSize = size
	}
}

func WithWebSocketConfig(cfg transport.WebSocketServerConfig) ServerOption {
	return func(s *Server) {
		s.wsConfig = cfg
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func (s *Server) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if s.concurrencySemaphore != nil {
		select {
		case s.concurrencySemaphore <- struct{}{}:
		default:
			http.Error(w, "Too many connections", http.StatusServiceUnavailable)
			return
		}
	}

	t := s.upgrade(w, r)

	if s.concurrencySemaphore != nil {
		<-s.concurrencySemaphore
	}

	if t != nil {
		s.Accept(t)
	}
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) transport.ServerTransport {
	upgraderConfig := transport.Upgrader
	upgraderConfig.EnableCompression = s.compressionEnabled
	upgraderConfig.ReadBufferSize = s.bufferSize
	upgraderConfig.WriteBufferSize = s.bufferSize

	conn, err := upgraderConfig.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return nil
	}

	return transport.NewWebSocketServerTransport(generateID(), conn, s.wsConfig)
}

// Accept registers a connection, runs the connect handlers and then starts
// dispatching its messages. Handlers wired during EventConnect therefore see
// every message the peer sends.
func (s *Server) Accept(t transport.ServerTransport) Socket {
	id := t.ID()
	if id == "" {
		id = generateID()
	}
	socket := newSocketFromServerTransport(id, t, s, s.logger)
	s.handleSocket(socket)
	go socket.receiveLoop()
	return socket
}

func (s *Server) HandleFunc(event Event, handler ServerHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("registering server handler", "event", event)
	s.handlers[event] = append(s.handlers[event], handler)
}

func (s *Server) handleSocket(socket *socketImpl) {
	s.mu.Lock()
	s.sockets[socket.ID()] = socket
	events := make([]Event, 0, len(s.handlers))
	for event := range s.handlers {
		if event != EventConnect && event != EventDisconnect {
			events = append(events, event)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("socket connected", "socket", socket.ID())

	for _, event := range events {
		currentEvent := event

		socket.On(currentEvent, func(e *Envelope) {
			s.mu.RLock()
			handlers := s.handlers[currentEvent]
			s.mu.RUnlock()

			for _, handler := range handlers {
				handler(socket, e)
			}
		})
	}

	socket.On(EventDisconnect, func(e *Envelope) {
		s.logger.Debug("socket disconnected", "socket", socket.ID())

		s.mu.Lock()
		delete(s.sockets, socket.ID())
		s.mu.Unlock()

		s.LeaveAll(socket.ID())

		s.triggerEvent(socket, e)
	})

	s.triggerEvent(socket, NewEnvelope(EventConnect, nil, nil))
}

func (s *Server) triggerEvent(socket Socket, e *Envelope) {
	s.mu.RLock()
	handlers := s.handlers[e.Event]
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(socket, e)
	}
}

// Broadcast emits to every connected socket.
func (s *Server) Broadcast(event Event, args ...interface{}) error {
	data, err := encodeMessage(event, 0, args...)
	if err != nil {
		return err
	}

	s.mu.RLock()
	socketsCopy := make([]*socketImpl, 0, len(s.sockets))
	for _, socket := range s.sockets {
		socketsCopy = append(socketsCopy, socket)
	}
	s.mu.RUnlock()

	for _, socket := range socketsCopy {
		if err := socket.write(data); err != nil {
			s.logger.Debug("broadcast write failed", "socket", socket.ID(), "error", err)
		}
	}
	return nil
}

// To returns an emitter for every socket in room.
func (s *Server) To(room string) Emitter {
	return s.roomEmitter(room, "")
}

func (s *Server) roomEmitter(room, except string) Emitter {
	return roomEmitter{rooms: s.roomManager, room: room, except: except}
}

func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sockets)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sockets := make([]*socketImpl, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	s.mu.Unlock()

	for _, socket := range sockets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := socket.Close(); err != nil {
			s.logger.Debug("error closing socket", "socket", socket.ID(), "error", err)
		}
	}

	return nil
}

func (s *Server) Join(socketID string, room string) bool {
	s.mu.RLock()
	socket, exists := s.sockets[socketID]
	s.mu.RUnlock()

	if exists {
		s.roomManager.joinRoom(room, socket)
	}
	return exists
}

func (s *Server) Leave(socketID string, room string) {
	s.roomManager.LeaveRoom(room, socketID)
}

func (s *Server) LeaveAll(socketID string) {
	s.roomManager.LeaveAllRooms(socketID)
}

func (s *Server) RoomsOf(socketID string) []string {
	return s.roomManager.GetSocketRooms(socketID)
}

func (s *Server) In(room string) []Socket {
	if !s.roomManager.HasRoom(room) {
		return nil
	}
	return s.roomManager.GetRoom(room).GetSockets()
}

func (s *Server) GetSocket(id string) (Socket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	socket, exists := s.sockets[id]
	if !exists {
		return nil, false
	}
	return socket, true
}
