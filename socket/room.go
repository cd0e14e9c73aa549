package socket

import (
	"sync"
)

type Room struct {
	name    string
	sockets map[string]*socketImpl
	mu      sync.RWMutex
}

func NewRoom(name string) *Room {
	return &Room{
		name:    name,
		sockets: make(map[string]*socketImpl),
	}
}

func (r *Room) addSocket(s *socketImpl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[s.ID()] = s
}

func (r *Room) RemoveSocket(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sockets, id)
}

func (r *Room) HasSocket(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sockets[id]
	return exists
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}

// broadcast writes an encoded frame to every member except the socket with
// id except. It returns how many sockets accepted the frame.
func (r *Room) broadcast(data []byte, except string) int {
	r.mu.RLock()
	targets := make([]*socketImpl, 0, len(r.sockets))
	for id, socket := range r.sockets {
		if id != except {
			targets = append(targets, socket)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, socket := range targets {
		if err := socket.write(data); err == nil {
			delivered++
		}
	}
	return delivered
}

func (r *Room) GetSockets() []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sockets := make([]Socket, 0, len(r.sockets))
	for _, socket := range r.sockets {
		sockets = append(sockets, socket)
	}

	return sockets
}

func (r *Room) Name() string {
	return r.name
}

type RoomManager struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
	}
}

func (rm *RoomManager) GetRoom(name string) *Room {
	rm.mu.RLock()
	room, exists := rm.rooms[name]
	rm.mu.RUnlock()

	if !exists {
		rm.mu.Lock()

		if room, exists = rm.rooms[name]; !exists {
			room = NewRoom(name)
			rm.rooms[name] = room
		}
		rm.mu.Unlock()
	}

	return room
}

func (rm *RoomManager) HasRoom(name string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, exists := rm.rooms[name]
	return exists
}

func (rm *RoomManager) RemoveRoom(name string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, name)
}

func (rm *RoomManager) GetRooms() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]string, 0, len(rm.rooms))
	for name := range rm.rooms {
		rooms = append(rooms, name)
	}

	return rooms
}

func (rm *RoomManager) joinRoom(roomName string, socket *socketImpl) {
	room := rm.GetRoom(roomName)
	room.addSocket(socket)
}

func (rm *RoomManager) LeaveRoom(roomName string, socketID string) {
	rm.mu.RLock()
	room, exists := rm.rooms[roomName]
	rm.mu.RUnlock()

	if exists {
		room.RemoveSocket(socketID)

		if room.Count() == 0 {
			rm.RemoveRoom(roomName)
		}
	}
}

func (rm *RoomManager) LeaveAllRooms(socketID string) {
	rm.mu.RLock()
	roomsCopy := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		roomsCopy = append(roomsCopy, room)
	}
	rm.mu.RUnlock()

	for _, room := range roomsCopy {
		if room.HasSocket(socketID) {
			room.RemoveSocket(socketID)

			if room.Count() == 0 {
				rm.RemoveRoom(room.Name())
			}
		}
	}
}

func (rm *RoomManager) GetSocketRooms(socketID string) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var socketRooms []string
	for name, room := range rm.rooms {
		if room.HasSocket(socketID) {
			socketRooms = append(socketRooms, name)
		}
	}

	return socketRooms
}

func (rm *RoomManager) broadcastToRoom(roomName string, data []byte, except string) int {
	rm.mu.RLock()
	room, exists := rm.rooms[roomName]
	rm.mu.RUnlock()

	if !exists {
		return 0
	}
	return room.broadcast(data, except)
}

// roomEmitter emits to a room, optionally skipping one socket.
type roomEmitter struct {
	rooms  *RoomManager
	room   string
	except string
}

func (e roomEmitter) Emit(event Event, args ...interface{}) error {
	data, err := encodeMessage(event, 0, args...)
	if err != nil {
		return err
	}
	e.rooms.broadcastToRoom(e.room, data, e.except)
	return nil
}
