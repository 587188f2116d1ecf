package gateway

import (
	"log/slog"
	"sync"
)

// Emitter is a connection the hub can push messages to. The websocket client
// implements it; tests use fakes.
type Emitter interface {
	// ID identifies the underlying connection.
	ID() string
	// Emit queues a message for delivery. It must not block.
	Emit(msg Message)
}

// Hub tracks which connections belong to which room channel and fans messages
// out to one connection, a whole room, or a room minus the sender.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Emitter
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]Emitter),
		logger: logger,
	}
}

// Join adds a connection to a room channel.
func (h *Hub) Join(roomID string, conn Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]Emitter)
		h.rooms[roomID] = members
	}
	members[conn.ID()] = conn
}

// Leave removes a connection from a room channel, dropping the channel when it
// empties.
func (h *Hub) Leave(roomID string, conn Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, conn.ID())
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast sends to every connection in the room.
func (h *Hub) Broadcast(roomID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.rooms[roomID] {
		conn.Emit(msg)
	}
}

// BroadcastExcept sends to every connection in the room but the sender.
func (h *Hub) BroadcastExcept(roomID, senderID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, conn := range h.rooms[roomID] {
		if id == senderID {
			continue
		}
		conn.Emit(msg)
	}
}
