package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/comanda-pos/api/internal/event"
	"github.com/google/uuid"
)

// FloorRoom receives every event. Staff screens subscribe to it; a table's
// QR page subscribes to that table's room only.
var FloorRoom = uuid.Nil

// roomEvent is an internal struct for routing events to specific rooms
type roomEvent struct {
	RoomID uuid.UUID
	Event  event.Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// It implements event.Sink.
type Hub struct {
	// Registered clients by room (table ID or FloorRoom)
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *roomEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.roomID] == nil {
				h.rooms[client.roomID] = make(map[*Client]bool)
			}
			h.rooms[client.roomID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.roomID]; ok {
				if _, exists := clients[client]; exists {
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case re := <-h.broadcast:
			message, err := json.Marshal(re.Event)
			if err != nil {
				log.Printf("ERROR: marshal ws event %s: %v", re.Event.Type, err)
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[re.RoomID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client and closes its send channel. Caller holds h.mu.
func (h *Hub) drop(client *Client) {
	clients := h.rooms[client.roomID]
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.roomID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.drop(client)
		}
	}
}

// Publish queues e for the floor room and, when it concerns a table, for
// that table's room.
func (h *Hub) Publish(ctx context.Context, e event.Event) error {
	rooms := []uuid.UUID{FloorRoom}
	if e.TableID != uuid.Nil {
		rooms = append(rooms, e.TableID)
	}
	for _, room := range rooms {
		select {
		case h.broadcast <- &roomEvent{RoomID: room, Event: e}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Clients returns the number of clients in a room.
func (h *Hub) Clients(room uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
