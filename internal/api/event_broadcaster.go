package api

import (
	"encoding/json"
	"log"
	"sync"

	"companion-chat/internal/models"
)

// Event represents a Server-Sent Event
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventBroadcaster manages SSE clients and broadcasts room events to
// them. Deliveries whose subscribers are gone are simply not observed
// by anyone; the message log remains the source of truth.
type EventBroadcaster struct {
	mu      sync.RWMutex
	clients map[int64]map[chan Event]struct{} // roomID -> clients
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[int64]map[chan Event]struct{}),
	}
}

// Subscribe adds a client receiving a room's events
func (b *EventBroadcaster) Subscribe(roomID int64) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 10)

	if b.clients[roomID] == nil {
		b.clients[roomID] = make(map[chan Event]struct{})
	}
	b.clients[roomID][ch] = struct{}{}

	log.Printf("[SSE] Client subscribed room_id=%d total_clients=%d", roomID, len(b.clients[roomID]))

	return ch
}

// Unsubscribe removes a client
func (b *EventBroadcaster) Unsubscribe(roomID int64, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[roomID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(b.clients, roomID)
		}
	}

	log.Printf("[SSE] Client unsubscribed room_id=%d", roomID)
}

// Broadcast sends an event to every client watching the room
func (b *EventBroadcaster) Broadcast(roomID int64, event Event) {
	// Hold the lock across the sends so Unsubscribe cannot close a
	// channel mid-broadcast; sends never block
	b.mu.RLock()
	defer b.mu.RUnlock()

	clients := b.clients[roomID]
	if len(clients) == 0 {
		return
	}

	log.Printf("[SSE] Broadcasting event type=%s room_id=%d clients=%d", event.Type, roomID, len(clients))

	for ch := range clients {
		select {
		case ch <- event:
		default:
			// Skip clients whose channel is full
			log.Printf("[SSE] Client channel full, skipping event")
		}
	}
}

// BroadcastMessage broadcasts a newly appended message. Satisfies the
// orchestrator's Broadcaster interface.
func (b *EventBroadcaster) BroadcastMessage(roomID int64, message *models.Message) {
	b.Broadcast(roomID, Event{
		Type: "message",
		Data: message,
	})
}

// BroadcastMemberAdded broadcasts a membership addition event
func (b *EventBroadcaster) BroadcastMemberAdded(roomID, personaID int64, personaName string) {
	b.Broadcast(roomID, Event{
		Type: "member_added",
		Data: map[string]any{
			"persona_id":   personaID,
			"persona_name": personaName,
		},
	})
}

// BroadcastMemberRemoved broadcasts a membership removal event
func (b *EventBroadcaster) BroadcastMemberRemoved(roomID, personaID int64) {
	b.Broadcast(roomID, Event{
		Type: "member_removed",
		Data: map[string]any{
			"persona_id": personaID,
		},
	})
}

// ClientCount returns the number of clients subscribed to a room
func (b *EventBroadcaster) ClientCount(roomID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[roomID])
}

// TotalClientCount returns the total number of clients across all rooms
func (b *EventBroadcaster) TotalClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}

// FormatSSE formats an event in SSE wire format
func FormatSSE(event Event) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte("event: " + event.Type + "\ndata: " + string(data) + "\n\n"), nil
}
