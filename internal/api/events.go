package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"companion-chat/internal/readstate"
)

// readAbsorbDelay is how long a client gets to render a freshly
// streamed message before the room is marked read up to now.
const readAbsorbDelay = 3 * time.Second

// RoomEventsHandler handles SSE connections for room events
type RoomEventsHandler struct {
	broadcaster *EventBroadcaster
	tracker     *readstate.Tracker
}

// NewRoomEventsHandler creates a new SSE handler
func NewRoomEventsHandler(broadcaster *EventBroadcaster, tracker *readstate.Tracker) *RoomEventsHandler {
	return &RoomEventsHandler{
		broadcaster: broadcaster,
		tracker:     tracker,
	}
}

// HandleEvents handles GET /api/rooms/{id}/events
func (h *RoomEventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		log.Printf("[SSE] Invalid room ID err=%v", err)
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	log.Printf("[SSE] New connection request room_id=%d", roomID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Printf("[SSE] Streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	userID := requestUserID(r)

	eventCh := h.broadcaster.Subscribe(roomID)
	defer h.broadcaster.Unsubscribe(roomID, eventCh)

	// An open stream means the user is looking at the room. Mark it
	// read on connect, again shortly after each streamed message, and
	// once more on disconnect so nothing shown counts as unread.
	h.markRead(userID, roomID)
	defer h.markRead(userID, roomID)

	_, err = w.Write([]byte("event: connected\ndata: {}\n\n"))
	if err != nil {
		log.Printf("[SSE] Failed to send connected event err=%v", err)
		return
	}
	flusher.Flush()

	log.Printf("[SSE] Client connected room_id=%d user_id=%s", roomID, userID)

	absorb := time.NewTimer(readAbsorbDelay)
	if !absorb.Stop() {
		<-absorb.C
	}
	defer absorb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SSE] Client disconnected room_id=%d", roomID)
			return
		case <-absorb.C:
			h.markRead(userID, roomID)
		case event, ok := <-eventCh:
			if !ok {
				log.Printf("[SSE] Event channel closed room_id=%d", roomID)
				return
			}
			data, err := FormatSSE(event)
			if err != nil {
				log.Printf("[SSE] Failed to format event err=%v", err)
				continue
			}
			_, err = w.Write(data)
			if err != nil {
				log.Printf("[SSE] Failed to write event err=%v", err)
				return
			}
			flusher.Flush()
			if event.Type == "message" {
				absorb.Reset(readAbsorbDelay)
			}
		}
	}
}

func (h *RoomEventsHandler) markRead(userID string, roomID int64) {
	if err := h.tracker.MarkRead(userID, roomID, unixNow()); err != nil {
		log.Printf("[SSE] Failed to mark read room_id=%d user_id=%s err=%v", roomID, userID, err)
	}
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
