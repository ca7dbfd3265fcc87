package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"companion-chat/internal/db"
	"companion-chat/internal/orchestrator"
	"companion-chat/internal/readstate"
)

// RoomHandler handles room-related HTTP requests
type RoomHandler struct {
	db      *db.DB
	engine  *orchestrator.Engine
	tracker *readstate.Tracker
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(database *db.DB, engine *orchestrator.Engine, tracker *readstate.Tracker) *RoomHandler {
	return &RoomHandler{
		db:      database,
		engine:  engine,
		tracker: tracker,
	}
}

// CreateRoomRequest represents the request body for creating a room
type CreateRoomRequest struct {
	Name       string  `json:"name"`
	PersonaIDs []int64 `json:"persona_ids,omitempty"`
}

// RoomResponse represents a room in API responses
type RoomResponse struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	CreatedAt       string  `json:"created_at"`
	LastMessageAt   float64 `json:"last_message_at"`
	LastMessageText string  `json:"last_message_text"`
	UnreadCount     int     `json:"unread_count"`
}

// Create handles POST /api/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	log.Printf("[API] Create room started")

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[API] Create room failed: invalid request body err=%v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		log.Printf("[API] Create room failed: name is required")
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	room, err := h.db.CreateRoom(req.Name)
	if err != nil {
		log.Printf("[API] Failed to create room in DB err=%v", err)
		http.Error(w, "Failed to create room", http.StatusInternalServerError)
		return
	}

	for _, personaID := range req.PersonaIDs {
		if err := h.db.AddRoomMember(room.ID, personaID); err != nil {
			log.Printf("[API] Failed to add member room_id=%d persona_id=%d err=%v", room.ID, personaID, err)
			// Continue even if one fails
		}
	}

	log.Printf("[API] Create room completed room_id=%d name=%q members=%d", room.ID, room.Name, len(req.PersonaIDs))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	})
}

// List handles GET /api/rooms. Each room carries its denormalized
// last-message preview and the caller's derived unread count.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	rooms, err := h.db.GetAllRooms()
	if err != nil {
		http.Error(w, "Failed to get rooms", http.StatusInternalServerError)
		return
	}

	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		unread, err := h.tracker.UnreadCount(userID, room.ID)
		if err != nil {
			log.Printf("[API] Failed to get unread count room_id=%d err=%v", room.ID, err)
		}
		response[i] = RoomResponse{
			ID:              room.ID,
			Name:            room.Name,
			CreatedAt:       room.CreatedAt.Format(time.RFC3339),
			LastMessageAt:   room.LastMessageAt,
			LastMessageText: room.LastMessageText,
			UnreadCount:     unread,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Get handles GET /api/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	room, err := h.db.GetRoom(id)
	if err == sql.ErrNoRows {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	unread, err := h.tracker.UnreadCount(requestUserID(r), room.ID)
	if err != nil {
		log.Printf("[API] Failed to get unread count room_id=%d err=%v", room.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RoomResponse{
		ID:              room.ID,
		Name:            room.Name,
		CreatedAt:       room.CreatedAt.Format(time.RFC3339),
		LastMessageAt:   room.LastMessageAt,
		LastMessageText: room.LastMessageText,
		UnreadCount:     unread,
	})
}

// Delete handles DELETE /api/rooms/{id}. Pending scheduled deliveries
// for the room are cancelled first so nothing appends into a deleted room.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log.Printf("[API] Delete room started")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		log.Printf("[API] Delete room failed: invalid room ID err=%v", err)
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	if h.engine != nil {
		h.engine.CancelRoomTasks(id)
	}

	if err := h.db.DeleteRoom(id); err == sql.ErrNoRows {
		log.Printf("[API] Delete room failed: room not found room_id=%d", id)
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("[API] Delete room failed: DB error err=%v", err)
		http.Error(w, "Failed to delete room", http.StatusInternalServerError)
		return
	}

	log.Printf("[API] Delete room completed room_id=%d", id)
	w.WriteHeader(http.StatusNoContent)
}

// requestUserID identifies the human user for quota and read-state
// purposes. Authentication is an external concern; a stable
// client-supplied identifier is enough here.
func requestUserID(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return userID
	}
	return "local"
}
