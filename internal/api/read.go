package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"companion-chat/internal/db"
	"companion-chat/internal/readstate"
)

// ReadHandler handles read-state HTTP requests
type ReadHandler struct {
	db      *db.DB
	tracker *readstate.Tracker
}

// NewReadHandler creates a new read-state handler
func NewReadHandler(database *db.DB, tracker *readstate.Tracker) *ReadHandler {
	return &ReadHandler{
		db:      database,
		tracker: tracker,
	}
}

// MarkReadRequest represents the request body for marking a room as read.
// At is optional; when omitted the current time is used.
type MarkReadRequest struct {
	At *float64 `json:"at,omitempty"`
}

// MarkRead handles POST /api/rooms/{id}/read
func (h *ReadHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetRoom(roomID); err == sql.ErrNoRows {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	var req MarkReadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	userID := requestUserID(r)
	at := unixNow()
	if req.At != nil {
		at = *req.At
	}

	if err := h.tracker.MarkRead(userID, roomID, at); err != nil {
		http.Error(w, "Failed to mark read", http.StatusInternalServerError)
		return
	}

	lastRead, err := h.tracker.LastRead(userID, roomID)
	if err != nil {
		http.Error(w, "Failed to get read state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"last_read": lastRead})
}

// Unread handles GET /api/rooms/{id}/unread
func (h *ReadHandler) Unread(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetRoom(roomID); err == sql.ErrNoRows {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	count, err := h.tracker.UnreadCount(requestUserID(r), roomID)
	if err != nil {
		http.Error(w, "Failed to count unread", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"unread": count})
}
