package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"companion-chat/internal/db"
	"companion-chat/internal/models"
	"companion-chat/internal/orchestrator"
	"companion-chat/internal/quota"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	db     *db.DB
	engine *orchestrator.Engine
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(database *db.DB, engine *orchestrator.Engine) *MessageHandler {
	return &MessageHandler{
		db:     database,
		engine: engine,
	}
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID           int64   `json:"id"`
	RoomID       int64   `json:"room_id"`
	SenderType   string  `json:"sender_type"`
	SenderID     *int64  `json:"sender_id,omitempty"`
	SenderName   string  `json:"sender_name,omitempty"`
	SenderAvatar string  `json:"sender_avatar,omitempty"`
	Content      string  `json:"content"`
	Timestamp    float64 `json:"timestamp"`
}

func newMessageResponse(msg *models.Message) MessageResponse {
	return MessageResponse{
		ID:           msg.ID,
		RoomID:       msg.RoomID,
		SenderType:   string(msg.SenderType),
		SenderID:     msg.SenderID,
		SenderName:   msg.SenderName,
		SenderAvatar: msg.SenderAvatar,
		Content:      msg.Content,
		Timestamp:    msg.Timestamp,
	}
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse represents the response for sending a message.
// Persona replies arrive asynchronously via the events stream.
type SendMessageResponse struct {
	UserMessage    MessageResponse `json:"user_message"`
	QuotaRemaining int             `json:"quota_remaining"`
}

// Send handles POST /api/rooms/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log.Printf("[API] Send message started")

	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		log.Printf("[API] Send message failed: invalid room ID err=%v", err)
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[API] Send message failed: invalid request body err=%v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Content == "" {
		log.Printf("[API] Send message failed: content is required")
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetRoom(roomID); err == sql.ErrNoRows {
		log.Printf("[API] Send message failed: room not found room_id=%d", roomID)
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("[API] Send message failed: DB error getting room err=%v", err)
		http.Error(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	userID := requestUserID(r)
	msg, remaining, err := h.engine.HandleUserMessage(userID, roomID, req.Content)
	if errors.Is(err, quota.ErrQuotaExceeded) {
		log.Printf("[API] Send message denied: quota exceeded user_id=%s room_id=%d", userID, roomID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "quota_exceeded",
			"hint":  "wait for the window reset or redeem a bonus grant",
		})
		return
	}
	if errors.Is(err, quota.ErrQuotaUnavailable) {
		log.Printf("[API] Send message denied: quota backend unavailable user_id=%s err=%v", userID, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "quota_unavailable",
			"hint":  "retry shortly",
		})
		return
	}
	if err != nil {
		log.Printf("[API] Send message failed: err=%v", err)
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	log.Printf("[API] Send message completed room_id=%d message_id=%d quota_remaining=%d duration=%v",
		roomID, msg.ID, remaining, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SendMessageResponse{
		UserMessage:    newMessageResponse(msg),
		QuotaRemaining: remaining,
	})
}

// List handles GET /api/rooms/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
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

	messages, err := h.db.GetMessages(roomID)
	if err != nil {
		http.Error(w, "Failed to get messages", http.StatusInternalServerError)
		return
	}

	response := make([]MessageResponse, len(messages))
	for i := range messages {
		response[i] = newMessageResponse(&messages[i])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
