package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"companion-chat/internal/db"
)

// MemberHandler handles room membership HTTP requests
type MemberHandler struct {
	db          *db.DB
	broadcaster *EventBroadcaster
}

// NewMemberHandler creates a new membership handler
func NewMemberHandler(database *db.DB) *MemberHandler {
	return &MemberHandler{db: database}
}

// SetBroadcaster sets the event broadcaster for membership events
func (h *MemberHandler) SetBroadcaster(broadcaster *EventBroadcaster) {
	h.broadcaster = broadcaster
}

// AddMemberRequest represents the request body for adding a member
type AddMemberRequest struct {
	PersonaID int64 `json:"persona_id"`
}

// SetMembersRequest represents the request body for replacing membership
type SetMembersRequest struct {
	PersonaIDs []int64 `json:"persona_ids"`
}

// List handles GET /api/rooms/{id}/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.db.GetRoomMembers(roomID)
	if err != nil {
		http.Error(w, "Failed to get members", http.StatusInternalServerError)
		return
	}

	response := make([]PersonaResponse, len(members))
	for i, member := range members {
		response[i] = PersonaResponse{
			ID:        member.ID,
			Name:      member.Name,
			AvatarURL: member.AvatarURL,
			Voice:     member.Voice,
			CreatedAt: member.CreatedAt.Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Add handles POST /api/rooms/{id}/members
func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	persona, err := h.db.GetPersona(req.PersonaID)
	if err == sql.ErrNoRows {
		http.Error(w, "Persona not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get persona", http.StatusInternalServerError)
		return
	}

	if _, err := h.db.GetRoom(roomID); err == sql.ErrNoRows {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	if err := h.db.AddRoomMember(roomID, req.PersonaID); err != nil {
		log.Printf("[API] Failed to add member room_id=%d persona_id=%d err=%v", roomID, req.PersonaID, err)
		http.Error(w, "Failed to add member", http.StatusInternalServerError)
		return
	}

	log.Printf("[API] Member added room_id=%d persona_id=%d persona_name=%s", roomID, persona.ID, persona.Name)

	if h.broadcaster != nil {
		h.broadcaster.BroadcastMemberAdded(roomID, persona.ID, persona.Name)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Set handles PUT /api/rooms/{id}/members, replacing the membership set.
// The orchestrator reads membership fresh on every dispatch, so the new
// set takes effect from the next user message.
func (h *MemberHandler) Set(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	var req SetMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetRoom(roomID); err == sql.ErrNoRows {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	if err := h.db.SetRoomMembers(roomID, req.PersonaIDs); err != nil {
		log.Printf("[API] Failed to set members room_id=%d err=%v", roomID, err)
		http.Error(w, "Failed to set members", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/rooms/{id}/members/{persona_id}
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	personaID, err := strconv.ParseInt(r.PathValue("persona_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid persona ID", http.StatusBadRequest)
		return
	}

	if err := h.db.RemoveRoomMember(roomID, personaID); err == sql.ErrNoRows {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to remove member", http.StatusInternalServerError)
		return
	}

	log.Printf("[API] Member removed room_id=%d persona_id=%d", roomID, personaID)

	if h.broadcaster != nil {
		h.broadcaster.BroadcastMemberRemoved(roomID, personaID)
	}

	w.WriteHeader(http.StatusNoContent)
}
