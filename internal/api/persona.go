package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"companion-chat/internal/db"
)

// PersonaHandler handles persona catalog HTTP requests
type PersonaHandler struct {
	db *db.DB
}

// NewPersonaHandler creates a new persona handler
func NewPersonaHandler(database *db.DB) *PersonaHandler {
	return &PersonaHandler{db: database}
}

// PersonaRequest represents the request body for creating or updating a persona
type PersonaRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Voice     string `json:"voice"`
}

// PersonaResponse represents a persona in API responses
type PersonaResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Voice     string `json:"voice"`
	CreatedAt string `json:"created_at"`
}

// Create handles POST /api/personas
func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Voice == "" {
		http.Error(w, "Name and voice are required", http.StatusBadRequest)
		return
	}

	persona, err := h.db.CreatePersona(req.Name, req.AvatarURL, req.Voice)
	if err != nil {
		http.Error(w, "Failed to create persona", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(PersonaResponse{
		ID:        persona.ID,
		Name:      persona.Name,
		AvatarURL: persona.AvatarURL,
		Voice:     persona.Voice,
		CreatedAt: persona.CreatedAt.Format(time.RFC3339),
	})
}

// List handles GET /api/personas
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	personas, err := h.db.GetAllPersonas()
	if err != nil {
		http.Error(w, "Failed to get personas", http.StatusInternalServerError)
		return
	}

	response := make([]PersonaResponse, len(personas))
	for i, persona := range personas {
		response[i] = PersonaResponse{
			ID:        persona.ID,
			Name:      persona.Name,
			AvatarURL: persona.AvatarURL,
			Voice:     persona.Voice,
			CreatedAt: persona.CreatedAt.Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Get handles GET /api/personas/{id}
func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid persona ID", http.StatusBadRequest)
		return
	}

	persona, err := h.db.GetPersona(id)
	if err == sql.ErrNoRows {
		http.Error(w, "Persona not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get persona", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PersonaResponse{
		ID:        persona.ID,
		Name:      persona.Name,
		AvatarURL: persona.AvatarURL,
		Voice:     persona.Voice,
		CreatedAt: persona.CreatedAt.Format(time.RFC3339),
	})
}

// Update handles PUT /api/personas/{id}. Rooms reference personas by ID,
// so the updated voice applies everywhere immediately.
func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid persona ID", http.StatusBadRequest)
		return
	}

	var req PersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Voice == "" {
		http.Error(w, "Name and voice are required", http.StatusBadRequest)
		return
	}

	persona, err := h.db.UpdatePersona(id, req.Name, req.AvatarURL, req.Voice)
	if err == sql.ErrNoRows {
		http.Error(w, "Persona not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update persona", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PersonaResponse{
		ID:        persona.ID,
		Name:      persona.Name,
		AvatarURL: persona.AvatarURL,
		Voice:     persona.Voice,
		CreatedAt: persona.CreatedAt.Format(time.RFC3339),
	})
}

// Delete handles DELETE /api/personas/{id}
func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid persona ID", http.StatusBadRequest)
		return
	}

	if err := h.db.DeletePersona(id); err == sql.ErrNoRows {
		http.Error(w, "Persona not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to delete persona", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
