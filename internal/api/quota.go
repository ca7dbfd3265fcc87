package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"companion-chat/internal/quota"
)

// QuotaHandler handles quota HTTP requests
type QuotaHandler struct {
	gate *quota.Gate
}

// NewQuotaHandler creates a new quota handler
func NewQuotaHandler(gate *quota.Gate) *QuotaHandler {
	return &QuotaHandler{gate: gate}
}

// QuotaStatusResponse represents the current quota status for a user
type QuotaStatusResponse struct {
	Remaining   int       `json:"remaining"`
	WindowReset time.Time `json:"window_reset"`
}

// BonusRequest represents the request body for granting bonus quota
type BonusRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// Status handles GET /api/quota
func (h *QuotaHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	remaining, reset, err := h.gate.Remaining(userID)
	if err != nil {
		log.Printf("[API] Quota status failed user_id=%s err=%v", userID, err)
		http.Error(w, "Quota backend unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QuotaStatusResponse{
		Remaining:   remaining,
		WindowReset: reset,
	})
}

// GrantBonus handles POST /api/quota/bonus
func (h *QuotaHandler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	var req BonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		http.Error(w, "Amount must be positive", http.StatusBadRequest)
		return
	}

	userID := requestUserID(r)
	if err := h.gate.GrantBonus(userID, req.Amount); err != nil {
		log.Printf("[API] Bonus grant failed user_id=%s err=%v", userID, err)
		http.Error(w, "Failed to grant bonus", http.StatusServiceUnavailable)
		return
	}

	remaining, reset, err := h.gate.Remaining(userID)
	if err != nil {
		http.Error(w, "Quota backend unavailable", http.StatusServiceUnavailable)
		return
	}

	log.Printf("[API] Bonus granted user_id=%s amount=%d reason=%s", userID, req.Amount, req.Reason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QuotaStatusResponse{
		Remaining:   remaining,
		WindowReset: reset,
	})
}
