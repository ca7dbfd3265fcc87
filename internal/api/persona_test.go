package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"companion-chat/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_api_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	database, err := db.NewDB(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	cleanup := func() {
		database.Close()
		os.Remove(tmpFile.Name())
	}

	return database, cleanup
}

func setupTestPersonaHandler(t *testing.T) (*PersonaHandler, *db.DB, func()) {
	t.Helper()
	database, cleanup := setupTestDB(t)
	return NewPersonaHandler(database), database, cleanup
}

func TestCreatePersona_Success(t *testing.T) {
	handler, _, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	body := `{"name": "Mika", "voice": "Cheerful and curious", "avatar_url": "https://example.com/mika.png"}`
	req := httptest.NewRequest(http.MethodPost, "/api/personas", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	var response PersonaResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Name != "Mika" {
		t.Errorf("expected name 'Mika', got '%s'", response.Name)
	}
	if response.Voice != "Cheerful and curious" {
		t.Errorf("expected voice 'Cheerful and curious', got '%s'", response.Voice)
	}
	if response.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestCreatePersona_MissingFields(t *testing.T) {
	handler, _, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	testCases := []struct {
		name string
		body string
	}{
		{"missing name", `{"voice": "test"}`},
		{"missing voice", `{"name": "test"}`},
		{"empty body", `{}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/personas", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Create(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestListPersonas(t *testing.T) {
	handler, database, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	if _, err := database.CreatePersona("Mika", "", "voice 1"); err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}
	if _, err := database.CreatePersona("Ren", "", "voice 2"); err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/personas", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response []PersonaResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 2 {
		t.Errorf("expected 2 personas, got %d", len(response))
	}
}

func TestGetPersona_NotFound(t *testing.T) {
	handler, _, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/personas/99999", nil)
	req.SetPathValue("id", "99999")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestUpdatePersona_Success(t *testing.T) {
	handler, database, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	created, err := database.CreatePersona("Original", "", "Original voice")
	if err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	body := `{"name": "Updated", "voice": "Updated voice"}`
	req := httptest.NewRequest(http.MethodPut, "/api/personas/1", bytes.NewBufferString(body))
	req.SetPathValue("id", "1")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	persona, err := database.GetPersona(created.ID)
	if err != nil {
		t.Fatalf("failed to get persona: %v", err)
	}
	if persona.Name != "Updated" {
		t.Errorf("expected name 'Updated', got '%s'", persona.Name)
	}
}

func TestDeletePersona_Success(t *testing.T) {
	handler, database, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	if _, err := database.CreatePersona("ToDelete", "", "voice"); err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/personas/1", nil)
	req.SetPathValue("id", "1")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
}

func TestDeletePersona_NotFound(t *testing.T) {
	handler, _, cleanup := setupTestPersonaHandler(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodDelete, "/api/personas/99999", nil)
	req.SetPathValue("id", "99999")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
