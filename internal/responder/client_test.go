package responder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"companion-chat/internal/models"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("test-key")

	if client.apiKey != "test-key" {
		t.Errorf("expected api key 'test-key', got '%s'", client.apiKey)
	}
	if client.baseURL != defaultBaseURL {
		t.Errorf("expected default base URL, got '%s'", client.baseURL)
	}
	if client.model != defaultModel {
		t.Errorf("expected default model, got '%s'", client.model)
	}
}

func TestNewClient_Options(t *testing.T) {
	httpClient := &http.Client{Timeout: time.Second}
	client := NewClient("test-key",
		WithModel("custom-model"),
		WithBaseURL("http://localhost:9999"),
		WithHTTPClient(httpClient),
	)

	if client.model != "custom-model" {
		t.Errorf("expected model 'custom-model', got '%s'", client.model)
	}
	if client.baseURL != "http://localhost:9999" {
		t.Errorf("expected base URL 'http://localhost:9999', got '%s'", client.baseURL)
	}
	if client.httpClient != httpClient {
		t.Error("expected custom http client")
	}
}

func TestGenerate(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello from Mika"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	persona := models.Persona{ID: 1, Name: "Mika", Voice: "Cheerful and curious"}

	reply, err := client.Generate(context.Background(), "hi there", persona, "Name: User\nMessage:\nearlier message")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if reply != "hello from Mika" {
		t.Errorf("expected reply 'hello from Mika', got '%s'", reply)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("expected system message first, got '%s'", gotReq.Messages[0].Role)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "Cheerful and curious") {
		t.Error("expected persona voice in system prompt")
	}
	if !strings.Contains(gotReq.Messages[0].Content, "earlier message") {
		t.Error("expected history in system prompt")
	}
	if gotReq.Messages[1].Content != "hi there" {
		t.Errorf("expected user message 'hi there', got '%s'", gotReq.Messages[1].Content)
	}
}

func TestGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), "hi", models.Persona{Name: "Mika"}, "")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only watches for client disconnect once the request
		// body is consumed; without this drain the handler never unblocks
		// and the deferred Close hangs.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, "hi", models.Persona{Name: "Mika"}, "")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), "hi", models.Persona{Name: "Mika"}, "")
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
