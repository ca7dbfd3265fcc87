package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"companion-chat/internal/db"
	"companion-chat/internal/orchestrator"
	"companion-chat/internal/quota"
	"companion-chat/internal/readstate"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher interface for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Router holds the HTTP multiplexer and dependencies
type Router struct {
	mux            *http.ServeMux
	personaHandler *PersonaHandler
	roomHandler    *RoomHandler
	memberHandler  *MemberHandler
	messageHandler *MessageHandler
	readHandler    *ReadHandler
	quotaHandler   *QuotaHandler
	eventsHandler  *RoomEventsHandler
	broadcaster    *EventBroadcaster
}

// NewRouter creates a new router with all routes configured
func NewRouter(database *db.DB, engine *orchestrator.Engine, gate *quota.Gate, tracker *readstate.Tracker) *Router {
	// Create event broadcaster for SSE
	broadcaster := NewEventBroadcaster()
	engine.SetBroadcaster(broadcaster)

	memberHandler := NewMemberHandler(database)
	memberHandler.SetBroadcaster(broadcaster)

	r := &Router{
		mux:            http.NewServeMux(),
		personaHandler: NewPersonaHandler(database),
		roomHandler:    NewRoomHandler(database, engine, tracker),
		memberHandler:  memberHandler,
		messageHandler: NewMessageHandler(database, engine),
		readHandler:    NewReadHandler(database, tracker),
		quotaHandler:   NewQuotaHandler(gate),
		eventsHandler:  NewRoomEventsHandler(broadcaster, tracker),
		broadcaster:    broadcaster,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes
func (r *Router) setupRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", HealthHandler)

	// Persona routes
	r.mux.HandleFunc("GET /api/personas", r.personaHandler.List)
	r.mux.HandleFunc("POST /api/personas", r.personaHandler.Create)
	r.mux.HandleFunc("GET /api/personas/{id}", r.personaHandler.Get)
	r.mux.HandleFunc("PUT /api/personas/{id}", r.personaHandler.Update)
	r.mux.HandleFunc("DELETE /api/personas/{id}", r.personaHandler.Delete)

	// Room routes
	r.mux.HandleFunc("GET /api/rooms", r.roomHandler.List)
	r.mux.HandleFunc("POST /api/rooms", r.roomHandler.Create)
	r.mux.HandleFunc("GET /api/rooms/{id}", r.roomHandler.Get)
	r.mux.HandleFunc("DELETE /api/rooms/{id}", r.roomHandler.Delete)

	// Membership routes
	r.mux.HandleFunc("GET /api/rooms/{id}/members", r.memberHandler.List)
	r.mux.HandleFunc("PUT /api/rooms/{id}/members", r.memberHandler.Set)
	r.mux.HandleFunc("POST /api/rooms/{id}/members", r.memberHandler.Add)
	r.mux.HandleFunc("DELETE /api/rooms/{id}/members/{persona_id}", r.memberHandler.Remove)

	// Message routes
	r.mux.HandleFunc("GET /api/rooms/{id}/messages", r.messageHandler.List)
	r.mux.HandleFunc("POST /api/rooms/{id}/messages", r.messageHandler.Send)

	// Read-state routes
	r.mux.HandleFunc("POST /api/rooms/{id}/read", r.readHandler.MarkRead)
	r.mux.HandleFunc("GET /api/rooms/{id}/unread", r.readHandler.Unread)

	// Quota routes
	r.mux.HandleFunc("GET /api/quota", r.quotaHandler.Status)
	r.mux.HandleFunc("POST /api/quota/bonus", r.quotaHandler.GrantBonus)

	// SSE events route
	r.mux.HandleFunc("GET /api/rooms/{id}/events", r.eventsHandler.HandleEvents)
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	// Add CORS headers for development
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")

	if req.Method == "OPTIONS" {
		log.Printf("[HTTP] CORS preflight method=OPTIONS path=%s", req.URL.Path)
		w.WriteHeader(http.StatusOK)
		return
	}

	// Skip logging for health checks and SSE endpoints
	shouldLog := strings.HasPrefix(req.URL.Path, "/api/") && !strings.HasSuffix(req.URL.Path, "/events")

	if shouldLog {
		log.Printf("[HTTP] Request started method=%s path=%s", req.Method, req.URL.Path)
	}

	// Wrap response writer to capture status code
	wrapped := newResponseWriter(w)
	r.mux.ServeHTTP(wrapped, req)

	if shouldLog {
		log.Printf("[HTTP] Request completed method=%s path=%s status=%d duration=%v",
			req.Method, req.URL.Path, wrapped.statusCode, time.Since(start))
	}
}

// GetBroadcaster returns the event broadcaster
func (r *Router) GetBroadcaster() *EventBroadcaster {
	return r.broadcaster
}
