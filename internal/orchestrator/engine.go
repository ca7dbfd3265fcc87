package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"companion-chat/internal/logic"
	"companion-chat/internal/models"
	"companion-chat/internal/quota"
	"companion-chat/internal/responder"
)

// Store is the conversation persistence the engine consumes: an
// append-only per-room message log plus membership lookup. Appends are
// serialized per room by the implementation.
type Store interface {
	CreateMessage(roomID int64, senderType models.SenderType, senderID *int64, senderName, senderAvatar, content string) (*models.Message, error)
	GetRoomMembers(roomID int64) ([]models.Persona, error)
	GetRecentMessages(roomID int64, limit int) ([]models.Message, error)
	GetLatestMessage(roomID int64) (*models.Message, error)
}

// QuotaGate gates user-initiated sends
type QuotaGate interface {
	TryConsume(userID string) (bool, int, error)
}

// Broadcaster pushes newly appended messages to live subscribers
type Broadcaster interface {
	BroadcastMessage(roomID int64, message *models.Message)
}

// Config tunes delivery pacing and the reaction cascade
type Config struct {
	// PacingInterval spaces staggered persona replies
	PacingInterval time.Duration

	// ResponderTimeout bounds each individual generation call
	ResponderTimeout time.Duration

	// ReactionProbability is the chance a fan-out is followed by one
	// persona-to-persona reaction (1.0 = always)
	ReactionProbability float64

	// ReactionDelayMin/Max bound the randomized delay before the
	// reaction is generated
	ReactionDelayMin time.Duration
	ReactionDelayMax time.Duration

	// HistoryWindow caps the recent messages included in prompts
	HistoryWindow int
}

// DefaultConfig returns the default orchestration tuning
func DefaultConfig() Config {
	return Config{
		PacingInterval:      1500 * time.Millisecond,
		ResponderTimeout:    20 * time.Second,
		ReactionProbability: 1.0,
		ReactionDelayMin:    2 * time.Second,
		ReactionDelayMax:    5 * time.Second,
		HistoryWindow:       5,
	}
}

// Engine drives a room's conversation: it gates the user's send on
// quota, appends it, picks which personas answer, fans out concurrent
// generation calls, paces the replies into the room, and triggers the
// bounded reaction cascade.
type Engine struct {
	store       Store
	generator   responder.Generator
	gate        QuotaGate
	selector    *logic.TurnSelector
	scheduler   *Scheduler
	rng         logic.Rand
	broadcaster Broadcaster
	cfg         Config
}

// NewEngine creates an engine. generator may be nil, in which case user
// messages are stored but no persona ever replies.
func NewEngine(store Store, generator responder.Generator, gate QuotaGate, rng logic.Rand, cfg Config) *Engine {
	return &Engine{
		store:     store,
		generator: generator,
		gate:      gate,
		selector:  logic.NewTurnSelector(rng),
		scheduler: NewScheduler(),
		rng:       rng,
		cfg:       cfg,
	}
}

// SetBroadcaster sets the live-subscription sink for appended messages
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// HandleUserMessage runs the send pipeline for one user message. The
// returned message is the persisted user message and remaining is the
// quota left after this send; persona replies arrive asynchronously.
// Returns quota.ErrQuotaExceeded when the window is exhausted and
// quota.ErrQuotaUnavailable when the quota backend is unreachable (the
// send is denied in both cases; only the first is a normal condition).
func (e *Engine) HandleUserMessage(userID string, roomID int64, content string) (*models.Message, int, error) {
	allowed, remaining, err := e.gate.TryConsume(userID)
	if err != nil {
		return nil, 0, err
	}
	if !allowed {
		return nil, 0, quota.ErrQuotaExceeded
	}

	// Trailing history window, captured before the new message so the
	// prompt does not repeat it
	history := e.buildHistory(roomID)

	msg, err := e.store.CreateMessage(roomID, models.SenderTypeUser, nil, "", "", content)
	if err != nil {
		return nil, remaining, fmt.Errorf("append user message: %w", err)
	}
	e.broadcast(roomID, msg)

	// Membership is read fresh on every dispatch, never cached
	members, err := e.store.GetRoomMembers(roomID)
	if err != nil {
		log.Printf("[Orchestrator] Failed to get room members room_id=%d err=%v", roomID, err)
		return msg, remaining, nil
	}
	if len(members) == 0 || e.generator == nil {
		return msg, remaining, nil
	}

	// Explicit @mentions override the random turn selection
	respondents := logic.MentionedPersonas(content, members)
	if len(respondents) == 0 {
		respondents = e.selector.SelectRespondents(members)
	}

	names := make([]string, len(respondents))
	for i, p := range respondents {
		names[i] = p.Name
	}
	log.Printf("[Orchestrator] Respondents selected room_id=%d count=%d names=%v", roomID, len(respondents), names)

	e.scheduler.Go(roomID, func(ctx context.Context) {
		e.dispatch(ctx, roomID, content, respondents, history)
	})

	return msg, remaining, nil
}

// CancelRoomTasks cancels the room's pending deliveries. Used by room
// deletion only; a new user message never cancels pending deliveries.
func (e *Engine) CancelRoomTasks(roomID int64) {
	e.scheduler.CancelRoom(roomID)
}

// Shutdown drains all pending scheduled tasks
func (e *Engine) Shutdown() {
	e.scheduler.Shutdown()
}

func (e *Engine) buildHistory(roomID int64) string {
	if e.cfg.HistoryWindow <= 0 {
		return ""
	}
	recent, err := e.store.GetRecentMessages(roomID, e.cfg.HistoryWindow)
	if err != nil {
		log.Printf("[Orchestrator] Failed to get recent messages room_id=%d err=%v", roomID, err)
		return ""
	}
	return logic.BuildTranscript(recent, e.cfg.HistoryWindow)
}

func (e *Engine) broadcast(roomID int64, msg *models.Message) {
	if e.broadcaster != nil {
		e.broadcaster.BroadcastMessage(roomID, msg)
	}
}
