package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"companion-chat/internal/models"
)

// runCascade evaluates the room once after a fan-out's staggered
// deliveries finish: if the latest message is persona-authored, one
// other member may produce a single short reaction to it after a
// randomized delay. Depth is hard-capped at one: this method is only
// ever invoked from deliverStaggered and never re-enters itself, so a
// reaction can never trigger another reaction.
func (e *Engine) runCascade(ctx context.Context, roomID int64) {
	latest, err := e.store.GetLatestMessage(roomID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[Orchestrator] Cascade skipped: latest message lookup failed room_id=%d err=%v", roomID, err)
		}
		return
	}
	if latest.SenderType != models.SenderTypePersona {
		return
	}

	if e.cfg.ReactionProbability <= 0 || e.rng.Float64() >= e.cfg.ReactionProbability {
		log.Printf("[Orchestrator] Cascade skipped by probability room_id=%d", roomID)
		return
	}

	// Fresh membership; the reactor is never the author of the message
	// it reacts to
	members, err := e.store.GetRoomMembers(roomID)
	if err != nil {
		log.Printf("[Orchestrator] Cascade skipped: member lookup failed room_id=%d err=%v", roomID, err)
		return
	}

	var candidates []models.Persona
	for _, member := range members {
		if latest.SenderID != nil && member.ID == *latest.SenderID {
			continue
		}
		candidates = append(candidates, member)
	}
	if len(candidates) == 0 {
		return
	}

	reactor := candidates[e.rng.Intn(len(candidates))]
	delay := e.reactionDelay()
	log.Printf("[Orchestrator] Reaction scheduled room_id=%d reactor_id=%d reactor_name=%s delay=%v",
		roomID, reactor.ID, reactor.Name, delay)

	select {
	case <-ctx.Done():
		log.Printf("[Orchestrator] Reaction cancelled room_id=%d", roomID)
		return
	case <-time.After(delay):
	}

	prompt := buildReactionPrompt(latest)
	history := e.buildHistory(roomID)

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ResponderTimeout)
	defer cancel()
	content, err := e.generator.Generate(callCtx, prompt, reactor, history)
	if err != nil {
		log.Printf("[Orchestrator] Reaction generation failed room_id=%d reactor_id=%d err=%v", roomID, reactor.ID, err)
		return
	}

	reactorID := reactor.ID
	msg, err := e.store.CreateMessage(roomID, models.SenderTypePersona, &reactorID, reactor.Name, reactor.AvatarURL, content)
	if err != nil {
		log.Printf("[Orchestrator] Failed to append reaction room_id=%d reactor_id=%d err=%v", roomID, reactorID, err)
		return
	}
	e.broadcast(roomID, msg)

	log.Printf("[Orchestrator] Reaction delivered room_id=%d message_id=%d reactor_name=%s", roomID, msg.ID, reactor.Name)
}

// reactionDelay draws a uniform delay in [ReactionDelayMin, ReactionDelayMax]
func (e *Engine) reactionDelay() time.Duration {
	span := e.cfg.ReactionDelayMax - e.cfg.ReactionDelayMin
	if span <= 0 {
		return e.cfg.ReactionDelayMin
	}
	return e.cfg.ReactionDelayMin + time.Duration(e.rng.Float64()*float64(span))
}

// buildReactionPrompt asks the reactor for one short follow-up
// referencing the latest message's author and content
func buildReactionPrompt(latest *models.Message) string {
	return fmt.Sprintf(
		"%s just said:\n%s\n\nGive one short reaction to %s's message, in character. Do not start a new topic.",
		latest.SenderName, latest.Content, latest.SenderName,
	)
}
