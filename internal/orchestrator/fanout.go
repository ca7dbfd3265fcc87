package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"companion-chat/internal/models"
)

// fanoutResult is one successful generation, tagged with the persona it
// came from
type fanoutResult struct {
	persona models.Persona
	content string
}

// dispatch fans out one concurrent generation call per respondent and
// waits for the full result set. Failures and timeouts are isolated per
// call: they are logged and omitted, and never cancel or block the
// sibling calls. Successes keep dispatch-index order regardless of
// completion order.
func (e *Engine) dispatch(ctx context.Context, roomID int64, prompt string, respondents []models.Persona, history string) {
	log.Printf("[Orchestrator] Fan-out started room_id=%d respondents=%d", roomID, len(respondents))

	type slot struct {
		content string
		err     error
	}
	slots := make([]slot, len(respondents))

	var wg sync.WaitGroup
	for i, persona := range respondents {
		wg.Add(1)
		go func(i int, persona models.Persona) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.ResponderTimeout)
			defer cancel()
			content, err := e.generator.Generate(callCtx, prompt, persona, history)
			slots[i] = slot{content: content, err: err}
		}(i, persona)
	}
	wg.Wait()

	var successes []fanoutResult
	for i, s := range slots {
		if s.err != nil {
			if errors.Is(s.err, context.DeadlineExceeded) {
				log.Printf("[Orchestrator] Respondent timed out room_id=%d persona_id=%d persona_name=%s",
					roomID, respondents[i].ID, respondents[i].Name)
			} else {
				log.Printf("[Orchestrator] Respondent failed room_id=%d persona_id=%d persona_name=%s err=%v",
					roomID, respondents[i].ID, respondents[i].Name, s.err)
			}
			continue
		}
		successes = append(successes, fanoutResult{persona: respondents[i], content: s.content})
	}

	if len(successes) == 0 {
		// Valid terminal state: nothing to append, no cascade
		log.Printf("[Orchestrator] Fan-out yielded no successes room_id=%d dispatched=%d", roomID, len(respondents))
		return
	}

	e.deliverStaggered(ctx, roomID, successes)
}

// deliverStaggered appends the results one at a time, result i landing
// pacingInterval after result i-1, so the room updates like a live
// conversation even though generation ran concurrently. The pacing
// never reorders two results relative to dispatch-index order.
func (e *Engine) deliverStaggered(ctx context.Context, roomID int64, results []fanoutResult) {
	delivered := 0
	for i, res := range results {
		if i > 0 {
			select {
			case <-ctx.Done():
				log.Printf("[Orchestrator] Delivery cancelled room_id=%d pending=%d", roomID, len(results)-i)
				return
			case <-time.After(e.cfg.PacingInterval):
			}
		}

		personaID := res.persona.ID
		msg, err := e.store.CreateMessage(roomID, models.SenderTypePersona, &personaID, res.persona.Name, res.persona.AvatarURL, res.content)
		if err != nil {
			log.Printf("[Orchestrator] Failed to append persona reply room_id=%d persona_id=%d err=%v", roomID, personaID, err)
			continue
		}
		delivered++
		e.broadcast(roomID, msg)
	}

	log.Printf("[Orchestrator] Staggered delivery completed room_id=%d delivered=%d", roomID, delivered)

	if delivered == 0 {
		return
	}
	e.runCascade(ctx, roomID)
}
