package responder

import (
	"context"

	"companion-chat/internal/models"
)

// Generator produces a persona's reply to a prompt. Implementations are
// opaque to the orchestrator; the production implementation is a remote
// text-generation call. Generate must honor ctx cancellation so a slow
// call can be abandoned without blocking sibling calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, persona models.Persona, history string) (string, error)
}
