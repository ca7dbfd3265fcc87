package logic

import (
	"companion-chat/internal/models"
)

// maxRespondentsPerTurn caps how many personas answer a single user
// message. Not everyone replies every time, which is what makes the
// room read like a believable group chat.
const maxRespondentsPerTurn = 2

// TurnSelector chooses which subset of a room's personas respond to a
// fresh user message. It is stateless: every call re-randomizes, so
// there is no fairness guarantee across turns.
type TurnSelector struct {
	rng Rand
}

// NewTurnSelector creates a turn selector using the given randomness source
func NewTurnSelector(rng Rand) *TurnSelector {
	return &TurnSelector{rng: rng}
}

// SelectRespondents picks a random-sized subset of members: a random
// permutation, then a prefix of length k with 1 <= k <= min(2, len).
// Returns a non-empty slice whenever members is non-empty.
func (s *TurnSelector) SelectRespondents(members []models.Persona) []models.Persona {
	if len(members) == 0 {
		return nil
	}

	maxK := maxRespondentsPerTurn
	if len(members) < maxK {
		maxK = len(members)
	}
	k := 1 + s.rng.Intn(maxK)

	perm := s.rng.Perm(len(members))
	respondents := make([]models.Persona, 0, k)
	for _, idx := range perm[:k] {
		respondents = append(respondents, members[idx])
	}

	return respondents
}
