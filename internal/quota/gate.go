package quota

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"companion-chat/internal/models"
)

// ErrQuotaExceeded is returned when the user has exhausted the current
// window's sends. Recoverable: wait for the window reset or redeem a
// bonus grant.
var ErrQuotaExceeded = errors.New("message quota exceeded")

// ErrQuotaUnavailable is returned when the quota counter backend cannot
// be reached. The gate fails closed so the quota stays meaningful;
// callers should surface a retry affordance rather than drop the send.
var ErrQuotaUnavailable = errors.New("quota state unavailable")

// Store is the persistence the gate needs for its counters
type Store interface {
	GetQuotaState(userID string) (*models.QuotaState, error)
	PutQuotaState(state *models.QuotaState) error
	InsertQuotaGrant(id, userID string, amount int) error
}

// Gate tracks user-initiated sends per rolling window and rejects
// further sends once count reaches limit + bonus. Bonus grants extend
// the window's allowance without resetting the count.
type Gate struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewGate creates a quota gate with the given per-window send limit
func NewGate(store Store, limit int, window time.Duration) *Gate {
	return &Gate{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock, for tests
func (g *Gate) SetNowFunc(now func() time.Time) {
	g.now = now
}

// TryConsume records one send attempt. Returns whether the send is
// allowed and how many sends remain in the window after it. A backend
// failure denies the send with ErrQuotaUnavailable (fail closed).
func (g *Gate) TryConsume(userID string) (bool, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.loadCurrent(userID)
	if err != nil {
		return false, 0, err
	}

	allowance := g.limit + state.Bonus
	if state.Count >= allowance {
		log.Printf("[Quota] Send denied user_id=%s count=%d allowance=%d", userID, state.Count, allowance)
		return false, 0, nil
	}

	state.Count++
	if err := g.store.PutQuotaState(state); err != nil {
		log.Printf("[Quota] TryConsume failed: put state user_id=%s err=%v", userID, err)
		return false, 0, fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}

	remaining := allowance - state.Count
	log.Printf("[Quota] Send allowed user_id=%s count=%d remaining=%d", userID, state.Count, remaining)
	return true, remaining, nil
}

// GrantBonus adds extra quota for the current window (e.g. after a
// reward event) without resetting the count, and records the grant in
// the ledger.
func (g *Gate) GrantBonus(userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("bonus amount must be positive, got %d", amount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.loadCurrent(userID)
	if err != nil {
		return err
	}

	state.Bonus += amount
	if err := g.store.PutQuotaState(state); err != nil {
		return fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}

	grantID := uuid.NewString()
	if err := g.store.InsertQuotaGrant(grantID, userID, amount); err != nil {
		// The bonus is already applied; the ledger row is auditing only
		log.Printf("[Quota] Warning: failed to record grant grant_id=%s user_id=%s err=%v", grantID, userID, err)
	}

	log.Printf("[Quota] Bonus granted user_id=%s amount=%d bonus=%d grant_id=%s", userID, amount, state.Bonus, grantID)
	return nil
}

// Remaining reports the sends left in the current window and when the
// window resets, without consuming anything.
func (g *Gate) Remaining(userID string) (int, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.loadCurrent(userID)
	if err != nil {
		return 0, time.Time{}, err
	}

	remaining := g.limit + state.Bonus - state.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, state.WindowReset, nil
}

// loadCurrent fetches the state and rolls the window over if it has
// expired, resetting both count and bonus. Caller holds g.mu.
func (g *Gate) loadCurrent(userID string) (*models.QuotaState, error) {
	state, err := g.store.GetQuotaState(userID)
	if err != nil {
		log.Printf("[Quota] Failed to load state user_id=%s err=%v", userID, err)
		return nil, fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}

	now := g.now()
	if !now.Before(state.WindowReset) {
		state.Count = 0
		state.Bonus = 0
		state.WindowReset = now.Add(g.window)
	}

	return state, nil
}
