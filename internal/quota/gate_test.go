package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-chat/internal/models"
)

// memStore is an in-memory quota store for tests
type memStore struct {
	states   map[string]models.QuotaState
	grants   []string
	getErr   error
	putErr   error
	grantErr error
}

func newMemStore() *memStore {
	return &memStore{states: map[string]models.QuotaState{}}
}

func (m *memStore) GetQuotaState(userID string) (*models.QuotaState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	state, ok := m.states[userID]
	if !ok {
		return &models.QuotaState{UserID: userID}, nil
	}
	copied := state
	return &copied, nil
}

func (m *memStore) PutQuotaState(state *models.QuotaState) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.states[state.UserID] = *state
	return nil
}

func (m *memStore) InsertQuotaGrant(id, userID string, amount int) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.grants = append(m.grants, id)
	return nil
}

func TestTryConsume_UnderLimit(t *testing.T) {
	gate := NewGate(newMemStore(), 3, 24*time.Hour)

	allowed, remaining, err := gate.TryConsume("local")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
}

func TestTryConsume_DeniesAtLimit(t *testing.T) {
	gate := NewGate(newMemStore(), 2, 24*time.Hour)

	for range 2 {
		allowed, _, err := gate.TryConsume("local")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, remaining, err := gate.TryConsume("local")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestTryConsume_FailClosedOnLoadError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk on fire")
	gate := NewGate(store, 5, 24*time.Hour)

	allowed, _, err := gate.TryConsume("local")
	assert.False(t, allowed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaUnavailable)
}

func TestTryConsume_FailClosedOnPutError(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("disk on fire")
	gate := NewGate(store, 5, 24*time.Hour)

	allowed, _, err := gate.TryConsume("local")
	assert.False(t, allowed)
	assert.ErrorIs(t, err, ErrQuotaUnavailable)
}

func TestTryConsume_WindowRollover(t *testing.T) {
	store := newMemStore()
	gate := NewGate(store, 1, time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate.SetNowFunc(func() time.Time { return now })

	allowed, _, err := gate.TryConsume("local")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = gate.TryConsume("local")
	require.NoError(t, err)
	require.False(t, allowed)

	// Past the window boundary, the count resets
	now = now.Add(time.Hour + time.Minute)
	allowed, remaining, err := gate.TryConsume("local")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestGrantBonus_ExtendsAllowance(t *testing.T) {
	store := newMemStore()
	gate := NewGate(store, 1, 24*time.Hour)

	allowed, _, err := gate.TryConsume("local")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = gate.TryConsume("local")
	require.NoError(t, err)
	require.False(t, allowed)

	// A bonus re-opens the window without resetting the count
	require.NoError(t, gate.GrantBonus("local", 2))

	allowed, remaining, err := gate.TryConsume("local")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
	assert.Len(t, store.grants, 1)
}

func TestGrantBonus_InvalidAmount(t *testing.T) {
	gate := NewGate(newMemStore(), 1, 24*time.Hour)

	assert.Error(t, gate.GrantBonus("local", 0))
	assert.Error(t, gate.GrantBonus("local", -3))
}

func TestGrantBonus_LedgerFailureDoesNotRevert(t *testing.T) {
	store := newMemStore()
	store.grantErr = errors.New("ledger unavailable")
	gate := NewGate(store, 0, 24*time.Hour)

	require.NoError(t, gate.GrantBonus("local", 1))

	allowed, _, err := gate.TryConsume("local")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGrantBonus_ResetWithWindow(t *testing.T) {
	store := newMemStore()
	gate := NewGate(store, 1, time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate.SetNowFunc(func() time.Time { return now })

	require.NoError(t, gate.GrantBonus("local", 5))

	remaining, _, err := gate.Remaining("local")
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)

	// Bonus does not survive the window rollover
	now = now.Add(2 * time.Hour)
	remaining, reset, err := gate.Remaining("local")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, now.Add(time.Hour), reset)
}

func TestRemaining_DoesNotConsume(t *testing.T) {
	gate := NewGate(newMemStore(), 2, 24*time.Hour)

	for range 5 {
		remaining, _, err := gate.Remaining("local")
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)
	}
}
