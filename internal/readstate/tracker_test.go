package readstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type key struct {
	userID string
	roomID int64
}

// memStore is an in-memory read-mark store with a bolted-on message log
// so unread derivation can be exercised without a real database
type memStore struct {
	marks    map[key]float64
	messages map[int64][]float64
	setErr   error
}

func newMemStore() *memStore {
	return &memStore{
		marks:    map[key]float64{},
		messages: map[int64][]float64{},
	}
}

func (m *memStore) SetLastRead(userID string, roomID int64, at float64) error {
	if m.setErr != nil {
		return m.setErr
	}
	k := key{userID, roomID}
	if at > m.marks[k] {
		m.marks[k] = at
	}
	return nil
}

func (m *memStore) GetLastRead(userID string, roomID int64) (float64, error) {
	return m.marks[key{userID, roomID}], nil
}

func (m *memStore) CountUnread(userID string, roomID int64) (int, error) {
	mark := m.marks[key{userID, roomID}]
	count := 0
	for _, ts := range m.messages[roomID] {
		if ts > mark {
			count++
		}
	}
	return count, nil
}

func (m *memStore) addPersonaMessage(roomID int64, at float64) {
	m.messages[roomID] = append(m.messages[roomID], at)
}

func TestMarkRead_AdvancesMark(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	require.NoError(t, tracker.MarkRead("local", 1, 100))

	lastRead, err := tracker.LastRead("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, lastRead)
}

func TestMarkRead_StaleWriteIgnored(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	require.NoError(t, tracker.MarkRead("local", 1, 100))
	require.NoError(t, tracker.MarkRead("local", 1, 40))

	lastRead, err := tracker.LastRead("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, lastRead)
}

func TestMarkRead_PropagatesError(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("storage down")
	tracker := NewTracker(store)

	assert.Error(t, tracker.MarkRead("local", 1, 100))
}

func TestUnreadCount_Derivation(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	store.addPersonaMessage(1, 10)
	store.addPersonaMessage(1, 20)
	store.addPersonaMessage(1, 30)

	count, err := tracker.UnreadCount("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, tracker.MarkRead("local", 1, 20))

	count, err = tracker.UnreadCount("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUnreadCount_OpenAbsorbDismissRace(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	// Room opens: two replies already landed, mark placed at open time
	store.addPersonaMessage(1, 10)
	store.addPersonaMessage(1, 20)
	require.NoError(t, tracker.MarkRead("local", 1, 25))

	// A staggered delivery lands after the open mark
	store.addPersonaMessage(1, 30)

	count, err := tracker.UnreadCount("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The absorb re-mark sweeps up the late delivery
	require.NoError(t, tracker.MarkRead("local", 1, 35))

	count, err = tracker.UnreadCount("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Dismissal re-marks once more; an even later delivery stays unread
	store.addPersonaMessage(1, 50)
	require.NoError(t, tracker.MarkRead("local", 1, 45))

	count, err = tracker.UnreadCount("local", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
