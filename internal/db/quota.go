package db

import (
	"database/sql"
	"log"
	"time"

	"companion-chat/internal/models"
)

// GetQuotaState retrieves a user's quota counters. A user with no row
// yet gets a zero state with an expired window.
func (d *DB) GetQuotaState(userID string) (*models.QuotaState, error) {
	return WithLockResult(d, func() (*models.QuotaState, error) {
		var state models.QuotaState
		var windowReset int64
		err := d.db.QueryRow(
			`SELECT user_id, count, bonus, window_reset FROM quota_states WHERE user_id = ?`,
			userID,
		).Scan(&state.UserID, &state.Count, &state.Bonus, &windowReset)
		if err == sql.ErrNoRows {
			return &models.QuotaState{UserID: userID}, nil
		}
		if err != nil {
			return nil, err
		}
		state.WindowReset = time.Unix(windowReset, 0)
		return &state, nil
	})
}

// PutQuotaState upserts a user's quota counters
func (d *DB) PutQuotaState(state *models.QuotaState) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(`
			INSERT INTO quota_states (user_id, count, bonus, window_reset) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				count = excluded.count,
				bonus = excluded.bonus,
				window_reset = excluded.window_reset
		`, state.UserID, state.Count, state.Bonus, state.WindowReset.Unix())
		if err != nil {
			log.Printf("[DB] PutQuotaState failed user_id=%s err=%v", state.UserID, err)
		}
		return err
	})
}

// InsertQuotaGrant records a bonus grant in the ledger
func (d *DB) InsertQuotaGrant(id, userID string, amount int) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(
			`INSERT INTO quota_grants (id, user_id, amount) VALUES (?, ?, ?)`,
			id, userID, amount,
		)
		if err != nil {
			log.Printf("[DB] InsertQuotaGrant failed grant_id=%s user_id=%s err=%v", id, userID, err)
		}
		return err
	})
}
