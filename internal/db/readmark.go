package db

import (
	"database/sql"
	"log"
)

// SetLastRead records the timestamp at which a user last viewed a room.
// The mark only moves forward: a write older than the stored mark is a
// no-op, so a stale caller can never resurrect cleared unread state.
func (d *DB) SetLastRead(userID string, roomID int64, at float64) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(`
			INSERT INTO read_marks (user_id, room_id, last_read) VALUES (?, ?, ?)
			ON CONFLICT(user_id, room_id) DO UPDATE SET last_read = excluded.last_read
			WHERE excluded.last_read > read_marks.last_read
		`, userID, roomID, at)
		if err != nil {
			log.Printf("[DB] SetLastRead failed user_id=%s room_id=%d err=%v", userID, roomID, err)
			return err
		}
		return nil
	})
}

// GetLastRead returns the user's read mark for a room, or 0 if the user
// has never viewed it
func (d *DB) GetLastRead(userID string, roomID int64) (float64, error) {
	return WithLockResult(d, func() (float64, error) {
		var lastRead float64
		err := d.db.QueryRow(
			`SELECT last_read FROM read_marks WHERE user_id = ? AND room_id = ?`,
			userID, roomID,
		).Scan(&lastRead)
		if err == sql.ErrNoRows {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return lastRead, nil
	})
}

// CountUnread derives the unread count for a room: messages authored by
// a non-user sender with a timestamp past the read mark. Always computed
// from messages + read_marks, never cached as a separate counter.
func (d *DB) CountUnread(userID string, roomID int64) (int, error) {
	return WithLockResult(d, func() (int, error) {
		var count int
		err := d.db.QueryRow(`
			SELECT COUNT(*) FROM messages
			WHERE room_id = ?
			AND sender_type != 'user'
			AND timestamp > COALESCE(
				(SELECT last_read FROM read_marks WHERE user_id = ? AND room_id = ?), 0)
		`, roomID, userID, roomID).Scan(&count)
		if err != nil {
			return 0, err
		}
		return count, nil
	})
}
