package db

import (
	"database/sql"
	"log"
	"time"

	"companion-chat/internal/models"
)

// nowUnixSeconds returns the current time as float seconds since epoch
func nowUnixSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// CreateMessage appends a message to a room's log. The timestamp is
// clamped so it never moves backwards within the room, and the room's
// last-message cache is refreshed in the same locked section. A failed
// insert leaves the cache untouched.
func (d *DB) CreateMessage(roomID int64, senderType models.SenderType, senderID *int64, senderName, senderAvatar, content string) (*models.Message, error) {
	return WithLockResult(d, func() (*models.Message, error) {
		var senderIDLog any = "nil"
		if senderID != nil {
			senderIDLog = *senderID
		}
		log.Printf("[DB] CreateMessage started room_id=%d sender_type=%s sender_id=%v", roomID, senderType, senderIDLog)

		// Clamp against the room's latest timestamp so per-room order
		// is non-decreasing even if the clock steps backwards
		var lastTimestamp sql.NullFloat64
		err := d.db.QueryRow(
			`SELECT MAX(timestamp) FROM messages WHERE room_id = ?`,
			roomID,
		).Scan(&lastTimestamp)
		if err != nil {
			log.Printf("[DB] CreateMessage failed: timestamp query err=%v", err)
			return nil, err
		}

		timestamp := nowUnixSeconds()
		if lastTimestamp.Valid && timestamp < lastTimestamp.Float64 {
			timestamp = lastTimestamp.Float64
		}

		tx, err := d.db.Begin()
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		result, err := tx.Exec(
			`INSERT INTO messages (room_id, sender_type, sender_id, sender_name, sender_avatar, content, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			roomID, string(senderType), senderID, nullableString(senderName), nullableString(senderAvatar), content, timestamp,
		)
		if err != nil {
			log.Printf("[DB] CreateMessage failed: exec error err=%v", err)
			return nil, err
		}

		id, err := result.LastInsertId()
		if err != nil {
			log.Printf("[DB] CreateMessage failed: get last insert id err=%v", err)
			return nil, err
		}

		// Refresh the denormalized last-message cache transactionally
		// with the append
		if _, err := tx.Exec(
			`UPDATE rooms SET last_message_at = ?, last_message_text = ? WHERE id = ?`,
			timestamp, content, roomID,
		); err != nil {
			log.Printf("[DB] CreateMessage failed: cache update err=%v", err)
			return nil, err
		}

		if err := tx.Commit(); err != nil {
			return nil, err
		}

		log.Printf("[DB] CreateMessage completed room_id=%d message_id=%d sender_type=%s", roomID, id, senderType)

		return &models.Message{
			ID:           id,
			RoomID:       roomID,
			SenderType:   senderType,
			SenderID:     senderID,
			SenderName:   senderName,
			SenderAvatar: senderAvatar,
			Content:      content,
			Timestamp:    timestamp,
		}, nil
	})
}

// GetMessages retrieves all messages in a room, ordered by timestamp
// with insertion order breaking ties
func (d *DB) GetMessages(roomID int64) ([]models.Message, error) {
	return WithLockResult(d, func() ([]models.Message, error) {
		rows, err := d.db.Query(
			`SELECT id, room_id, sender_type, sender_id, sender_name, sender_avatar, content, timestamp
			FROM messages WHERE room_id = ? ORDER BY timestamp ASC, id ASC`,
			roomID,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanMessages(rows)
	})
}

// GetRecentMessages retrieves the most recent messages in a room,
// most-recent-first, capped at limit
func (d *DB) GetRecentMessages(roomID int64, limit int) ([]models.Message, error) {
	return WithLockResult(d, func() ([]models.Message, error) {
		rows, err := d.db.Query(
			`SELECT id, room_id, sender_type, sender_id, sender_name, sender_avatar, content, timestamp
			FROM messages WHERE room_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
			roomID, limit,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanMessages(rows)
	})
}

// GetLatestMessage retrieves the newest message in a room.
// Returns sql.ErrNoRows for an empty room.
func (d *DB) GetLatestMessage(roomID int64) (*models.Message, error) {
	return WithLockResult(d, func() (*models.Message, error) {
		row := d.db.QueryRow(
			`SELECT id, room_id, sender_type, sender_id, sender_name, sender_avatar, content, timestamp
			FROM messages WHERE room_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`,
			roomID,
		)

		msg, err := scanMessageRow(row)
		if err != nil {
			return nil, err
		}
		return msg, nil
	})
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var senderID sql.NullInt64
		var senderName, senderAvatar sql.NullString
		var senderType string
		if err := rows.Scan(&msg.ID, &msg.RoomID, &senderType, &senderID, &senderName, &senderAvatar, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.SenderType = models.SenderType(senderType)
		if senderID.Valid {
			id := senderID.Int64
			msg.SenderID = &id
		}
		if senderName.Valid {
			msg.SenderName = senderName.String
		}
		if senderAvatar.Valid {
			msg.SenderAvatar = senderAvatar.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessageRow(row *sql.Row) (*models.Message, error) {
	var msg models.Message
	var senderID sql.NullInt64
	var senderName, senderAvatar sql.NullString
	var senderType string
	if err := row.Scan(&msg.ID, &msg.RoomID, &senderType, &senderID, &senderName, &senderAvatar, &msg.Content, &msg.Timestamp); err != nil {
		return nil, err
	}
	msg.SenderType = models.SenderType(senderType)
	if senderID.Valid {
		id := senderID.Int64
		msg.SenderID = &id
	}
	if senderName.Valid {
		msg.SenderName = senderName.String
	}
	if senderAvatar.Valid {
		msg.SenderAvatar = senderAvatar.String
	}
	return &msg, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
