package db

import (
	"database/sql"
	"log"
	"time"

	"companion-chat/internal/models"
)

// CreateRoom creates a new room
func (d *DB) CreateRoom(name string) (*models.Room, error) {
	return WithLockResult(d, func() (*models.Room, error) {
		result, err := d.db.Exec(`INSERT INTO rooms (name) VALUES (?)`, name)
		if err != nil {
			return nil, err
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}

		return &models.Room{
			ID:        id,
			Name:      name,
			CreatedAt: time.Now(),
		}, nil
	})
}

// GetRoom retrieves a room by ID
func (d *DB) GetRoom(id int64) (*models.Room, error) {
	return WithLockResult(d, func() (*models.Room, error) {
		row := d.db.QueryRow(
			`SELECT id, name, created_at, last_message_at, last_message_text FROM rooms WHERE id = ?`,
			id,
		)

		var room models.Room
		err := row.Scan(&room.ID, &room.Name, &room.CreatedAt, &room.LastMessageAt, &room.LastMessageText)
		if err != nil {
			return nil, err
		}

		return &room, nil
	})
}

// GetAllRooms retrieves all rooms, most recently active first
func (d *DB) GetAllRooms() ([]models.Room, error) {
	return WithLockResult(d, func() ([]models.Room, error) {
		rows, err := d.db.Query(
			`SELECT id, name, created_at, last_message_at, last_message_text
			FROM rooms ORDER BY last_message_at DESC, created_at DESC`,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var rooms []models.Room
		for rows.Next() {
			var room models.Room
			if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt, &room.LastMessageAt, &room.LastMessageText); err != nil {
				return nil, err
			}
			rooms = append(rooms, room)
		}

		return rooms, rows.Err()
	})
}

// DeleteRoom deletes a room, its messages, membership and read marks
func (d *DB) DeleteRoom(id int64) error {
	return d.WithLock(func() error {
		result, err := d.db.Exec(`DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rows == 0 {
			return sql.ErrNoRows
		}

		return nil
	})
}

// AddRoomMember adds a persona as a member of a room
func (d *DB) AddRoomMember(roomID, personaID int64) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(
			`INSERT OR IGNORE INTO room_members (room_id, persona_id) VALUES (?, ?)`,
			roomID, personaID,
		)
		return err
	})
}

// RemoveRoomMember removes a persona from a room
func (d *DB) RemoveRoomMember(roomID, personaID int64) error {
	return d.WithLock(func() error {
		result, err := d.db.Exec(
			`DELETE FROM room_members WHERE room_id = ? AND persona_id = ?`,
			roomID, personaID,
		)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rows == 0 {
			return sql.ErrNoRows
		}

		return nil
	})
}

// SetRoomMembers replaces a room's membership with the given persona IDs
func (d *DB) SetRoomMembers(roomID int64, personaIDs []int64) error {
	return d.WithLock(func() error {
		log.Printf("[DB] SetRoomMembers started room_id=%d persona_ids=%v", roomID, personaIDs)

		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM room_members WHERE room_id = ?`, roomID); err != nil {
			return err
		}

		for _, personaID := range personaIDs {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO room_members (room_id, persona_id) VALUES (?, ?)`,
				roomID, personaID,
			); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		log.Printf("[DB] SetRoomMembers completed room_id=%d count=%d", roomID, len(personaIDs))
		return nil
	})
}

// GetRoomMembers retrieves all personas that are members of a room
func (d *DB) GetRoomMembers(roomID int64) ([]models.Persona, error) {
	return WithLockResult(d, func() ([]models.Persona, error) {
		rows, err := d.db.Query(`
			SELECT p.id, p.name, p.avatar_url, p.voice, p.created_at
			FROM personas p
			INNER JOIN room_members rm ON p.id = rm.persona_id
			WHERE rm.room_id = ?
		`, roomID)
		if err != nil {
			log.Printf("[DB] GetRoomMembers failed: query error err=%v", err)
			return nil, err
		}
		defer rows.Close()

		var members []models.Persona
		for rows.Next() {
			persona, err := scanPersona(rows)
			if err != nil {
				log.Printf("[DB] GetRoomMembers failed: scan error err=%v", err)
				return nil, err
			}
			members = append(members, *persona)
		}

		return members, rows.Err()
	})
}
