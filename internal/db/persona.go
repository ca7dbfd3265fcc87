package db

import (
	"database/sql"
	"time"

	"companion-chat/internal/models"
)

// CreatePersona inserts a new persona into the catalog
func (d *DB) CreatePersona(name, avatarURL, voice string) (*models.Persona, error) {
	return WithLockResult(d, func() (*models.Persona, error) {
		result, err := d.db.Exec(
			`INSERT INTO personas (name, avatar_url, voice) VALUES (?, ?, ?)`,
			name, avatarURL, voice,
		)
		if err != nil {
			return nil, err
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}

		return &models.Persona{
			ID:        id,
			Name:      name,
			AvatarURL: avatarURL,
			Voice:     voice,
			CreatedAt: time.Now(),
		}, nil
	})
}

// GetPersona retrieves a persona by ID
func (d *DB) GetPersona(id int64) (*models.Persona, error) {
	return WithLockResult(d, func() (*models.Persona, error) {
		row := d.db.QueryRow(
			`SELECT id, name, avatar_url, voice, created_at FROM personas WHERE id = ?`,
			id,
		)
		return scanPersonaRow(row)
	})
}

// GetAllPersonas retrieves all personas in the catalog
func (d *DB) GetAllPersonas() ([]models.Persona, error) {
	return WithLockResult(d, func() ([]models.Persona, error) {
		rows, err := d.db.Query(
			`SELECT id, name, avatar_url, voice, created_at FROM personas ORDER BY created_at DESC`,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var personas []models.Persona
		for rows.Next() {
			persona, err := scanPersona(rows)
			if err != nil {
				return nil, err
			}
			personas = append(personas, *persona)
		}

		return personas, rows.Err()
	})
}

// UpdatePersona updates an existing persona. Rooms hold persona IDs only,
// so the new voice takes effect in every room without migration.
func (d *DB) UpdatePersona(id int64, name, avatarURL, voice string) (*models.Persona, error) {
	return WithLockResult(d, func() (*models.Persona, error) {
		result, err := d.db.Exec(
			`UPDATE personas SET name = ?, avatar_url = ?, voice = ? WHERE id = ?`,
			name, avatarURL, voice, id,
		)
		if err != nil {
			return nil, err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, sql.ErrNoRows
		}

		row := d.db.QueryRow(
			`SELECT id, name, avatar_url, voice, created_at FROM personas WHERE id = ?`,
			id,
		)
		return scanPersonaRow(row)
	})
}

// DeletePersona deletes a persona by ID
func (d *DB) DeletePersona(id int64) error {
	return d.WithLock(func() error {
		result, err := d.db.Exec(`DELETE FROM personas WHERE id = ?`, id)
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

type personaScanner interface {
	Scan(dest ...any) error
}

func scanPersonaRow(row *sql.Row) (*models.Persona, error) {
	return scanPersona(row)
}

func scanPersona(s personaScanner) (*models.Persona, error) {
	var persona models.Persona
	var avatarURL sql.NullString
	if err := s.Scan(&persona.ID, &persona.Name, &avatarURL, &persona.Voice, &persona.CreatedAt); err != nil {
		return nil, err
	}
	if avatarURL.Valid {
		persona.AvatarURL = avatarURL.String
	}
	return &persona, nil
}
