package db

// Migrate runs all database migrations
func (d *DB) Migrate() error {
	return d.WithLock(func() error {
		// Create personas table
		_, err := d.db.Exec(`
			CREATE TABLE IF NOT EXISTS personas (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				avatar_url TEXT,
				voice TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}

		// Create rooms table with the denormalized last-message cache
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS rooms (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				last_message_at REAL NOT NULL DEFAULT 0,
				last_message_text TEXT NOT NULL DEFAULT ''
			)
		`)
		if err != nil {
			return err
		}

		// Create room_members junction table
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS room_members (
				room_id INTEGER NOT NULL,
				persona_id INTEGER NOT NULL,
				PRIMARY KEY (room_id, persona_id),
				FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE,
				FOREIGN KEY (persona_id) REFERENCES personas(id) ON DELETE CASCADE
			)
		`)
		if err != nil {
			return err
		}

		// Create messages table. timestamp is float seconds since epoch,
		// non-decreasing per room; sender columns snapshot the persona's
		// display name and avatar at append time.
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				room_id INTEGER NOT NULL,
				sender_type TEXT NOT NULL CHECK(sender_type IN ('user', 'persona')),
				sender_id INTEGER,
				sender_name TEXT,
				sender_avatar TEXT,
				content TEXT NOT NULL,
				timestamp REAL NOT NULL,
				FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
			)
		`)
		if err != nil {
			return err
		}

		// Create read_marks table (forward-only watermark per user/room)
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS read_marks (
				user_id TEXT NOT NULL,
				room_id INTEGER NOT NULL,
				last_read REAL NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, room_id),
				FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
			)
		`)
		if err != nil {
			return err
		}

		// Create quota_states table
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS quota_states (
				user_id TEXT PRIMARY KEY,
				count INTEGER NOT NULL DEFAULT 0,
				bonus INTEGER NOT NULL DEFAULT 0,
				window_reset INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			return err
		}

		// Create quota_grants ledger (one row per reward redemption)
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS quota_grants (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				amount INTEGER NOT NULL,
				granted_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}

		// Create indexes for better query performance
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_messages_room_timestamp ON messages(room_id, timestamp)",
			"CREATE INDEX IF NOT EXISTS idx_room_members_room ON room_members(room_id)",
			"CREATE INDEX IF NOT EXISTS idx_room_members_persona ON room_members(persona_id)",
			"CREATE INDEX IF NOT EXISTS idx_quota_grants_user ON quota_grants(user_id)",
		}

		for _, idx := range indexes {
			if _, err := d.db.Exec(idx); err != nil {
				return err
			}
		}

		return nil
	})
}
