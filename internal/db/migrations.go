package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
// IDs are UUID strings generated by the application.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT     PRIMARY KEY,
		email         TEXT     NOT NULL UNIQUE,
		name          TEXT     NOT NULL DEFAULT '',
		role          TEXT     NOT NULL CHECK (role IN ('ADMIN', 'OWNER')),
		password_hash TEXT     NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         TEXT     PRIMARY KEY,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT     NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked    INTEGER  NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT    PRIMARY KEY,
		email           TEXT    NOT NULL,
		name            TEXT    NOT NULL DEFAULT '',
		credential_json TEXT    NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id         TEXT     PRIMARY KEY,
		name       TEXT     NOT NULL,
		location   TEXT     NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		id         TEXT     PRIMARY KEY,
		project_id TEXT     NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name       TEXT     NOT NULL,
		floor      INTEGER,
		owner_id   TEXT     REFERENCES users(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS handovers (
		id                TEXT     PRIMARY KEY,
		unit_id           TEXT     NOT NULL REFERENCES units(id) ON DELETE CASCADE,
		owner_id          TEXT     NOT NULL REFERENCES users(id),
		status            TEXT     NOT NULL,
		scheduled_at      DATETIME,
		notes             TEXT,
		pdf_url           TEXT,
		owner_accepted_at DATETIME,
		admin_signature   TEXT,
		owner_signature   TEXT,
		created_at        DATETIME NOT NULL,
		updated_at        DATETIME NOT NULL
	)`,
	// At most one non-cancelled handover per unit, even if two creates race.
	`CREATE UNIQUE INDEX IF NOT EXISTS handovers_one_active_per_unit
		ON handovers(unit_id) WHERE status != 'CANCELLED'`,
	`CREATE TABLE IF NOT EXISTS handover_items (
		id             TEXT    PRIMARY KEY,
		handover_id    TEXT    NOT NULL REFERENCES handovers(id) ON DELETE CASCADE,
		category       TEXT    NOT NULL,
		label          TEXT    NOT NULL,
		expected_value TEXT    NOT NULL DEFAULT '',
		notes          TEXT    NOT NULL DEFAULT '',
		status         TEXT    NOT NULL DEFAULT '',
		sort_order     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS snaggings (
		id              TEXT     PRIMARY KEY,
		unit_id         TEXT     NOT NULL REFERENCES units(id) ON DELETE CASCADE,
		owner_id        TEXT,
		created_by_id   TEXT     NOT NULL,
		created_by_role TEXT     NOT NULL,
		title           TEXT     NOT NULL,
		description     TEXT     NOT NULL DEFAULT '',
		status          TEXT     NOT NULL,
		priority        TEXT     NOT NULL CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH', 'URGENT')),
		pdf_url         TEXT,
		accepted_at     DATETIME,
		scheduled_at    DATETIME,
		owner_signature TEXT,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snagging_items (
		id          TEXT    PRIMARY KEY,
		snagging_id TEXT    NOT NULL REFERENCES snaggings(id) ON DELETE CASCADE,
		category    TEXT    NOT NULL,
		label       TEXT    NOT NULL,
		location    TEXT    NOT NULL DEFAULT '',
		severity    TEXT    NOT NULL DEFAULT '',
		notes       TEXT    NOT NULL DEFAULT '',
		images_json TEXT    NOT NULL DEFAULT '[]',
		sort_order  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT     PRIMARY KEY,
		thread_type TEXT     NOT NULL CHECK (thread_type IN ('handover', 'snagging')),
		thread_id   TEXT     NOT NULL,
		author_id   TEXT     NOT NULL,
		body        TEXT     NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_thread ON messages(thread_type, thread_id)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id                     TEXT     PRIMARY KEY,
		type                   TEXT     NOT NULL,
		status                 TEXT     NOT NULL,
		unit_id                TEXT     REFERENCES units(id) ON DELETE CASCADE,
		owner_id               TEXT     NOT NULL,
		transfer_unit_ids_json TEXT     NOT NULL DEFAULT '[]',
		payload_json           TEXT     NOT NULL DEFAULT '{}',
		expires_mode           TEXT     NOT NULL DEFAULT 'UNLIMITED',
		expires_at             DATETIME,
		max_uses               INTEGER,
		uses_count             INTEGER  NOT NULL DEFAULT 0,
		approved_by_admin      TEXT,
		rejected_by_admin      TEXT,
		rejection_reason       TEXT,
		revoked_at             DATETIME,
		pdf_url                TEXT,
		created_at             DATETIME NOT NULL,
		updated_at             DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT     PRIMARY KEY,
		unit_id     TEXT     NOT NULL REFERENCES units(id) ON DELETE CASCADE,
		category    TEXT     NOT NULL CHECK (category IN ('CONTRACT', 'BILL', 'OTHER')),
		title       TEXT     NOT NULL,
		file_key    TEXT     NOT NULL,
		mime_type   TEXT     NOT NULL DEFAULT '',
		size_bytes  INTEGER  NOT NULL DEFAULT 0,
		uploaded_by TEXT     NOT NULL,
		created_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS upload_tokens (
		token_hash TEXT     PRIMARY KEY,
		file_key   TEXT     NOT NULL,
		mime_type  TEXT     NOT NULL DEFAULT '',
		user_id    TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		used       INTEGER  NOT NULL DEFAULT 0
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	// Column additions (idempotent, checks whether the column exists first)
	columnMigrations := []struct {
		table, column, definition string
	}{
		{"units", "area_sqm", "REAL"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return nil // column already exists
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating columns: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
