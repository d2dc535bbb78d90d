// Package db opens the propdesk SQLite store and keeps its schema current.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is where the server keeps its data when none is configured:
// ~/.propdesk/propdesk.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".propdesk", "propdesk.db"), nil
}

// connParams are applied by the driver to every pooled connection. Workflow
// transitions are conditional updates inside a transaction, so transactions
// take the write lock up front and wait for it rather than failing busy.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_foreign_keys": {"on"},
	"_busy_timeout": {"5000"},
	"_txlock":       {"immediate"},
}

// Open opens the store at path, creating its directory and file on first use,
// and migrates the schema.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, closeAfter(db, fmt.Errorf("connecting to %s: %w", path, err))
	}
	if err := migrate(db); err != nil {
		return nil, closeAfter(db, fmt.Errorf("running migrations: %w", err))
	}

	slog.Debug("database ready", "path", path)
	return db, nil
}

// closeAfter closes db following a failed Open and returns err.
func closeAfter(db *sql.DB, err error) error {
	if cerr := db.Close(); cerr != nil {
		return fmt.Errorf("%w (also failed to close: %v)", err, cerr)
	}
	return err
}
