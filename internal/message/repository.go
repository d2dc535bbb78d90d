package message

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository provides CRUD operations for messages.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a message repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, thread_id, author_id, body, created_at, updated_at`

// Add posts a message to a thread.
func (r *Repository) Add(thread Thread, threadID, authorID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO messages (id, thread_type, thread_id, author_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(thread), threadID, authorID, body, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return r.Get(thread, threadID, id)
}

// Get returns one message from a thread.
func (r *Repository) Get(thread Thread, threadID, id string) (*Message, error) {
	var m Message
	err := r.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM messages WHERE id = ? AND thread_type = ? AND thread_id = ?", selectColumns),
		id, string(thread), threadID,
	).Scan(&m.ID, &m.ThreadID, &m.AuthorID, &m.Body, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	return &m, nil
}

// List returns a thread's messages, oldest first.
func (r *Repository) List(thread Thread, threadID string) (messages []*Message, err error) {
	rows, err := r.db.Query(
		fmt.Sprintf("SELECT %s FROM messages WHERE thread_type = ? AND thread_id = ? ORDER BY created_at, id", selectColumns),
		string(thread), threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	messages = []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.AuthorID, &m.Body, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// Edit replaces a message body.
func (r *Repository) Edit(thread Thread, threadID, id, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	result, err := r.db.Exec(
		"UPDATE messages SET body = ?, updated_at = ? WHERE id = ? AND thread_type = ? AND thread_id = ?",
		body, time.Now().UTC(), id, string(thread), threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return r.Get(thread, threadID, id)
}

// Delete removes a message.
func (r *Repository) Delete(thread Thread, threadID, id string) error {
	result, err := r.db.Exec(
		"DELETE FROM messages WHERE id = ? AND thread_type = ? AND thread_id = ?",
		id, string(thread), threadID,
	)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}
