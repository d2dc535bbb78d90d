package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// RefreshStore manages opaque refresh tokens. Only their hashes are stored.
type RefreshStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewRefreshStore creates a refresh token store.
func NewRefreshStore(db *sql.DB, ttl time.Duration) *RefreshStore {
	return &RefreshStore{db: db, ttl: ttl, now: time.Now}
}

// Create issues a refresh token for userID. The raw token is returned once.
func (s *RefreshStore) Create(userID string) (string, error) {
	return s.insert(s.db, userID)
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *RefreshStore) insert(ex execer, userID string) (string, error) {
	raw, err := generateRefreshToken()
	if err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	now := s.now().UTC()
	if _, err := ex.Exec(
		"INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), userID, hashToken(raw), now.Add(s.ttl), now,
	); err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	return raw, nil
}

// Rotate consumes raw and issues a replacement for the same user.
// A token can be rotated at most once.
func (s *RefreshStore) Rotate(raw string) (userID, next string, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id string
	var expiresAt time.Time
	var revoked bool
	err = tx.QueryRow(
		"SELECT id, user_id, expires_at, revoked FROM refresh_tokens WHERE token_hash = ?",
		hashToken(raw),
	).Scan(&id, &userID, &expiresAt, &revoked)
	if err == sql.ErrNoRows {
		return "", "", ErrInvalidToken
	}
	if err != nil {
		return "", "", fmt.Errorf("querying refresh token: %w", err)
	}
	if revoked || !s.now().Before(expiresAt) {
		return "", "", ErrInvalidToken
	}

	result, err := tx.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE id = ? AND revoked = 0", id)
	if err != nil {
		return "", "", fmt.Errorf("revoking refresh token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", "", ErrInvalidToken
	}

	next, err = s.insert(tx, userID)
	if err != nil {
		return "", "", err
	}
	if err = tx.Commit(); err != nil {
		return "", "", fmt.Errorf("committing rotation: %w", err)
	}
	return userID, next, nil
}

// Revoke invalidates a single token. Unknown tokens are ignored.
func (s *RefreshStore) Revoke(raw string) error {
	if _, err := s.db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(raw)); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// RevokeAll invalidates every token of a user.
func (s *RefreshStore) RevokeAll(userID string) error {
	if _, err := s.db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("revoking refresh tokens: %w", err)
	}
	return nil
}

// Cleanup removes expired and revoked tokens and reports how many were deleted.
func (s *RefreshStore) Cleanup() (int64, error) {
	result, err := s.db.Exec(
		"DELETE FROM refresh_tokens WHERE revoked = 1 OR expires_at < ?",
		s.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up refresh tokens: %w", err)
	}
	return result.RowsAffected()
}

func generateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "pd_" + hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
