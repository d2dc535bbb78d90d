package report

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultUploadTTL is how long a presigned upload URL stays usable.
const DefaultUploadTTL = 15 * time.Minute

// ErrUploadToken is returned for unknown, used or expired upload tokens.
var ErrUploadToken = errors.New("upload token invalid or expired")

// Presigned describes a one-shot upload target handed to a client.
type Presigned struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	FileURL   string    `json:"fileUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Uploaded describes a stored file.
type Uploaded struct {
	URL      string `json:"url"`
	FileKey  string `json:"fileKey"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Provider string `json:"provider,omitempty"`
}

// UploadTokens stores hashed one-shot upload tokens in SQLite.
type UploadTokens struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewUploadTokens creates a token store. A zero ttl uses DefaultUploadTTL.
func NewUploadTokens(db *sql.DB, ttl time.Duration) *UploadTokens {
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}
	return &UploadTokens{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Issue reserves key for a single PUT by userID and returns the raw token.
func (u *UploadTokens) Issue(userID, key, mimeType string) (string, time.Time, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("generating upload token: %w", err)
	}
	raw := hex.EncodeToString(b)
	expires := u.now().Add(u.ttl)

	if _, err := u.db.Exec(
		"INSERT INTO upload_tokens (token_hash, file_key, mime_type, user_id, expires_at) VALUES (?, ?, ?, ?, ?)",
		hashUploadToken(raw), key, mimeType, userID, expires,
	); err != nil {
		return "", time.Time{}, fmt.Errorf("storing upload token: %w", err)
	}
	return raw, expires, nil
}

// Consume marks the token used and returns the key it was issued for.
// A token can be consumed once.
func (u *UploadTokens) Consume(raw string) (key, mimeType string, err error) {
	hash := hashUploadToken(raw)

	var expires time.Time
	var used bool
	err = u.db.QueryRow(
		"SELECT file_key, mime_type, expires_at, used FROM upload_tokens WHERE token_hash = ?", hash,
	).Scan(&key, &mimeType, &expires, &used)
	if err == sql.ErrNoRows {
		return "", "", ErrUploadToken
	}
	if err != nil {
		return "", "", fmt.Errorf("querying upload token: %w", err)
	}
	if used || !u.now().Before(expires) {
		return "", "", ErrUploadToken
	}

	result, err := u.db.Exec("UPDATE upload_tokens SET used = 1 WHERE token_hash = ? AND used = 0", hash)
	if err != nil {
		return "", "", fmt.Errorf("consuming upload token: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return "", "", fmt.Errorf("checking affected rows: %w", err)
	} else if n == 0 {
		return "", "", ErrUploadToken
	}
	return key, mimeType, nil
}

// Cleanup deletes used and expired tokens.
func (u *UploadTokens) Cleanup() (int64, error) {
	result, err := u.db.Exec("DELETE FROM upload_tokens WHERE used = 1 OR expires_at <= ?", u.now())
	if err != nil {
		return 0, fmt.Errorf("cleaning upload tokens: %w", err)
	}
	return result.RowsAffected()
}

func hashUploadToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
