package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/evcraddock/propdesk/internal/workflow"
)

// ErrInvalidToken is returned for malformed, expired, revoked or unknown tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims. Subject is the user ID.
type Claims struct {
	Email string        `json:"email"`
	Role  workflow.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the caller described by the claims.
func (c *Claims) Actor() workflow.Actor {
	return workflow.Actor{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an access token issuer.
func NewIssuer(secret, name string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), name: name, ttl: ttl, now: time.Now}
}

// Issue signs an access token for u and returns it with its expiry.
func (i *Issuer) Issue(u *User) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies an access token and returns its claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.name), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if _, err := workflow.ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
