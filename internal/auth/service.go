package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evcraddock/propdesk/internal/workflow"
)

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         *User     `json:"user"`
}

// Service issues and verifies credentials.
type Service struct {
	users   *UserStore
	refresh *RefreshStore
	issuer  *Issuer
}

// NewService creates an auth service.
func NewService(users *UserStore, refresh *RefreshStore, issuer *Issuer) *Service {
	return &Service{users: users, refresh: refresh, issuer: issuer}
}

// NewFromConfig builds a Service with a refresh store on the same database as users.
func NewFromConfig(users *UserStore, cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return NewService(
		users,
		NewRefreshStore(users.db, cfg.RefreshTTL),
		NewIssuer(cfg.JWTSecret, cfg.Issuer, cfg.AccessTTL),
	), nil
}

// Users returns the user store.
func (s *Service) Users() *UserStore { return s.users }

// Refreshes returns the refresh token store.
func (s *Service) Refreshes() *RefreshStore { return s.refresh }

// Login checks a password and issues a token pair.
func (s *Service) Login(email, password string) (*TokenPair, error) {
	u, err := s.users.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	slog.Info("login", "user", u.ID, "role", u.Role)
	return s.IssueFor(u)
}

// IssueFor creates a fresh token pair for an already authenticated user.
func (s *Service) IssueFor(u *User) (*TokenPair, error) {
	access, expires, err := s.issuer.Issue(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.refresh.Create(u.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expires, User: u}, nil
}

// Refresh rotates a refresh token and issues a new pair. The user is reloaded
// so role changes take effect.
func (s *Service) Refresh(raw string) (*TokenPair, error) {
	userID, next, err := s.refresh.Rotate(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	access, expires, err := s.issuer.Issue(u)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: next, ExpiresAt: expires, User: u}, nil
}

// Logout revokes the given refresh token.
func (s *Service) Logout(raw string) error {
	if raw == "" {
		return nil
	}
	return s.refresh.Revoke(raw)
}

// Verify parses an access token into the calling actor.
func (s *Service) Verify(access string) (workflow.Actor, error) {
	claims, err := s.issuer.Parse(access)
	if err != nil {
		return workflow.Actor{}, err
	}
	return claims.Actor(), nil
}

// Me returns the current user record for actor.
func (s *Service) Me(actor workflow.Actor) (*User, error) {
	u, err := s.users.GetByID(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}
