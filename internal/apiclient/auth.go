package apiclient

import (
	"context"
	"net/http"

	"github.com/evcraddock/propdesk/internal/auth"
)

// Login exchanges credentials for tokens and stores them in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	var pair auth.TokenPair
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &pair); err != nil {
		return nil, err
	}
	c.session.Set(pair.AccessToken, pair.RefreshToken)
	return &pair, nil
}

// Refresh rotates the session's tokens explicitly.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refreshOnce(ctx)
}

// Logout revokes the refresh token and empties the session. The expiry hook
// is not fired.
func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.session.Tokens()
	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": refresh}, nil)
	c.session.Set("", "")
	return err
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var u auth.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
