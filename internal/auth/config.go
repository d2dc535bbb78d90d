// Package auth provides users with roles, password and passkey login, JWT access
// tokens with rotating refresh tokens, and the bearer middleware guarding the API.
package auth

import "time"

// Config holds authentication configuration.
type Config struct {
	JWTSecret     string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminEmail    string
	AdminPassword string

	// Passkey relying party.
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "propdesk"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.RPDisplayName == "" {
		c.RPDisplayName = "propdesk"
	}
	return c
}
