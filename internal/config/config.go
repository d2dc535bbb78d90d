// Package config loads the server configuration for pd serve from defaults,
// an optional config.yaml, a .env file and PD_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/email"
)

// Config is the resolved server configuration.
type Config struct {
	Port         int
	BaseURL      string
	DatabasePath string
	FilesDir     string
	DevMode      bool

	Auth  auth.Config
	SMTP  email.SMTPConfig
	CORS  []string
	Jobs  Jobs
	Login LoginLimit
}

// Jobs holds cron schedules for background maintenance.
type Jobs struct {
	RequestExpiry  string
	RefreshCleanup string
	UploadCleanup  string
}

// LoginLimit bounds credential attempts per IP.
type LoginLimit struct {
	PerMinute int
}

// Load reads configuration. configFile may be empty; then ./config.yaml and
// ~/.propdesk/config.yaml are tried and their absence is not an error.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".propdesk"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) error {
	dbPath, err := db.DefaultPath()
	if err != nil {
		return err
	}

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("database.path", dbPath)
	v.SetDefault("files.dir", filepath.Join(filepath.Dir(dbPath), "files"))
	v.SetDefault("dev_mode", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", auth.DefaultAccessTTL.String())
	v.SetDefault("auth.refresh_ttl", auth.DefaultRefreshTTL.String())
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.rp_id", "")
	v.SetDefault("auth.login_per_minute", 10)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.from", "")

	v.SetDefault("cors.allowed_origins", "")

	v.SetDefault("jobs.request_expiry", "@every 5m")
	v.SetDefault("jobs.refresh_cleanup", "@daily")
	v.SetDefault("jobs.upload_cleanup", "@hourly")
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:         v.GetInt("server.port"),
		BaseURL:      strings.TrimRight(v.GetString("server.base_url"), "/"),
		DatabasePath: v.GetString("database.path"),
		FilesDir:     v.GetString("files.dir"),
		DevMode:      v.GetBool("dev_mode"),
		SMTP: email.SMTPConfig{
			Host: v.GetString("smtp.host"),
			Port: v.GetString("smtp.port"),
			User: v.GetString("smtp.user"),
			Pass: v.GetString("smtp.pass"),
			From: v.GetString("smtp.from"),
		},
		CORS: splitList(v.Get("cors.allowed_origins")),
		Jobs: Jobs{
			RequestExpiry:  v.GetString("jobs.request_expiry"),
			RefreshCleanup: v.GetString("jobs.refresh_cleanup"),
			UploadCleanup:  v.GetString("jobs.upload_cleanup"),
		},
		Login: LoginLimit{PerMinute: v.GetInt("auth.login_per_minute")},
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("server.port %d out of range", cfg.Port)
	}

	accessTTL, err := time.ParseDuration(v.GetString("auth.access_ttl"))
	if err != nil {
		return nil, fmt.Errorf("auth.access_ttl: %w", err)
	}
	refreshTTL, err := time.ParseDuration(v.GetString("auth.refresh_ttl"))
	if err != nil {
		return nil, fmt.Errorf("auth.refresh_ttl: %w", err)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Hostname() == "" {
		return nil, fmt.Errorf("server.base_url %q is not an absolute URL", cfg.BaseURL)
	}
	rpID := v.GetString("auth.rp_id")
	if rpID == "" {
		rpID = base.Hostname()
	}

	secret := v.GetString("auth.jwt_secret")
	if secret == "" {
		if !cfg.DevMode {
			return nil, errors.New("auth.jwt_secret (PD_AUTH_JWT_SECRET) is required outside dev mode")
		}
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		slog.Warn("no jwt secret configured; generated an ephemeral one, tokens will not survive a restart")
	}

	cfg.Auth = auth.Config{
		JWTSecret:     secret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		AdminEmail:    v.GetString("auth.admin_email"),
		AdminPassword: v.GetString("auth.admin_password"),
		RPID:          rpID,
		RPOrigins:     []string{cfg.BaseURL},
	}
	return cfg, nil
}

// splitList accepts a YAML list or a comma-separated string.
func splitList(raw interface{}) []string {
	var parts []string
	switch val := raw.(type) {
	case []interface{}:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = val
	case string:
		parts = strings.Split(val, ",")
	}

	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
