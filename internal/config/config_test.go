package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points HOME at an empty directory so no user config is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaultsDevMode(t *testing.T) {
	home := isolate(t)
	t.Setenv("PD_DEV_MODE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.DatabasePath != filepath.Join(home, ".propdesk", "propdesk.db") {
		t.Errorf("database path = %q", cfg.DatabasePath)
	}
	if cfg.FilesDir != filepath.Join(home, ".propdesk", "files") {
		t.Errorf("files dir = %q", cfg.FilesDir)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Error("dev mode should generate a jwt secret")
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Errorf("access ttl = %v", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RPID != "localhost" {
		t.Errorf("rp id = %q, want host of base url", cfg.Auth.RPID)
	}
	if cfg.Jobs.RequestExpiry != "@every 5m" {
		t.Errorf("expiry schedule = %q", cfg.Jobs.RequestExpiry)
	}
	if cfg.Jobs.UploadCleanup != "@hourly" {
		t.Errorf("upload cleanup schedule = %q", cfg.Jobs.UploadCleanup)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("addr = %q", cfg.Addr())
	}
}

func TestLoadRequiresSecretOutsideDevMode(t *testing.T) {
	isolate(t)

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("err = %v, want jwt secret error", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PD_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("PD_SERVER_PORT", "9090")
	t.Setenv("PD_SERVER_BASE_URL", "https://desk.example.com/")
	t.Setenv("PD_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("PD_AUTH_ACCESS_TTL", "5m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.BaseURL != "https://desk.example.com" {
		t.Errorf("base url = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if len(cfg.CORS) != 2 || cfg.CORS[1] != "https://b.example.com" {
		t.Errorf("cors = %v", cfg.CORS)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute {
		t.Errorf("access ttl = %v", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RPID != "desk.example.com" || cfg.Auth.RPOrigins[0] != "https://desk.example.com" {
		t.Errorf("relying party = %q %v", cfg.Auth.RPID, cfg.Auth.RPOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pd.yaml")
	content := `
server:
  port: 7000
auth:
  jwt_secret: from-file
  admin_email: admin@example.com
cors:
  allowed_origins:
    - https://dash.example.com
smtp:
  host: smtp.example.com
  from: desk@example.com
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7000 || cfg.Auth.JWTSecret != "from-file" || cfg.Auth.AdminEmail != "admin@example.com" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.CORS) != 1 || cfg.CORS[0] != "https://dash.example.com" {
		t.Errorf("cors = %v", cfg.CORS)
	}
	if !cfg.SMTP.IsConfigured() {
		t.Error("smtp should be configured from file")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad ttl", "PD_AUTH_REFRESH_TTL", "forever"},
		{"bad port", "PD_SERVER_PORT", "70000"},
		{"relative base url", "PD_SERVER_BASE_URL", "desk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv("PD_AUTH_JWT_SECRET", "x")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("PD_AUTH_JWT_SECRET", "x")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
