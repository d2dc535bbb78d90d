package cli

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogoutClearsSession(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var revoked string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/logout" {
			revoked = r.Header.Get("Authorization")
			writeData(w, nil)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	t.Setenv("PD_SERVER_URL", srv.URL)

	cfg := CLIConfig{AccessToken: "access-1", RefreshToken: "refresh-1", ServerURL: "http://myhost:9090"}
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := executeCommand("logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Logged out.") {
		t.Errorf("output = %q", out)
	}
	if revoked != "Bearer access-1" {
		t.Errorf("logout sent Authorization %q", revoked)
	}

	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LoggedIn() {
		t.Error("tokens should be removed after logout")
	}
	if loaded.ServerURL != "http://myhost:9090" {
		t.Errorf("server_url = %q, want preserved after logout", loaded.ServerURL)
	}
}

func TestLogoutWithServerDown(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PD_SERVER_URL", "http://127.0.0.1:1")

	if err := saveConfig(CLIConfig{AccessToken: "access-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := executeCommand("logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "warning: server did not confirm logout") {
		t.Errorf("output = %q", out)
	}
	loaded, _ := loadConfig()
	if loaded.LoggedIn() {
		t.Error("local session should be dropped even when the server is unreachable")
	}
}

func TestLogoutWhenNotLoggedIn(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := executeCommand("logout")
	if err != nil {
		t.Fatalf("logout with no config: %v", err)
	}
	if !strings.Contains(out, "Not logged in.") {
		t.Errorf("output = %q", out)
	}
}
