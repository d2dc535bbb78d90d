package web

import (
	"net/http"
	"testing"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func TestLoginRefreshLogout(t *testing.T) {
	f := testServer(t)
	if _, err := f.srv.auth.Users().Create(auth.UserInput{
		Email: "pw@example.com", Role: workflow.RoleOwner, Password: "correct horse",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "pw@example.com", "password": "wrong"}), http.StatusUnauthorized, nil)

	var pair auth.TokenPair
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "PW@example.com", "password": "correct horse"}), http.StatusOK, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("login returned empty tokens: %+v", pair)
	}

	var me auth.User
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/auth/me", pair.AccessToken, nil), http.StatusOK, &me)
	if me.Email != "pw@example.com" || me.Role != workflow.RoleOwner {
		t.Errorf("me = %+v", me)
	}

	var next auth.TokenPair
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/refresh", "",
		map[string]string{"refreshToken": pair.RefreshToken}), http.StatusOK, &next)
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The rotated-out token is spent.
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/refresh", "",
		map[string]string{"refreshToken": pair.RefreshToken}), http.StatusUnauthorized, nil)

	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/logout", "",
		map[string]string{"refreshToken": next.RefreshToken}), http.StatusOK, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/refresh", "",
		map[string]string{"refreshToken": next.RefreshToken}), http.StatusUnauthorized, nil)
}

func TestLoginValidation(t *testing.T) {
	f := testServer(t)
	resp := decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "not-an-email"}), http.StatusBadRequest, nil)
	if resp.Errors["email"] == "" || resp.Errors["password"] == "" {
		t.Errorf("errors = %v, want email and password", resp.Errors)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := testServer(t)
	srv, err := NewServer(Options{DB: f.db, Auth: f.srv.auth, Files: f.srv.files, LoginPerMinute: 1})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	body := map[string]string{"email": "nobody@example.com", "password": "whatever"}
	decode(t, apiRequest(t, srv, http.MethodPost, "/auth/login", "", body), http.StatusUnauthorized, nil)
	decode(t, apiRequest(t, srv, http.MethodPost, "/auth/login", "", body), http.StatusTooManyRequests, nil)
}

func TestPasskeysDisabledWithoutRelyingParty(t *testing.T) {
	f := testServer(t)
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/passkey/login/begin", "", nil), http.StatusNotFound, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/auth/passkey/register/begin", f.ownerToken, nil), http.StatusNotFound, nil)
}
