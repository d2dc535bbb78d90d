package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/evcraddock/propdesk/internal/workflow"
)

func testService(t *testing.T) *Service {
	t.Helper()
	users := testUserStore(t)
	svc, err := NewFromConfig(users, Config{JWTSecret: "test-secret"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewFromConfigRequiresSecret(t *testing.T) {
	if _, err := NewFromConfig(testUserStore(t), Config{}); err == nil {
		t.Fatal("expected error without jwt secret")
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	svc := testService(t)
	mustCreate(t, svc.Users(), "admin@example.com", workflow.RoleAdmin, "correct horse")

	pair, err := svc.Login("admin@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}
	if pair.User.Role != workflow.RoleAdmin {
		t.Errorf("user role = %q", pair.User.Role)
	}
	if d := time.Until(pair.ExpiresAt); d > DefaultAccessTTL || d < DefaultAccessTTL-time.Minute {
		t.Errorf("access token expires in %v", d)
	}

	actor, err := svc.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if actor.ID != pair.User.ID || !actor.Role.IsAdmin() {
		t.Errorf("actor = %+v", actor)
	}

	next, err := svc.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token should rotate")
	}
	if _, err := svc.Refresh(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("old refresh token: err = %v, want ErrInvalidToken", err)
	}

	if err := svc.Logout(next.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(next.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh after logout: err = %v, want ErrInvalidToken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := testService(t)
	mustCreate(t, svc.Users(), "admin@example.com", workflow.RoleAdmin, "correct horse")

	if _, err := svc.Login("admin@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	svc := testService(t)
	u := mustCreate(t, svc.Users(), "someone@example.com", workflow.RoleOwner, "password1")

	pair, err := svc.IssueFor(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	admin := workflow.RoleAdmin
	if _, err := svc.Users().Update(u.ID, UserUpdate{Role: &admin}); err != nil {
		t.Fatalf("update role: %v", err)
	}

	next, err := svc.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	actor, err := svc.Verify(next.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !actor.Role.IsAdmin() {
		t.Errorf("role = %q, want ADMIN after refresh", actor.Role)
	}
}

func TestRefreshDeletedUser(t *testing.T) {
	svc := testService(t)
	u := mustCreate(t, svc.Users(), "gone@example.com", workflow.RoleOwner, "")

	pair, err := svc.IssueFor(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Users().Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Refresh(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
