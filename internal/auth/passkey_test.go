package auth

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/propdesk/internal/db"
)

func TestPasskeySaveAndList(t *testing.T) {
	store := testPasskeyStore(t)

	cred := &webauthn.Credential{
		ID:        []byte("test-credential-id"),
		PublicKey: []byte("test-public-key"),
	}

	if err := store.Save("admin@example.com", "My Laptop", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	stored, err := store.ListByEmail("admin@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d credentials, want 1", len(stored))
	}
	if stored[0].Name != "My Laptop" {
		t.Errorf("name = %q, want %q", stored[0].Name, "My Laptop")
	}
	if stored[0].Email != "admin@example.com" {
		t.Errorf("email = %q, want %q", stored[0].Email, "admin@example.com")
	}
	if string(stored[0].Credential.ID) != string(cred.ID) {
		t.Errorf("credential ID mismatch")
	}
}

func TestPasskeyWebAuthnCredentials(t *testing.T) {
	store := testPasskeyStore(t)

	cred1 := &webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("key-1")}
	cred2 := &webauthn.Credential{ID: []byte("cred-2"), PublicKey: []byte("key-2")}

	if err := store.Save("admin@example.com", "Key 1", cred1); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if err := store.Save("admin@example.com", "Key 2", cred2); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	pu, err := store.PasskeyUser(&User{ID: "admin-1", Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("passkey user: %v", err)
	}
	creds := pu.WebAuthnCredentials()
	if len(creds) != 2 {
		t.Fatalf("got %d credentials, want 2", len(creds))
	}
}

func TestPasskeyListEmpty(t *testing.T) {
	store := testPasskeyStore(t)

	stored, err := store.ListByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("got %d credentials, want 0", len(stored))
	}
}

func TestPasskeyDelete(t *testing.T) {
	store := testPasskeyStore(t)

	cred := &webauthn.Credential{
		ID:        []byte("delete-me"),
		PublicKey: []byte("key"),
	}

	if err := store.Save("admin@example.com", "To Delete", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	id := fmt.Sprintf("%x", cred.ID)
	if err := store.Delete(id, "admin@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, err := store.ListByEmail("admin@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("got %d credentials after delete, want 0", len(stored))
	}
}

func TestPasskeyDeleteWrongEmail(t *testing.T) {
	store := testPasskeyStore(t)

	cred := &webauthn.Credential{
		ID:        []byte("someone-elses"),
		PublicKey: []byte("key"),
	}

	if err := store.Save("admin@example.com", "Admin Key", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	id := fmt.Sprintf("%x", cred.ID)
	if err := store.Delete(id, "intruder@example.com"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("err = %v, want ErrCredentialNotFound", err)
	}
}

func TestPasskeyUser(t *testing.T) {
	cred := webauthn.Credential{ID: []byte("test"), PublicKey: []byte("key")}
	u := &User{ID: "user-1", Email: "owner@example.com", Role: "OWNER"}
	pu := NewPasskeyUser(u, []webauthn.Credential{cred})

	if pu.WebAuthnName() != "owner@example.com" {
		t.Errorf("name = %q", pu.WebAuthnName())
	}
	if pu.WebAuthnDisplayName() != "owner@example.com" {
		t.Errorf("display name = %q, want email fallback", pu.WebAuthnDisplayName())
	}
	if string(pu.WebAuthnID()) != "user-1" {
		t.Errorf("ID = %q, want user ID", pu.WebAuthnID())
	}
	if len(pu.WebAuthnCredentials()) != 1 {
		t.Errorf("credentials = %d, want 1", len(pu.WebAuthnCredentials()))
	}

	u.Name = "Olivia"
	if pu.WebAuthnDisplayName() != "Olivia" {
		t.Errorf("display name = %q, want name", pu.WebAuthnDisplayName())
	}
}

func TestPasskeyStoreUser(t *testing.T) {
	store := testPasskeyStore(t)

	cred := &webauthn.Credential{ID: []byte("cred-x"), PublicKey: []byte("key")}
	if err := store.Save("owner@example.com", "Phone", cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	pu, err := store.PasskeyUser(&User{ID: "u1", Email: "owner@example.com"})
	if err != nil {
		t.Fatalf("passkey user: %v", err)
	}
	if len(pu.WebAuthnCredentials()) != 1 {
		t.Errorf("credentials = %d, want 1", len(pu.WebAuthnCredentials()))
	}
	if pu.User().ID != "u1" {
		t.Errorf("user = %q", pu.User().ID)
	}
}

func TestNewWebAuthnRequiresRelyingParty(t *testing.T) {
	if _, err := NewWebAuthn(Config{}); err == nil {
		t.Fatal("expected error without RP id")
	}
	wan, err := NewWebAuthn(Config{RPID: "localhost", RPOrigins: []string{"http://localhost:8080"}})
	if err != nil {
		t.Fatalf("new webauthn: %v", err)
	}
	if wan == nil {
		t.Fatal("expected relying party")
	}
}

func testPasskeyStore(t *testing.T) *PasskeyStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewPasskeyStore(d)
}
