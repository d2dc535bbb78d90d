package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/evcraddock/propdesk/internal/auth"
)

// ceremonyTTL bounds how long a begun passkey ceremony may be finished.
const ceremonyTTL = 5 * time.Minute

type ceremonyStart struct {
	CeremonyID string      `json:"ceremonyId"`
	Options    interface{} `json:"options"`
}

// putCeremony stores session data under a fresh ID and drops stale ceremonies.
func (s *Server) putCeremony(session *webauthn.SessionData) string {
	id := uuid.NewString()
	now := time.Now()
	if session.Expires.IsZero() {
		session.Expires = now.Add(ceremonyTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.ceremony {
		if now.After(v.Expires) {
			delete(s.ceremony, k)
		}
	}
	s.ceremony[id] = session
	return id
}

// takeCeremony removes and returns a live ceremony.
func (s *Server) takeCeremony(id string) (*webauthn.SessionData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.ceremony[id]
	delete(s.ceremony, id)
	if !ok || time.Now().After(session.Expires) {
		return nil, false
	}
	return session, true
}

func (s *Server) passkeysEnabled(w http.ResponseWriter) bool {
	if s.wan == nil {
		apiError(w, "passkeys are not configured", http.StatusNotFound)
		return false
	}
	return true
}

// handlePasskeyRegisterBegin starts registering a passkey for the caller.
func (s *Server) handlePasskeyRegisterBegin(w http.ResponseWriter, r *http.Request) {
	if !s.passkeysEnabled(w) {
		return
	}
	pu, err := s.passkeyUser(actorOf(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Exclude existing credentials so the same key is not registered twice.
	creds := pu.WebAuthnCredentials()
	exclude := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		exclude[i] = c.Descriptor()
	}

	creation, session, err := s.wan.BeginRegistration(pu, webauthn.WithExclusions(exclude))
	if err != nil {
		slog.Error("beginning passkey registration", "error", err)
		apiError(w, "could not start registration", http.StatusInternalServerError)
		return
	}
	apiJSON(w, ceremonyStart{CeremonyID: s.putCeremony(session), Options: creation}, http.StatusOK)
}

// handlePasskeyRegisterFinish completes registration. The browser's attestation
// is the body; the ceremony ID and an optional name are query parameters.
func (s *Server) handlePasskeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	if !s.passkeysEnabled(w) {
		return
	}
	session, ok := s.takeCeremony(r.URL.Query().Get("ceremony"))
	if !ok {
		apiError(w, "no registration in progress", http.StatusBadRequest)
		return
	}

	actor := actorOf(r)
	if string(session.UserID) != actor.ID {
		apiError(w, "registration belongs to another user", http.StatusForbidden)
		return
	}
	pu, err := s.passkeyUser(actor.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	credential, err := s.wan.FinishRegistration(pu, *session, r)
	if err != nil {
		slog.Warn("finishing passkey registration", "user", actor.ID, "error", err)
		apiError(w, "registration failed", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}
	if err := s.passkeys.Save(pu.User().Email, name, credential); err != nil {
		writeError(w, r, err)
		return
	}
	apiMessage(w, "passkey registered")
}

// handlePasskeyLoginBegin starts a discoverable passkey login.
func (s *Server) handlePasskeyLoginBegin(w http.ResponseWriter, _ *http.Request) {
	if !s.passkeysEnabled(w) {
		return
	}
	assertion, session, err := s.wan.BeginDiscoverableLogin()
	if err != nil {
		slog.Error("beginning passkey login", "error", err)
		apiError(w, "could not start login", http.StatusInternalServerError)
		return
	}
	apiJSON(w, ceremonyStart{CeremonyID: s.putCeremony(session), Options: assertion}, http.StatusOK)
}

// handlePasskeyLoginFinish verifies the assertion and issues a token pair.
func (s *Server) handlePasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	if !s.passkeysEnabled(w) {
		return
	}
	session, ok := s.takeCeremony(r.URL.Query().Get("ceremony"))
	if !ok {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}

	var loggedIn *auth.User
	handler := func(_, userHandle []byte) (webauthn.User, error) {
		pu, err := s.passkeyUser(string(userHandle))
		if err != nil {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		loggedIn = pu.User()
		return pu, nil
	}

	if _, _, err := s.wan.FinishPasskeyLogin(handler, *session, r); err != nil || loggedIn == nil {
		slog.Warn("finishing passkey login", "error", err)
		apiError(w, "login failed", http.StatusUnauthorized)
		return
	}

	pair, err := s.auth.IssueFor(loggedIn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("login", "user", loggedIn.ID, "method", "passkey")
	apiJSON(w, pair, http.StatusOK)
}

func (s *Server) passkeyUser(userID string) (*auth.PasskeyUser, error) {
	u, err := s.auth.Users().GetByID(userID)
	if err != nil {
		return nil, err
	}
	return s.passkeys.PasskeyUser(u)
}
