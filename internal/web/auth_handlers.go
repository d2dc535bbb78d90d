package web

import (
	"net/http"
	"strings"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// actorOf returns the caller stored by auth.RequireBearer. Public routes get
// the zero actor.
func actorOf(r *http.Request) workflow.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}

// handleLogin handles POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, pair, http.StatusOK)
}

// handleRefresh handles POST /auth/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := s.auth.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, pair, http.StatusOK)
}

// handleLogout handles POST /auth/logout. Unknown tokens are not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.auth.Logout(req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	apiMessage(w, "logged out")
}

// handleMe handles GET /auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, u, http.StatusOK)
}
