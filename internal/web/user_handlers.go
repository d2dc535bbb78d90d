package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// User routes are mounted behind auth.RequireAdmin.

// handleListUsers handles GET /users?role=.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.Users().List(workflow.Role(r.URL.Query().Get("role")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	apiJSON(w, users, http.StatusOK)
}

// handleCreateUser handles POST /users.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.auth.Users().Create(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, u, http.StatusCreated)
}

// handleGetUser handles GET /users/{id}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Users().GetByID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, u, http.StatusOK)
}

// handleUpdateUser handles PATCH /users/{id}. A role or password change
// revokes the user's refresh tokens.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.UserUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	u, err := s.auth.Users().Update(id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if in.Role != nil || in.Password != nil {
		if err := s.auth.Refreshes().RevokeAll(id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	apiJSON(w, u, http.StatusOK)
}

// handleDeleteUser handles DELETE /users/{id}. Admins cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == actorOf(r).ID {
		writeError(w, r, fmt.Errorf("deleting yourself: %w", workflow.ErrForbidden))
		return
	}
	if err := s.auth.Users().Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	apiMessage(w, "user deleted")
}
