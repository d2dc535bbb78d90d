package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// handleListProjects handles GET /projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.units.ListProjects()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*unit.Project{}
	}
	apiJSON(w, projects, http.StatusOK)
}

// handleCreateProject handles POST /projects.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in unit.ProjectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.units.CreateProject(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, p, http.StatusCreated)
}

// handleGetProject handles GET /projects/{id}.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.units.GetProject(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// handleUpdateProject handles PATCH /projects/{id}.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in unit.ProjectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.units.UpdateProject(mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// handleDeleteProject handles DELETE /projects/{id}.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.units.DeleteProject(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	apiMessage(w, "project deleted")
}

// handleListUnits handles GET /units?projectId=&ownerId=. Owners only see
// their own units.
func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	q := r.URL.Query()
	opts := unit.ListOptions{ProjectID: q.Get("projectId"), OwnerID: q.Get("ownerId")}
	if !actor.Role.IsAdmin() {
		opts.OwnerID = actor.ID
	}

	units, err := s.units.List(opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if units == nil {
		units = []*unit.Unit{}
	}
	apiJSON(w, units, http.StatusOK)
}

// handleCreateUnit handles POST /units.
func (s *Server) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	var in unit.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.checkOwner(in.OwnerID); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.units.Create(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, u, http.StatusCreated)
}

// handleGetUnit handles GET /units/{id}.
func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	u, err := s.units.GetByID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !actor.CanSee(u.Owner()) {
		writeError(w, r, fmt.Errorf("unit %s: %w", u.ID, workflow.ErrForbidden))
		return
	}
	apiJSON(w, u, http.StatusOK)
}

// handleUpdateUnit handles PATCH /units/{id}.
func (s *Server) handleUpdateUnit(w http.ResponseWriter, r *http.Request) {
	var in unit.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.checkOwner(in.OwnerID); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.units.Update(mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, u, http.StatusOK)
}

// handleDeleteUnit handles DELETE /units/{id}.
func (s *Server) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := s.units.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	apiMessage(w, "unit deleted")
}

// checkOwner rejects owner assignments to unknown users or to admins.
func (s *Server) checkOwner(ownerID *string) error {
	if ownerID == nil || *ownerID == "" {
		return nil
	}
	u, err := s.auth.Users().GetByID(*ownerID)
	if err != nil {
		return validate.Field("ownerId", "unknown user")
	}
	if u.Role != workflow.RoleOwner {
		return validate.Field("ownerId", "must be a user with the OWNER role")
	}
	return nil
}
