package web

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// handleListHandovers handles GET /handovers?unitId=&status=&active=true.
func (s *Server) handleListHandovers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := parsePage(r)
	active, _ := strconv.ParseBool(q.Get("active"))

	items, total, err := s.handovers.List(actorOf(r), handover.ListOptions{
		UnitID:     q.Get("unitId"),
		Status:     workflow.HandoverStatus(q.Get("status")),
		ActiveOnly: active,
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*handover.Handover{}
	}
	apiPage(w, items, p, total)
}

// handleCreateHandover handles POST /handovers.
func (s *Server) handleCreateHandover(w http.ResponseWriter, r *http.Request) {
	var in handover.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.handovers.Create(actorOf(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, h, http.StatusCreated)
}

// handleGetHandover handles GET /handovers/{id}.
func (s *Server) handleGetHandover(w http.ResponseWriter, r *http.Request) {
	h, err := s.handovers.Get(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, h, http.StatusOK)
}

// handleUpdateHandover handles PATCH /handovers/{id}.
func (s *Server) handleUpdateHandover(w http.ResponseWriter, r *http.Request) {
	var in handover.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.handovers.Update(actorOf(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, h, http.StatusOK)
}

// handleHandoverAction handles POST /handovers/{id}/{action}, including the
// deprecated owner-confirm, admin-confirm and complete names.
func (s *Server) handleHandoverAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var in handover.ActionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.handovers.Apply(actorOf(r), vars["id"], workflow.Action(vars["action"]), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, h, http.StatusOK)
}

// handleHandoverMessages handles GET /handovers/{id}/messages.
func (s *Server) handleHandoverMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.handovers.Messages(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*message.Message{}
	}
	apiJSON(w, msgs, http.StatusOK)
}

// handlePostHandoverMessage handles POST /handovers/{id}/messages.
func (s *Server) handlePostHandoverMessage(w http.ResponseWriter, r *http.Request) {
	var in message.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.handovers.PostMessage(actorOf(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, m, http.StatusCreated)
}
