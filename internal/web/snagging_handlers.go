package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func snaggingListOptions(r *http.Request) (snagging.ListOptions, pageParams) {
	q := r.URL.Query()
	p := parsePage(r)
	return snagging.ListOptions{
		UnitID: q.Get("unitId"),
		Status: workflow.SnaggingStatus(q.Get("status")),
		Page:   p.Page,
		Limit:  p.Limit,
	}, p
}

func writeSnaggingPage(w http.ResponseWriter, items []*snagging.Snagging, p pageParams, total int) {
	if items == nil {
		items = []*snagging.Snagging{}
	}
	apiPage(w, items, p, total)
}

// handleListSnaggings handles GET /snaggings.
func (s *Server) handleListSnaggings(w http.ResponseWriter, r *http.Request) {
	opts, p := snaggingListOptions(r)
	items, total, err := s.snaggings.List(actorOf(r), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnaggingPage(w, items, p, total)
}

// handleMySnaggings handles GET /snaggings/my.
func (s *Server) handleMySnaggings(w http.ResponseWriter, r *http.Request) {
	opts, p := snaggingListOptions(r)
	items, total, err := s.snaggings.Mine(actorOf(r), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnaggingPage(w, items, p, total)
}

// handleUnitSnaggings handles GET /snaggings/unit/{unitId}.
func (s *Server) handleUnitSnaggings(w http.ResponseWriter, r *http.Request) {
	opts, p := snaggingListOptions(r)
	opts.UnitID = mux.Vars(r)["unitId"]
	items, total, err := s.snaggings.List(actorOf(r), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnaggingPage(w, items, p, total)
}

// handleCreateSnagging handles POST /snaggings.
func (s *Server) handleCreateSnagging(w http.ResponseWriter, r *http.Request) {
	var in snagging.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sn, err := s.snaggings.Create(actorOf(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, sn, http.StatusCreated)
}

// handleGetSnagging handles GET /snaggings/{id}.
func (s *Server) handleGetSnagging(w http.ResponseWriter, r *http.Request) {
	sn, err := s.snaggings.Get(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, sn, http.StatusOK)
}

// handleUpdateSnagging handles PATCH /snaggings/{id}.
func (s *Server) handleUpdateSnagging(w http.ResponseWriter, r *http.Request) {
	var in snagging.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sn, err := s.snaggings.Update(actorOf(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, sn, http.StatusOK)
}

// handleSignSnagging handles PATCH /snaggings/{id}/owner-signature.
func (s *Server) handleSignSnagging(w http.ResponseWriter, r *http.Request) {
	var in snagging.SignatureInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sn, err := s.snaggings.Sign(actorOf(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, sn, http.StatusOK)
}

// handleSnaggingAction handles POST /snaggings/{id}/{action}.
func (s *Server) handleSnaggingAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	actor, id := actorOf(r), vars["id"]

	var (
		sn  *snagging.Snagging
		err error
	)
	switch workflow.Action(vars["action"]) {
	case workflow.ActionSend:
		sn, err = s.snaggings.Send(actor, id)
	case workflow.ActionAccept:
		sn, err = s.snaggings.Accept(actor, id)
	case workflow.ActionCancel:
		sn, err = s.snaggings.Cancel(actor, id)
	case workflow.ActionRegeneratePDF:
		sn, err = s.snaggings.RegeneratePDF(actor, id)
	case workflow.ActionSchedule:
		var in snagging.ScheduleInput
		if err = decodeJSON(r, &in); err == nil {
			sn, err = s.snaggings.Schedule(actor, id, in)
		}
	default:
		apiError(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, sn, http.StatusOK)
}

// handleSnaggingMessages handles GET /snaggings/{id}/messages.
func (s *Server) handleSnaggingMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.snaggings.Messages(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*message.Message{}
	}
	apiJSON(w, msgs, http.StatusOK)
}

// handlePostSnaggingMessage handles POST /snaggings/{id}/messages.
func (s *Server) handlePostSnaggingMessage(w http.ResponseWriter, r *http.Request) {
	var in message.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.snaggings.PostMessage(actorOf(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, m, http.StatusCreated)
}

// handleEditSnaggingMessage handles PATCH /snaggings/{id}/messages/{messageId}.
func (s *Server) handleEditSnaggingMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var in message.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.snaggings.EditMessage(actorOf(r), vars["id"], vars["messageId"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, m, http.StatusOK)
}

// handleDeleteSnaggingMessage handles DELETE /snaggings/{id}/messages/{messageId}.
func (s *Server) handleDeleteSnaggingMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.snaggings.DeleteMessage(actorOf(r), vars["id"], vars["messageId"]); err != nil {
		writeError(w, r, err)
		return
	}
	apiMessage(w, "message deleted")
}
