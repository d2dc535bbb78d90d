package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// handleListRequests handles GET /requests?unitId=&type=&status=.
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := parsePage(r)
	items, total, err := s.requests.List(actorOf(r), request.ListOptions{
		UnitID: q.Get("unitId"),
		Type:   workflow.RequestType(q.Get("type")),
		Status: workflow.RequestStatus(q.Get("status")),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*request.Request{}
	}
	apiPage(w, items, p, total)
}

// handleCreateRequest handles POST /requests.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in request.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := s.requests.Create(actorOf(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, req, http.StatusCreated)
}

// handleGetRequest handles GET /requests/{id}.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Get(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, req, http.StatusOK)
}

// handleRequestAction handles POST /requests/{id}/{approve|reject|cancel|revoke|use}.
func (s *Server) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	actor, id := actorOf(r), vars["id"]

	var (
		req *request.Request
		err error
	)
	switch vars["action"] {
	case string(workflow.ActionApprove):
		req, err = s.requests.Approve(actor, id)
	case string(workflow.ActionReject):
		var in request.RejectInput
		if err = decodeJSON(r, &in); err == nil {
			req, err = s.requests.Reject(actor, id, in)
		}
	case string(workflow.ActionCancel):
		req, err = s.requests.Cancel(actor, id)
	case string(workflow.ActionRevoke):
		req, err = s.requests.Revoke(actor, id)
	case "use":
		req, err = s.requests.RecordUse(actor, id)
	default:
		apiError(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, req, http.StatusOK)
}
