package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evcraddock/propdesk/internal/document"
	"github.com/evcraddock/propdesk/internal/report"
)

// handleListDocuments handles GET /documents?unitId=&category=.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := parsePage(r)
	docs, total, err := s.documents.List(actorOf(r), q.Get("unitId"), document.ListOptions{
		Category: document.Category(q.Get("category")),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*document.Document{}
	}
	apiPage(w, docs, p, total)
}

// handleCreateDocument handles POST /documents for an already uploaded file.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var in document.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.FileKey = report.KeyFromURL(in.FileKey)
	d, err := s.documents.Create(actorOf(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, d, http.StatusCreated)
}

// handleGetDocument handles GET /documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	d, err := s.documents.Get(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiJSON(w, d, http.StatusOK)
}

// handleDeleteDocument handles DELETE /documents/{id}. The stored file is
// removed after the record.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	d, err := s.documents.Get(actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.documents.Delete(actor, d.ID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.files.Delete(d.FileKey); err != nil {
		slog.Warn("removing document file", "id", d.ID, "key", d.FileKey, "error", err)
	}
	apiMessage(w, "document deleted")
}
