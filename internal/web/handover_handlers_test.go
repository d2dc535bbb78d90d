package web

import (
	"net/http"
	"strings"
	"testing"

	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func createHandover(t *testing.T, f *fixture) handover.Handover {
	t.Helper()
	var h handover.Handover
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/handovers", f.adminToken, map[string]interface{}{
		"unitId":  f.unit.ID,
		"ownerId": f.owner.ID,
		"items": []map[string]string{
			{"category": "Keys", "label": "Front door", "expectedValue": "2"},
		},
	}), http.StatusCreated, &h)
	return h
}

func TestHandoverLifecycle(t *testing.T) {
	f := testServer(t)
	h := createHandover(t, f)
	if h.Status != workflow.HandoverDraft {
		t.Fatalf("status = %s, want DRAFT", h.Status)
	}
	path := "/handovers/" + h.ID

	// Owners have no actions on a draft.
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/send", f.ownerToken, nil), http.StatusConflict, nil)

	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/send", f.adminToken, nil), http.StatusOK, &h)
	if h.Status != workflow.HandoverSentToOwner {
		t.Fatalf("status = %s, want SENT_TO_OWNER", h.Status)
	}

	// Editing is only allowed in DRAFT.
	decode(t, apiRequest(t, f.srv, http.MethodPatch, path, f.adminToken,
		map[string]string{"notes": "late change"}), http.StatusConflict, nil)

	// The deprecated owner-confirm behaves as accept.
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/owner-confirm", f.ownerToken,
		map[string]string{"signature": "O. Owner"}), http.StatusOK, &h)
	if h.Status != workflow.HandoverAccepted {
		t.Fatalf("status = %s, want ACCEPTED", h.Status)
	}
	if h.PDFURL == nil || !strings.HasPrefix(*h.PDFURL, "/files/") {
		t.Fatalf("pdfUrl = %v, want a /files/ URL", h.PDFURL)
	}

	for _, action := range []string{"admin-confirm", "complete", "cancel"} {
		decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/"+action, f.adminToken, nil), http.StatusConflict, nil)
	}

	w := apiRequest(t, f.srv, http.MethodGet, *h.PDFURL, f.ownerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download pdf status = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Error("downloaded file is not a PDF")
	}
}

func TestSecondActiveHandoverConflicts(t *testing.T) {
	f := testServer(t)
	createHandover(t, f)

	resp := decode(t, apiRequest(t, f.srv, http.MethodPost, "/handovers", f.adminToken, map[string]string{
		"unitId": f.unit.ID, "ownerId": f.owner.ID,
	}), http.StatusConflict, nil)
	if !strings.Contains(resp.Error, "active handover") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestHandoverActiveFilter(t *testing.T) {
	f := testServer(t)
	h := createHandover(t, f)

	var list []handover.Handover
	resp := decode(t, apiRequest(t, f.srv, http.MethodGet,
		"/handovers?unitId="+f.unit.ID+"&active=true", f.adminToken, nil), http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != h.ID {
		t.Fatalf("active list = %+v", list)
	}
	if resp.Meta == nil || resp.Meta.Total != 1 || resp.Meta.Page != 1 || resp.Meta.TotalPages != 1 {
		t.Errorf("meta = %+v", resp.Meta)
	}

	decode(t, apiRequest(t, f.srv, http.MethodPost, "/handovers/"+h.ID+"/cancel", f.adminToken,
		map[string]string{"reason": "wrong unit"}), http.StatusOK, nil)
	decode(t, apiRequest(t, f.srv, http.MethodGet,
		"/handovers?unitId="+f.unit.ID+"&active=true", f.adminToken, nil), http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("active list after cancel has %d entries", len(list))
	}

	var msgs []message.Message
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/handovers/"+h.ID+"/messages", f.adminToken, nil), http.StatusOK, &msgs)
	if len(msgs) != 1 || msgs[0].Body != "wrong unit" {
		t.Errorf("messages = %+v, want the cancel reason", msgs)
	}
}

func TestHandoverOwnerIsolation(t *testing.T) {
	f := testServer(t)
	h := createHandover(t, f)

	decode(t, apiRequest(t, f.srv, http.MethodGet, "/handovers/"+h.ID, f.otherToken, nil), http.StatusForbidden, nil)

	var list []handover.Handover
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/handovers", f.otherToken, nil), http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("other owner sees %d handovers", len(list))
	}
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/handovers/missing", f.adminToken, nil), http.StatusNotFound, nil)
}

func TestHandoverValidationErrors(t *testing.T) {
	f := testServer(t)
	resp := decode(t, apiRequest(t, f.srv, http.MethodPost, "/handovers", f.adminToken,
		map[string]string{}), http.StatusBadRequest, nil)
	if resp.Errors["unitId"] == "" || resp.Errors["ownerId"] == "" {
		t.Errorf("errors = %v, want unitId and ownerId", resp.Errors)
	}

	decode(t, apiRequest(t, f.srv, http.MethodPost, "/handovers", f.ownerToken, map[string]string{
		"unitId": f.unit.ID, "ownerId": f.owner.ID,
	}), http.StatusForbidden, nil)
}
