package web

import (
	"net/http"
	"testing"

	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func TestOwnerSnaggingPriorityForcedToMedium(t *testing.T) {
	f := testServer(t)

	var sn snagging.Snagging
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/snaggings", f.ownerToken, map[string]interface{}{
		"unitId":   f.unit.ID,
		"title":    "Cracked tile",
		"priority": "URGENT",
		"items":    []map[string]interface{}{{"category": "Floor", "label": "Kitchen tile"}},
	}), http.StatusCreated, &sn)

	if sn.Priority != workflow.PriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", sn.Priority)
	}
	if sn.Status != workflow.SnaggingDraft {
		t.Errorf("status = %s, want DRAFT", sn.Status)
	}
	if sn.CreatedBy.Role != workflow.RoleOwner {
		t.Errorf("createdBy = %+v", sn.CreatedBy)
	}
}

func TestSnaggingLifecycle(t *testing.T) {
	f := testServer(t)

	var sn snagging.Snagging
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/snaggings", f.adminToken, map[string]interface{}{
		"unitId":   f.unit.ID,
		"title":    "Paint",
		"priority": "HIGH",
	}), http.StatusCreated, &sn)
	if sn.Priority != workflow.PriorityHigh {
		t.Errorf("admin priority = %s, want HIGH", sn.Priority)
	}
	path := "/snaggings/" + sn.ID

	decode(t, apiRequest(t, f.srv, http.MethodPatch, path, f.adminToken,
		map[string]string{"title": "Paint, hallway", "priority": "LOW"}), http.StatusOK, &sn)
	if sn.Title != "Paint, hallway" || sn.Priority != workflow.PriorityHigh {
		t.Errorf("after edit: title %q priority %s, want HIGH kept", sn.Title, sn.Priority)
	}

	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/accept", f.ownerToken, nil), http.StatusConflict, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/schedule", f.adminToken,
		map[string]string{"scheduledAt": "2026-11-02T09:00:00Z"}), http.StatusOK, &sn)
	if sn.ScheduledAt == nil {
		t.Error("scheduledAt not set")
	}
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/send", f.adminToken, nil), http.StatusOK, &sn)
	decode(t, apiRequest(t, f.srv, http.MethodPatch, path+"/owner-signature", f.ownerToken,
		map[string]string{"signature": "O. Owner"}), http.StatusOK, &sn)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/accept", f.ownerToken, nil), http.StatusOK, &sn)

	if sn.Status != workflow.SnaggingAccepted || sn.PDFURL == nil {
		t.Fatalf("after accept: status %s pdf %v", sn.Status, sn.PDFURL)
	}
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/cancel", f.adminToken, nil), http.StatusConflict, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/regenerate-pdf", f.ownerToken, nil), http.StatusConflict, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/regenerate-pdf", f.adminToken, nil), http.StatusOK, &sn)
}

func TestSnaggingListsAndMessages(t *testing.T) {
	f := testServer(t)

	var sn snagging.Snagging
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/snaggings", f.ownerToken,
		map[string]string{"unitId": f.unit.ID, "title": "Leak"}), http.StatusCreated, &sn)

	var list []snagging.Snagging
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/snaggings/my", f.ownerToken, nil), http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("owner /my has %d entries, want 1", len(list))
	}
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/snaggings/my", f.adminToken, nil), http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("admin /my has %d entries, want 0", len(list))
	}
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/snaggings/unit/"+f.unit.ID, f.adminToken, nil), http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("unit list has %d entries, want 1", len(list))
	}
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/snaggings/"+sn.ID, f.otherToken, nil), http.StatusForbidden, nil)

	var m message.Message
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/snaggings/"+sn.ID+"/messages", f.ownerToken,
		map[string]string{"body": "Still dripping"}), http.StatusCreated, &m)
	decode(t, apiRequest(t, f.srv, http.MethodPatch, "/snaggings/"+sn.ID+"/messages/"+m.ID, f.ownerToken,
		map[string]string{"body": "Still dripping, worse"}), http.StatusOK, &m)
	if m.Body != "Still dripping, worse" {
		t.Errorf("edited body = %q", m.Body)
	}
	decode(t, apiRequest(t, f.srv, http.MethodPatch, "/snaggings/"+sn.ID+"/messages/"+m.ID, f.adminToken,
		map[string]string{"body": "hijack"}), http.StatusForbidden, nil)
	decode(t, apiRequest(t, f.srv, http.MethodDelete, "/snaggings/"+sn.ID+"/messages/"+m.ID, f.ownerToken, nil), http.StatusOK, nil)

	var msgs []message.Message
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/snaggings/"+sn.ID+"/messages", f.ownerToken, nil), http.StatusOK, &msgs)
	if len(msgs) != 0 {
		t.Errorf("messages after delete = %d", len(msgs))
	}
}
