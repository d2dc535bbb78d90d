package web

import (
	"net/http"
	"testing"

	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func createGuestVisit(t *testing.T, f *fixture, extra map[string]interface{}) request.Request {
	t.Helper()
	body := map[string]interface{}{
		"type":   "GUEST_VISIT",
		"unitId": f.unit.ID,
		"payload": map[string]string{
			"guestName": "Ana", "visitDate": "2026-11-01",
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	var req request.Request
	decode(t, apiRequest(t, f.srv, http.MethodPost, "/requests", f.ownerToken, body), http.StatusCreated, &req)
	return req
}

func TestRequestApproveRevoke(t *testing.T) {
	f := testServer(t)
	req := createGuestVisit(t, f, nil)
	if req.Status != workflow.RequestSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", req.Status)
	}
	path := "/requests/" + req.ID

	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/approve", f.ownerToken, nil), http.StatusConflict, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/approve", f.adminToken, nil), http.StatusOK, &req)
	if req.Status != workflow.RequestApproved || req.PDFURL == nil {
		t.Fatalf("after approve: status %s pdf %v", req.Status, req.PDFURL)
	}

	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/revoke", f.adminToken, nil), http.StatusOK, &req)
	if req.Status != workflow.RequestCancelled || req.RevokedAt == nil {
		t.Errorf("after revoke: status %s revokedAt %v", req.Status, req.RevokedAt)
	}
}

func TestRequestRejectNeedsReason(t *testing.T) {
	f := testServer(t)
	req := createGuestVisit(t, f, nil)
	path := "/requests/" + req.ID + "/reject"

	resp := decode(t, apiRequest(t, f.srv, http.MethodPost, path, f.adminToken, map[string]string{}), http.StatusBadRequest, nil)
	if resp.Errors["reason"] == "" {
		t.Errorf("errors = %v, want reason", resp.Errors)
	}
	decode(t, apiRequest(t, f.srv, http.MethodPost, path, f.adminToken,
		map[string]string{"reason": "No visits during works"}), http.StatusOK, &req)
	if req.Status != workflow.RequestRejected || req.RejectionReason == nil {
		t.Errorf("after reject: %+v", req)
	}
}

func TestRequestPayloadValidation(t *testing.T) {
	f := testServer(t)
	resp := decode(t, apiRequest(t, f.srv, http.MethodPost, "/requests", f.ownerToken, map[string]interface{}{
		"type":    "WORK_PERMISSION",
		"unitId":  f.unit.ID,
		"payload": map[string]string{"contractorName": "Bob"},
	}), http.StatusBadRequest, nil)
	if resp.Errors["payload.workDescription"] == "" {
		t.Errorf("errors = %v, want payload.workDescription", resp.Errors)
	}

	decode(t, apiRequest(t, f.srv, http.MethodPost, "/requests", f.otherToken, map[string]interface{}{
		"type":    "GUEST_VISIT",
		"unitId":  f.unit.ID,
		"payload": map[string]string{"guestName": "Ana", "visitDate": "2026-11-01"},
	}), http.StatusForbidden, nil)
}

func TestRequestUsesExhaust(t *testing.T) {
	f := testServer(t)
	req := createGuestVisit(t, f, map[string]interface{}{"expiresMode": "USES", "maxUses": 1})
	path := "/requests/" + req.ID

	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/approve", f.adminToken, nil), http.StatusOK, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/use", f.ownerToken, nil), http.StatusForbidden, nil)
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/use", f.adminToken, nil), http.StatusOK, &req)
	if req.UsesCount != 1 || req.Status != workflow.RequestExpired {
		t.Errorf("after use: uses %d status %s", req.UsesCount, req.Status)
	}
	decode(t, apiRequest(t, f.srv, http.MethodPost, path+"/use", f.adminToken, nil), http.StatusConflict, nil)
}

func TestRequestListIsolation(t *testing.T) {
	f := testServer(t)
	createGuestVisit(t, f, nil)

	var list []request.Request
	decode(t, apiRequest(t, f.srv, http.MethodGet, "/requests", f.otherToken, nil), http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("other owner sees %d requests", len(list))
	}
	resp := decode(t, apiRequest(t, f.srv, http.MethodGet, "/requests?type=GUEST_VISIT", f.adminToken, nil), http.StatusOK, &list)
	if len(list) != 1 || resp.Meta.Total != 1 {
		t.Errorf("admin list = %d items, meta %+v", len(list), resp.Meta)
	}
}
