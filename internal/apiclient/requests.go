package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func requestPath(id string) string { return "/requests/" + url.PathEscape(id) }

// CreateRequest submits a request.
func (c *Client) CreateRequest(ctx context.Context, in request.CreateInput) (*request.Request, error) {
	var r request.Request
	if err := c.do(ctx, http.MethodPost, "/requests", in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns a page of requests. Filters: unitId, type, status.
func (c *Client) ListRequests(ctx context.Context, opts ListOptions) (*Page[request.Request], error) {
	return getPage[request.Request](ctx, c, "/requests", opts)
}

// GetRequest returns one request.
func (c *Client) GetRequest(ctx context.Context, id string) (*request.Request, error) {
	var r request.Request
	if err := c.do(ctx, http.MethodGet, requestPath(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ApproveRequest approves a submitted request.
func (c *Client) ApproveRequest(ctx context.Context, id string) (*request.Request, error) {
	return c.requestAction(ctx, id, string(workflow.ActionApprove), nil)
}

// RejectRequest rejects a submitted request with a reason.
func (c *Client) RejectRequest(ctx context.Context, id, reason string) (*request.Request, error) {
	return c.requestAction(ctx, id, string(workflow.ActionReject), request.RejectInput{Reason: reason})
}

// CancelRequest withdraws a submitted request.
func (c *Client) CancelRequest(ctx context.Context, id string) (*request.Request, error) {
	return c.requestAction(ctx, id, string(workflow.ActionCancel), nil)
}

// RevokeRequest withdraws an approved request.
func (c *Client) RevokeRequest(ctx context.Context, id string) (*request.Request, error) {
	return c.requestAction(ctx, id, string(workflow.ActionRevoke), nil)
}

// RecordRequestUse counts one use of an approved request.
func (c *Client) RecordRequestUse(ctx context.Context, id string) (*request.Request, error) {
	return c.requestAction(ctx, id, "use", nil)
}

func (c *Client) requestAction(ctx context.Context, id, action string, in interface{}) (*request.Request, error) {
	var r request.Request
	if err := c.do(ctx, http.MethodPost, requestPath(id)+"/"+action, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
