package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func handoverPath(id string) string { return "/handovers/" + url.PathEscape(id) }

// CreateHandover opens a DRAFT handover.
func (c *Client) CreateHandover(ctx context.Context, in handover.CreateInput) (*handover.Handover, error) {
	var h handover.Handover
	if err := c.do(ctx, http.MethodPost, "/handovers", in, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHandovers returns a page of handovers. Filters: unitId, status, active.
func (c *Client) ListHandovers(ctx context.Context, opts ListOptions) (*Page[handover.Handover], error) {
	return getPage[handover.Handover](ctx, c, "/handovers", opts)
}

// GetHandover returns one handover.
func (c *Client) GetHandover(ctx context.Context, id string) (*handover.Handover, error) {
	var h handover.Handover
	if err := c.do(ctx, http.MethodGet, handoverPath(id), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHandover edits a DRAFT handover.
func (c *Client) UpdateHandover(ctx context.Context, id string, in handover.UpdateInput) (*handover.Handover, error) {
	var h handover.Handover
	if err := c.do(ctx, http.MethodPatch, handoverPath(id), in, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// CheckForExistingHandover returns the unit's active handover, or nil when
// there is none.
func (c *Client) CheckForExistingHandover(ctx context.Context, unitID string) (*handover.Handover, error) {
	page, err := c.ListHandovers(ctx, ListOptions{
		Limit:  1,
		Filter: map[string]string{"unitId": unitID, "active": "true"},
	})
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if page.Items[i].IsActive() {
			return &page.Items[i], nil
		}
	}
	return nil, nil
}

// HandoverAction posts a lifecycle action.
func (c *Client) HandoverAction(ctx context.Context, id string, action workflow.Action, in handover.ActionInput) (*handover.Handover, error) {
	var h handover.Handover
	if err := c.do(ctx, http.MethodPost, handoverPath(id)+"/"+string(action), in, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// SendHandover sends a draft to the owner.
func (c *Client) SendHandover(ctx context.Context, id string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionSend, handover.ActionInput{})
}

// AcceptHandover records the owner's acceptance with an optional signature.
func (c *Client) AcceptHandover(ctx context.Context, id string, signature *string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionAccept, handover.ActionInput{Signature: signature})
}

// RequestHandoverChanges returns a sent handover to DRAFT.
func (c *Client) RequestHandoverChanges(ctx context.Context, id, reason string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionRequestChanges, handover.ActionInput{Reason: reason})
}

// CancelHandover cancels a handover.
func (c *Client) CancelHandover(ctx context.Context, id, reason string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionCancel, handover.ActionInput{Reason: reason})
}

// OwnerConfirmHandover is the deprecated name of AcceptHandover.
func (c *Client) OwnerConfirmHandover(ctx context.Context, id string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionOwnerConfirm, handover.ActionInput{})
}

// AdminConfirmHandover calls a deprecated action the server always refuses.
func (c *Client) AdminConfirmHandover(ctx context.Context, id string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionAdminConfirm, handover.ActionInput{})
}

// CompleteHandover calls a deprecated action the server always refuses.
func (c *Client) CompleteHandover(ctx context.Context, id string) (*handover.Handover, error) {
	return c.HandoverAction(ctx, id, workflow.ActionComplete, handover.ActionInput{})
}

// HandoverMessages returns the handover's thread.
func (c *Client) HandoverMessages(ctx context.Context, id string) ([]message.Message, error) {
	return getList[message.Message](ctx, c, handoverPath(id)+"/messages")
}

// PostHandoverMessage adds to the handover's thread.
func (c *Client) PostHandoverMessage(ctx context.Context, id, body string) (*message.Message, error) {
	var m message.Message
	if err := c.do(ctx, http.MethodPost, handoverPath(id)+"/messages", message.Input{Body: body}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
