package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func snaggingPath(id string) string { return "/snaggings/" + url.PathEscape(id) }

// CreateSnagging raises a report.
func (c *Client) CreateSnagging(ctx context.Context, in snagging.CreateInput) (*snagging.Snagging, error) {
	var s snagging.Snagging
	if err := c.do(ctx, http.MethodPost, "/snaggings", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSnaggings returns a page of reports. Filters: unitId, status.
func (c *Client) ListSnaggings(ctx context.Context, opts ListOptions) (*Page[snagging.Snagging], error) {
	return getPage[snagging.Snagging](ctx, c, "/snaggings", opts)
}

// MySnaggings returns the reports addressed to (owner) or raised by (admin) the caller.
func (c *Client) MySnaggings(ctx context.Context, opts ListOptions) (*Page[snagging.Snagging], error) {
	return getPage[snagging.Snagging](ctx, c, "/snaggings/my", opts)
}

// UnitSnaggings returns the reports of one unit.
func (c *Client) UnitSnaggings(ctx context.Context, unitID string, opts ListOptions) (*Page[snagging.Snagging], error) {
	return getPage[snagging.Snagging](ctx, c, "/snaggings/unit/"+url.PathEscape(unitID), opts)
}

// GetSnagging returns one report.
func (c *Client) GetSnagging(ctx context.Context, id string) (*snagging.Snagging, error) {
	var s snagging.Snagging
	if err := c.do(ctx, http.MethodGet, snaggingPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSnagging edits a DRAFT report.
func (c *Client) UpdateSnagging(ctx context.Context, id string, in snagging.UpdateInput) (*snagging.Snagging, error) {
	var s snagging.Snagging
	if err := c.do(ctx, http.MethodPatch, snaggingPath(id), in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SignSnagging stores the owner's signature.
func (c *Client) SignSnagging(ctx context.Context, id, signature string) (*snagging.Snagging, error) {
	var s snagging.Snagging
	in := snagging.SignatureInput{Signature: signature}
	if err := c.do(ctx, http.MethodPatch, snaggingPath(id)+"/owner-signature", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ScheduleSnagging sets the visit time.
func (c *Client) ScheduleSnagging(ctx context.Context, id string, at time.Time) (*snagging.Snagging, error) {
	return c.snaggingAction(ctx, id, workflow.ActionSchedule, snagging.ScheduleInput{ScheduledAt: &at})
}

// SendSnagging hands a draft to the owner.
func (c *Client) SendSnagging(ctx context.Context, id string) (*snagging.Snagging, error) {
	return c.snaggingAction(ctx, id, workflow.ActionSend, nil)
}

// AcceptSnagging records the owner's sign-off.
func (c *Client) AcceptSnagging(ctx context.Context, id string) (*snagging.Snagging, error) {
	return c.snaggingAction(ctx, id, workflow.ActionAccept, nil)
}

// CancelSnagging withdraws a report.
func (c *Client) CancelSnagging(ctx context.Context, id string) (*snagging.Snagging, error) {
	return c.snaggingAction(ctx, id, workflow.ActionCancel, nil)
}

// RegenerateSnaggingPDF re-renders an accepted report's PDF.
func (c *Client) RegenerateSnaggingPDF(ctx context.Context, id string) (*snagging.Snagging, error) {
	return c.snaggingAction(ctx, id, workflow.ActionRegeneratePDF, nil)
}

func (c *Client) snaggingAction(ctx context.Context, id string, action workflow.Action, in interface{}) (*snagging.Snagging, error) {
	var s snagging.Snagging
	if err := c.do(ctx, http.MethodPost, snaggingPath(id)+"/"+string(action), in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SnaggingMessages returns the report's thread.
func (c *Client) SnaggingMessages(ctx context.Context, id string) ([]message.Message, error) {
	return getList[message.Message](ctx, c, snaggingPath(id)+"/messages")
}

// PostSnaggingMessage adds to the report's thread.
func (c *Client) PostSnaggingMessage(ctx context.Context, id, body string) (*message.Message, error) {
	var m message.Message
	if err := c.do(ctx, http.MethodPost, snaggingPath(id)+"/messages", message.Input{Body: body}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EditSnaggingMessage changes one of the caller's messages.
func (c *Client) EditSnaggingMessage(ctx context.Context, id, messageID, body string) (*message.Message, error) {
	var m message.Message
	path := snaggingPath(id) + "/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, http.MethodPatch, path, message.Input{Body: body}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteSnaggingMessage removes a message.
func (c *Client) DeleteSnaggingMessage(ctx context.Context, id, messageID string) error {
	return c.do(ctx, http.MethodDelete, snaggingPath(id)+"/messages/"+url.PathEscape(messageID), nil, nil)
}
