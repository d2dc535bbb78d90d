package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/document"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// ListProjects returns every project.
func (c *Client) ListProjects(ctx context.Context) ([]unit.Project, error) {
	return getList[unit.Project](ctx, c, "/projects")
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, id string) (*unit.Project, error) {
	var p unit.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject adds a project.
func (c *Client) CreateProject(ctx context.Context, in unit.ProjectInput) (*unit.Project, error) {
	var p unit.Project
	if err := c.do(ctx, http.MethodPost, "/projects", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject renames a project.
func (c *Client) UpdateProject(ctx context.Context, id string, in unit.ProjectInput) (*unit.Project, error) {
	var p unit.Project
	if err := c.do(ctx, http.MethodPatch, "/projects/"+url.PathEscape(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project and its units.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}

// ListUnits returns units visible to the caller, optionally for one project.
func (c *Client) ListUnits(ctx context.Context, projectID string) ([]unit.Unit, error) {
	path := "/units"
	if projectID != "" {
		path += "?projectId=" + url.QueryEscape(projectID)
	}
	return getList[unit.Unit](ctx, c, path)
}

// GetUnit returns one unit.
func (c *Client) GetUnit(ctx context.Context, id string) (*unit.Unit, error) {
	var u unit.Unit
	if err := c.do(ctx, http.MethodGet, "/units/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUnit adds a unit.
func (c *Client) CreateUnit(ctx context.Context, in unit.CreateInput) (*unit.Unit, error) {
	var u unit.Unit
	if err := c.do(ctx, http.MethodPost, "/units", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUnit changes a unit. A non-nil empty OwnerID clears the owner.
func (c *Client) UpdateUnit(ctx context.Context, id string, in unit.UpdateInput) (*unit.Unit, error) {
	var u unit.Unit
	if err := c.do(ctx, http.MethodPatch, "/units/"+url.PathEscape(id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUnit removes a unit.
func (c *Client) DeleteUnit(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/units/"+url.PathEscape(id), nil, nil)
}

// ListDocuments returns a page of documents. Filters: unitId, category.
func (c *Client) ListDocuments(ctx context.Context, opts ListOptions) (*Page[document.Document], error) {
	return getPage[document.Document](ctx, c, "/documents", opts)
}

// GetDocument returns one document.
func (c *Client) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument registers an uploaded file against a unit.
func (c *Client) CreateDocument(ctx context.Context, in document.CreateInput) (*document.Document, error) {
	var d document.Document
	if err := c.do(ctx, http.MethodPost, "/documents", in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes a document and its file.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

// ListUsers returns users, optionally of one role. Admin only.
func (c *Client) ListUsers(ctx context.Context, role workflow.Role) ([]auth.User, error) {
	path := "/users"
	if role != "" {
		path += "?role=" + url.QueryEscape(string(role))
	}
	return getList[auth.User](ctx, c, path)
}

// GetUser returns one user. Admin only.
func (c *Client) GetUser(ctx context.Context, id string) (*auth.User, error) {
	var u auth.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser adds a user. Admin only.
func (c *Client) CreateUser(ctx context.Context, in auth.UserInput) (*auth.User, error) {
	var u auth.User
	if err := c.do(ctx, http.MethodPost, "/users", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser changes a user. Admin only.
func (c *Client) UpdateUser(ctx context.Context, id string, in auth.UserUpdate) (*auth.User, error) {
	var u auth.User
	if err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user. Admin only.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}
