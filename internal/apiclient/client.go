// Package apiclient is a typed client for the propdesk REST API. It unwraps
// the response envelope, refreshes an expired access token once per call, and
// reports every failure to a Notifier exactly once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/evcraddock/propdesk/internal/auth"
)

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 30 * time.Second

// Notifier surfaces a failure message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f.
func (f NotifierFunc) Notify(message string) { f(message) }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNotifier sets where failure messages go.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client is an HTTP client for the propdesk API.
type Client struct {
	baseURL    string
	session    *Session
	httpClient *http.Client
	notifier   Notifier
	refreshes  singleflight.Group
}

// New creates a client. A nil session starts logged out.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession("", "")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Meta is the pagination block of a list response.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
	Meta    *Meta             `json:"meta"`
}

// ListOptions pages and filters a list call.
type ListOptions struct {
	Page   int
	Limit  int
	Filter map[string]string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	for k, v := range o.Filter {
		if v != "" {
			q.Set(k, v)
		}
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

// Pagination describes where a page sits in the full list.
type Pagination struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasMore    bool
}

// Page is one page of a list.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// defaultLimit is assumed when neither the caller nor the server gives one.
const defaultLimit = 20

// getPage fetches a list. A missing or malformed data array is an empty page,
// not an error.
func getPage[T any](ctx context.Context, c *Client, path string, opts ListOptions) (*Page[T], error) {
	if q := opts.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var raw json.RawMessage
	meta, err := c.call(ctx, http.MethodGet, path, "", nil, &raw)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	var items []T
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return &Page[T]{Items: []T{}, Pagination: Pagination{Page: 1, Limit: limit}}, nil
	}

	p := Pagination{Total: len(items), Page: 1, Limit: limit, TotalPages: 1}
	if meta != nil {
		p = Pagination{Total: meta.Total, Page: meta.Page, Limit: meta.Limit, TotalPages: meta.TotalPages}
		if p.Page < 1 {
			p.Page = 1
		}
	}
	p.HasMore = p.Page < p.TotalPages
	return &Page[T]{Items: items, Pagination: p}, nil
}

// getList fetches an unpaged list. Like getPage, a missing or malformed data
// array is an empty list.
func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var raw json.RawMessage
	if _, err := c.call(ctx, http.MethodGet, path, "", nil, &raw); err != nil {
		return nil, err
	}
	var items []T
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return []T{}, nil
	}
	return items, nil
}

// do sends a JSON body (nil for none) and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body, contentType = data, "application/json"
	}
	_, err := c.call(ctx, method, path, contentType, body, out)
	return err
}

// call performs one API call and unwraps the envelope. Failures are reported
// to the notifier here and nowhere else.
func (c *Client) call(ctx context.Context, method, path, contentType string, body []byte, out interface{}) (*Meta, error) {
	resp, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(ctx, &Error{Message: err.Error(), cause: err})
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 400 || (decodeErr == nil && !env.Success) {
		msg := firstNonEmpty(env.Error, env.Message, http.StatusText(resp.StatusCode))
		return nil, c.fail(ctx, &Error{Message: msg, StatusCode: resp.StatusCode, Errors: env.Errors})
	}
	if decodeErr != nil {
		return nil, c.fail(ctx, &Error{
			Message:    fmt.Sprintf("decoding response: %v", decodeErr),
			StatusCode: resp.StatusCode,
			cause:      decodeErr,
		})
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, c.fail(ctx, &Error{
				Message:    fmt.Sprintf("decoding response: %v", err),
				StatusCode: resp.StatusCode,
				cause:      err,
			})
		}
	}
	return env.Meta, nil
}

// noRefresh lists the paths whose 401 means bad credentials rather than an
// expired access token.
var noRefresh = map[string]bool{
	"/auth/login":   true,
	"/auth/refresh": true,
	"/auth/logout":  true,
}

// send performs the HTTP exchange with the bearer token. A 401 triggers one
// refresh and one retry, except on login, refresh and logout.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	resp, err := c.exchange(ctx, method, path, contentType, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || noRefresh[path] {
		return resp, nil
	}
	if _, refresh := c.session.Tokens(); refresh == "" {
		return resp, nil
	}
	_ = resp.Body.Close()

	if err := c.refreshOnce(ctx); err != nil {
		return nil, err
	}
	return c.exchange(ctx, method, path, contentType, body)
}

func (c *Client) exchange(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("creating request: %v", err), cause: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if access, _ := c.session.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error(), cause: err}
	}
	return resp, nil
}

// refreshOnce exchanges the refresh token for a new pair. Concurrent callers
// share one exchange so a rotated token is never presented twice.
func (c *Client) refreshOnce(ctx context.Context) error {
	_, err, _ := c.refreshes.Do("refresh", func() (interface{}, error) {
		_, refresh := c.session.Tokens()
		data, err := json.Marshal(map[string]string{"refreshToken": refresh})
		if err != nil {
			return nil, err
		}
		resp, err := c.exchange(ctx, http.MethodPost, "/auth/refresh", "application/json", data)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		var env envelope
		var pair auth.TokenPair
		if resp.StatusCode >= 400 ||
			json.NewDecoder(resp.Body).Decode(&env) != nil ||
			json.Unmarshal(env.Data, &pair) != nil ||
			pair.AccessToken == "" {
			c.session.Clear()
			return nil, &Error{Message: ErrSessionExpired.Error(), StatusCode: http.StatusUnauthorized, cause: ErrSessionExpired}
		}
		c.session.Set(pair.AccessToken, pair.RefreshToken)
		return nil, nil
	})
	return err
}

// fail reports err once and returns it. Cancelled calls are not reported.
func (c *Client) fail(ctx context.Context, err error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = &Error{Message: err.Error(), cause: err}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.notifier != nil {
		c.notifier.Notify(apiErr.Message)
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "request failed"
}
