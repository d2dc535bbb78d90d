package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/document"
	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/logging"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/report"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// envelope is the shape of every API response.
type envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Meta    *pageMeta         `json:"meta,omitempty"`
}

type pageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func writeEnvelope(w http.ResponseWriter, env envelope, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// apiJSON writes a successful envelope carrying data.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	writeEnvelope(w, envelope{Success: true, Data: data}, code)
}

// apiMessage writes a successful envelope with only a message.
func apiMessage(w http.ResponseWriter, msg string) {
	writeEnvelope(w, envelope{Success: true, Message: msg}, http.StatusOK)
}

// apiPage writes one page of a list with pagination metadata.
func apiPage(w http.ResponseWriter, items interface{}, p pageParams, total int) {
	limit, _ := db.PageBounds(p.Page, p.Limit)
	page := p.Page
	if page < 1 {
		page = 1
	}
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	writeEnvelope(w, envelope{
		Success: true,
		Data:    items,
		Meta:    &pageMeta{Page: page, Limit: limit, Total: total, TotalPages: pages},
	}, http.StatusOK)
}

// apiError writes a failed envelope.
func apiError(w http.ResponseWriter, msg string, code int) {
	writeEnvelope(w, envelope{Success: false, Error: msg}, code)
}

// errorWriter adapts apiError to the auth middleware.
func errorWriter(w http.ResponseWriter, status int, msg string) {
	apiError(w, msg, status)
}

// writeError maps a domain error onto an HTTP status and writes it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := validate.As(err); ok {
		writeEnvelope(w, envelope{Success: false, Error: "validation failed", Errors: ve.Fields}, http.StatusBadRequest)
		return
	}

	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "request_id", logging.RequestID(r.Context()), "error", err)
		msg = "internal server error"
	}
	apiError(w, msg, code)
}

func statusFor(err error) int {
	switch {
	case isAny(err, handover.ErrNotFound, snagging.ErrNotFound, request.ErrNotFound,
		document.ErrNotFound, message.ErrNotFound, unit.ErrNotFound, unit.ErrProjectNotFound,
		auth.ErrUserNotFound, auth.ErrCredentialNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden
	case isAny(err, workflow.ErrTransitionNotAllowed, handover.ErrActiveHandoverExists,
		handover.ErrConflict, snagging.ErrConflict, request.ErrConflict,
		auth.ErrUserExists, auth.ErrUserInUse):
		return http.StatusConflict
	case isAny(err, handover.ErrNoOwnerAssigned, snagging.ErrNoOwner, report.ErrInvalidKey):
		return http.StatusBadRequest
	case isAny(err, auth.ErrInvalidCredentials, auth.ErrInvalidToken, report.ErrUploadToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return validate.Field("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

type pageParams struct {
	Page  int
	Limit int
}

func parsePage(r *http.Request) pageParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return pageParams{Page: page, Limit: limit}
}
