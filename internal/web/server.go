// Package web provides the propdesk REST API.
package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/evcraddock/propdesk/internal/auth"
	"github.com/evcraddock/propdesk/internal/document"
	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/logging"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/report"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/unit"
)

// Notifier delivers owner notifications. *email.Notifier satisfies it.
type Notifier interface {
	NotifyOwner(ownerID, subject, body string) error
}

// Options configures NewServer.
type Options struct {
	DB    *sql.DB
	Auth  *auth.Service
	Files *report.FileStore
	// WebAuthn enables the passkey routes when non-nil.
	WebAuthn *webauthn.WebAuthn
	// Notifier may be nil, then owners are not notified.
	Notifier Notifier
	// BaseURL prefixes presigned upload URLs.
	BaseURL        string
	CORSOrigins    []string
	LoginPerMinute int
}

// Server is the REST API HTTP server.
type Server struct {
	auth      *auth.Service
	passkeys  *auth.PasskeyStore
	units     *unit.Repository
	handovers *handover.Service
	snaggings *snagging.Service
	requests  *request.Service
	documents *document.Service
	files     *report.FileStore
	uploads   *report.UploadTokens
	baseURL   string

	wan      *webauthn.WebAuthn
	mu       sync.Mutex
	ceremony map[string]*webauthn.SessionData

	router  *mux.Router
	handler http.Handler
}

// NewServer wires the services over opts.DB and builds the route table.
func NewServer(opts Options) (*Server, error) {
	if opts.DB == nil || opts.Auth == nil || opts.Files == nil {
		return nil, errors.New("web: database, auth service and file store are required")
	}

	units := unit.NewRepository(opts.DB)
	messages := message.NewRepository(opts.DB)
	renderer := report.NewRenderer(opts.Files)

	var notifier Notifier = noopNotifier{}
	if opts.Notifier != nil {
		notifier = opts.Notifier
	}

	s := &Server{
		auth:     opts.Auth,
		passkeys: auth.NewPasskeyStore(opts.DB),
		units:    units,
		handovers: handover.NewService(handover.NewRepository(opts.DB), units,
			message.NewService(messages, message.ThreadHandover), renderer, notifier),
		snaggings: snagging.NewService(snagging.NewRepository(opts.DB), units,
			message.NewService(messages, message.ThreadSnagging), renderer, notifier),
		requests:  request.NewService(request.NewRepository(opts.DB), units, renderer, notifier),
		documents: document.NewService(document.NewRepository(opts.DB), units),
		files:     opts.Files,
		uploads:   report.NewUploadTokens(opts.DB, report.DefaultUploadTTL),
		baseURL:   opts.BaseURL,
		wan:       opts.WebAuthn,
		ceremony:  make(map[string]*webauthn.SessionData),
		router:    mux.NewRouter(),
	}

	perMinute := opts.LoginPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	s.routes(auth.NewLimiter(perMinute))

	var h http.Handler = s.router
	h = auth.RequireBearer(s.auth, errorWriter)(h)
	h = logging.RequestLogger(h)
	if len(opts.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", logging.RequestIDHeader},
			ExposedHeaders:   []string{logging.RequestIDHeader},
			AllowCredentials: true,
		}).Handler(h)
	}
	s.handler = h
	return s, nil
}

// Requests exposes the request service to the expiry job.
func (s *Server) Requests() *request.Service { return s.requests }

// Uploads exposes the upload token store to the cleanup job.
func (s *Server) Uploads() *report.UploadTokens { return s.uploads }

func (s *Server) routes(limiter *auth.Limiter) {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apiError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	limited := limiter.Middleware(errorWriter)
	admin := auth.RequireAdmin(errorWriter)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/auth/login", limited(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	r.Handle("/auth/refresh", limited(http.HandlerFunc(s.handleRefresh))).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	r.Handle("/auth/passkey/login/begin", limited(http.HandlerFunc(s.handlePasskeyLoginBegin))).Methods(http.MethodPost)
	r.Handle("/auth/passkey/login/finish", limited(http.HandlerFunc(s.handlePasskeyLoginFinish))).Methods(http.MethodPost)
	r.HandleFunc("/auth/passkey/register/begin", s.handlePasskeyRegisterBegin).Methods(http.MethodPost)
	r.HandleFunc("/auth/passkey/register/finish", s.handlePasskeyRegisterFinish).Methods(http.MethodPost)

	r.HandleFunc("/handovers", s.handleListHandovers).Methods(http.MethodGet)
	r.HandleFunc("/handovers", s.handleCreateHandover).Methods(http.MethodPost)
	r.HandleFunc("/handovers/{id}", s.handleGetHandover).Methods(http.MethodGet)
	r.HandleFunc("/handovers/{id}", s.handleUpdateHandover).Methods(http.MethodPatch)
	r.HandleFunc("/handovers/{id}/messages", s.handleHandoverMessages).Methods(http.MethodGet)
	r.HandleFunc("/handovers/{id}/messages", s.handlePostHandoverMessage).Methods(http.MethodPost)
	r.HandleFunc("/handovers/{id}/{action:send|owner-confirm|request-changes|admin-confirm|complete|cancel|accept}",
		s.handleHandoverAction).Methods(http.MethodPost)

	r.HandleFunc("/snaggings", s.handleListSnaggings).Methods(http.MethodGet)
	r.HandleFunc("/snaggings", s.handleCreateSnagging).Methods(http.MethodPost)
	r.HandleFunc("/snaggings/my", s.handleMySnaggings).Methods(http.MethodGet)
	r.HandleFunc("/snaggings/unit/{unitId}", s.handleUnitSnaggings).Methods(http.MethodGet)
	r.HandleFunc("/snaggings/{id}", s.handleGetSnagging).Methods(http.MethodGet)
	r.HandleFunc("/snaggings/{id}", s.handleUpdateSnagging).Methods(http.MethodPatch)
	r.HandleFunc("/snaggings/{id}/owner-signature", s.handleSignSnagging).Methods(http.MethodPatch)
	r.HandleFunc("/snaggings/{id}/{action:regenerate-pdf|cancel|schedule|send|accept}",
		s.handleSnaggingAction).Methods(http.MethodPost)
	r.HandleFunc("/snaggings/{id}/messages", s.handleSnaggingMessages).Methods(http.MethodGet)
	r.HandleFunc("/snaggings/{id}/messages", s.handlePostSnaggingMessage).Methods(http.MethodPost)
	r.HandleFunc("/snaggings/{id}/messages/{messageId}", s.handleEditSnaggingMessage).Methods(http.MethodPatch)
	r.HandleFunc("/snaggings/{id}/messages/{messageId}", s.handleDeleteSnaggingMessage).Methods(http.MethodDelete)

	r.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests", s.handleCreateRequest).Methods(http.MethodPost)
	r.HandleFunc("/requests/{id}", s.handleGetRequest).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}/{action:approve|reject|cancel|revoke|use}",
		s.handleRequestAction).Methods(http.MethodPost)

	r.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	r.Handle("/projects", admin(http.HandlerFunc(s.handleCreateProject))).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	r.Handle("/projects/{id}", admin(http.HandlerFunc(s.handleUpdateProject))).Methods(http.MethodPatch)
	r.Handle("/projects/{id}", admin(http.HandlerFunc(s.handleDeleteProject))).Methods(http.MethodDelete)

	r.HandleFunc("/units", s.handleListUnits).Methods(http.MethodGet)
	r.Handle("/units", admin(http.HandlerFunc(s.handleCreateUnit))).Methods(http.MethodPost)
	r.HandleFunc("/units/{id}", s.handleGetUnit).Methods(http.MethodGet)
	r.Handle("/units/{id}", admin(http.HandlerFunc(s.handleUpdateUnit))).Methods(http.MethodPatch)
	r.Handle("/units/{id}", admin(http.HandlerFunc(s.handleDeleteUnit))).Methods(http.MethodDelete)

	r.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	r.HandleFunc("/documents", s.handleCreateDocument).Methods(http.MethodPost)
	r.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)

	users := r.PathPrefix("/users").Subrouter()
	users.Use(mux.MiddlewareFunc(admin))
	users.HandleFunc("", s.handleListUsers).Methods(http.MethodGet)
	users.HandleFunc("", s.handleCreateUser).Methods(http.MethodPost)
	users.HandleFunc("/{id}", s.handleGetUser).Methods(http.MethodGet)
	users.HandleFunc("/{id}", s.handleUpdateUser).Methods(http.MethodPatch)
	users.HandleFunc("/{id}", s.handleDeleteUser).Methods(http.MethodDelete)

	r.HandleFunc("/uploads/presign", s.handlePresign).Methods(http.MethodPost)
	r.HandleFunc("/uploads/put/{token}", s.handlePresignedPut).Methods(http.MethodPut)
	r.HandleFunc("/uploads/{provider:cloudinary|r2|local}/direct", s.handleDirectUpload).Methods(http.MethodPost)
	r.PathPrefix(report.FilesPrefix).HandlerFunc(s.handleFile).Methods(http.MethodGet, http.MethodHead)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down api server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type noopNotifier struct{}

func (noopNotifier) NotifyOwner(string, string, string) error { return nil }
