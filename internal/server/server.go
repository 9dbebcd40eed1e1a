// Package server exposes the return workflow over HTTP. Each return gets
// its own workflow controller, kept in an expiring session store.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zombor/auditly/internal/archive"
	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/comparison"
	"github.com/zombor/auditly/internal/upload"
	"github.com/zombor/auditly/internal/workflow"
)

// Archive records completed returns and serves them back
type Archive interface {
	Archive(c workflow.Completion) (*archive.Record, error)
	GetReturn(id string) (*archive.Record, error)
	ListReturns() ([]*archive.Record, error)
	GetPhoto(id, side string) ([]byte, string, error)
	DeleteReturn(id string) error
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Config holds the server's collaborators
type Config struct {
	Catalog       *catalog.Catalog
	Client        comparison.Client
	Archive       Archive
	UploadOptions upload.Options
	SessionTTL    time.Duration
	BasicAuth     BasicAuth
}

// Server handles HTTP requests for returns
type Server struct {
	catalog    *catalog.Catalog
	client     comparison.Client
	archive    Archive
	uploadOpts upload.Options
	basicAuth  BasicAuth
	sessions   *sessionStore
	mux        *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(cfg Config) *Server {
	return NewServerWithMux(cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(cfg Config, mux *http.ServeMux) *Server {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Server{
		catalog:    cat,
		client:     cfg.Client,
		archive:    cfg.Archive,
		uploadOpts: cfg.UploadOptions,
		basicAuth:  cfg.BasicAuth,
		sessions:   newSessionStore(cfg.SessionTTL),
		mux:        mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	return username == s.basicAuth.Username && password == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to every response and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Auditly"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Catalog
	s.mux.HandleFunc("GET /api/catalog/categories", s.requireAuth(s.handleListCategories))
	s.mux.HandleFunc("GET /api/catalog/items", s.requireAuth(s.handleListItems))

	// Return sessions
	s.mux.HandleFunc("POST /api/returns", s.requireAuth(s.handleStartReturn))
	s.mux.HandleFunc("GET /api/returns/{id}", s.requireAuth(s.withReturn(s.handleGetReturn)))
	s.mux.HandleFunc("POST /api/returns/{id}/category", s.requireAuth(s.withReturn(s.handleSelectCategory)))
	s.mux.HandleFunc("POST /api/returns/{id}/item", s.requireAuth(s.withReturn(s.handleSelectItem)))
	s.mux.HandleFunc("POST /api/returns/{id}/uploads/{side}/preview", s.requireAuth(s.withReturn(s.handleSelectFile)))
	s.mux.HandleFunc("POST /api/returns/{id}/uploads/{side}", s.requireAuth(s.withReturn(s.handleSubmitUpload)))
	s.mux.HandleFunc("POST /api/returns/{id}/metadata", s.requireAuth(s.withReturn(s.handleSubmitMetadata)))
	s.mux.HandleFunc("POST /api/returns/{id}/focus/{field}", s.requireAuth(s.withReturn(s.handleFocusField)))
	s.mux.HandleFunc("POST /api/returns/{id}/acknowledge", s.requireAuth(s.withReturn(s.handleAcknowledge)))
	s.mux.HandleFunc("POST /api/returns/{id}/restart", s.requireAuth(s.withReturn(s.handleRestart)))

	// Completed returns
	if s.archive != nil {
		s.mux.HandleFunc("GET /api/history/{id}/photos/{side}", s.requireAuth(s.handleGetArchivedPhoto))
		s.mux.HandleFunc("GET /api/history/{id}", s.requireAuth(s.handleGetArchivedReturn))
		s.mux.HandleFunc("DELETE /api/history/{id}", s.requireAuth(s.handleDeleteArchivedReturn))
		s.mux.HandleFunc("GET /api/history", s.requireAuth(s.handleListArchivedReturns))
	}
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
