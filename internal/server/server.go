// Package server provides the HTTP API for the Virtual TA.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/config"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// maxRequestBytes bounds request bodies, leaving room for an inline image.
const maxRequestBytes = 20 << 20

// Service answers questions and refreshes the knowledge base.
type Service interface {
	Answer(ctx context.Context, question, imageBase64 string) (*models.Answer, error)
	RefreshKnowledge(ctx context.Context, window models.DateWindow) (int, error)
}

// Stats reports knowledge base size.
type Stats interface {
	CountPosts(ctx context.Context) (int64, error)
	CountCourseContent(ctx context.Context) (int64, error)
}

// DirectoryLister reports watched course directories.
type DirectoryLister interface {
	Directories() []string
}

// Server is the HTTP server for the Virtual TA API.
type Server struct {
	service Service
	stats   Stats
	config  *config.Config
	watcher DirectoryLister
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher exposes watched course directories in the status response.
func WithWatcher(w DirectoryLister) Option {
	return func(s *Server) { s.watcher = w }
}

// NewServer creates a server with the given dependencies.
func NewServer(service Service, stats Stats, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		service: service,
		stats:   stats,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Long enough for a full harvest.
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Post("/api/", s.handleAnswer)
	r.Post("/api", s.handleAnswer)
	r.Post("/api/update", s.handleUpdate)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
