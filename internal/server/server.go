// Package server exposes the article pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"marketwire/internal/batch"
	"marketwire/internal/config"
	"marketwire/internal/core"
	"marketwire/internal/logger"
	"marketwire/internal/metrics"
	"marketwire/internal/store"
)

// Processor runs the article pipeline for one URL.
type Processor interface {
	Process(ctx context.Context, source string, timestamp time.Time) (*core.Article, error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	processor  Processor
	batches    *batch.Manager
	metrics    *metrics.Collector
	store      *store.Store
	config     config.Server
	log        *slog.Logger
}

// New creates a new HTTP server instance
func New(processor Processor, batches *batch.Manager, m *metrics.Collector, st *store.Store, cfg config.Server) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		processor: processor,
		batches:   batches,
		metrics:   m,
		store:     st,
		config:    cfg,
		log:       logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.Duration(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: config.Duration(cfg.WriteTimeout, 120*time.Second),
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(s.logRequests)
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		// Article processing
		r.Post("/url-article", s.handleProcessURL)
		r.Post("/url-articles/batch", s.handleSubmitBatch)
		r.Get("/url-articles/batch/{taskID}", s.handleBatchStatus)
		r.Delete("/url-articles/batch/{taskID}", s.handleCancelBatch)

		// Performance metrics
		r.Get("/performance", s.handlePerformance)
		r.Post("/performance/reset", s.handlePerformanceReset)

		// Stored articles
		r.Post("/articles", s.handleCreateArticle)
		r.Post("/articles/list", s.handleCreateArticles)
		r.Get("/articles", s.handleListArticles)
		r.Patch("/articles", s.handleUpdateArticle)
		r.Delete("/articles", s.handleDeleteArticles)

		// Request logs
		r.Get("/logs", s.handleListLogs)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
