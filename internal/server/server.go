// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and it owns the listen/shutdown lifecycle. It does not own the
// store: whoever opened the store passes it in and closes it afterwards.
//
// DEPENDENCY INJECTION FLOW:
//
//	cli opens:        repository.Store (sqlite)
//	server.New wires: Store → services → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/mockapi/internal/config"
	"github.com/sakif/mockapi/internal/handler"
	"github.com/sakif/mockapi/internal/middleware"
	"github.com/sakif/mockapi/internal/repository"
	"github.com/sakif/mockapi/internal/service"
)

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.ServerConfig
	logger *slog.Logger
	store  repository.Store
}

// New wires every layer on top of store.
func New(cfg config.ServerConfig, logger *slog.Logger, store repository.Store) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                                      → store ping
// GET    /api/projects                                 → list projects
// POST   /api/projects                                 → create project
// GET    /api/projects/{id}                            → get project
// PATCH  /api/projects/{id}                            → update project
// DELETE /api/projects/{id}                            → delete project (cascades)
// GET    /api/projects/{id}/endpoints                  → list endpoints
// POST   /api/projects/{id}/endpoints                  → create endpoint
// GET    /api/projects/{id}/endpoints/{endpointId}     → get endpoint
// PUT    /api/projects/{id}/endpoints/{endpointId}     → replace endpoint
// DELETE /api/projects/{id}/endpoints/{endpointId}     → delete endpoint
// *      /mock/{projectId}/*                           → serve a canned response
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (the logger reads it)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	projectService := service.NewProjectService(s.store, s.logger)
	endpointService := service.NewEndpointService(s.store, s.store, s.logger)
	mockService := service.NewMockService(s.store, s.logger)

	projectHandler := handler.NewProjectHandler(projectService, s.logger)
	endpointHandler := handler.NewEndpointHandler(endpointService, s.logger)
	mockHandler := handler.NewMockHandler(mockService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api/projects", func(r chi.Router) {
		r.Get("/", projectHandler.HandleList)
		r.Post("/", projectHandler.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", projectHandler.HandleGet)
			r.Patch("/", projectHandler.HandleUpdate)
			r.Delete("/", projectHandler.HandleDelete)

			r.Get("/endpoints", endpointHandler.HandleList)
			r.Post("/endpoints", endpointHandler.HandleCreate)
			r.Get("/endpoints/{endpointId}", endpointHandler.HandleGet)
			r.Put("/endpoints/{endpointId}", endpointHandler.HandleUpdate)
			r.Delete("/endpoints/{endpointId}", endpointHandler.HandleDelete)
		})
	})

	// HandleFunc registers for every method, HEAD and OPTIONS included.
	s.router.HandleFunc("/mock/{projectId}", mockHandler.HandleMock)
	s.router.HandleFunc("/mock/{projectId}/*", mockHandler.HandleMock)
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully:
// new connections are refused and in-flight requests get up to
// ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("url", "http://"+ln.Addr().String()),
		)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
