// Package core provides the HTTP chassis for the notification API. It builds
// a chi router that enforces the cross-cutting concerns (panic recovery,
// request correlation, logging and bearer authentication) before requests
// reach the notification handlers.
package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RouteRegistrar mounts domain routes on the /v1 group. Handler packages
// register through this hook so core never imports them.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies of the notification API.
type Server struct {
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator // nil disables /v1 authentication
	HealthProbes  []HealthProbe

	V1RouteRegistrars []RouteRegistrar

	// RequestTimeout bounds every request context. Zero uses
	// defaultRequestTimeout.
	RequestTimeout time.Duration

	// Closers run on Shutdown in order, for pools owned by the process.
	Closers []func()

	router *chi.Mux
}

// NewServer prepares a server for route mounting. Callers set the optional
// fields and then call MountRoutes.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}
	return &Server{
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases process-owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for _, closeFn := range s.Closers {
		closeFn()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
