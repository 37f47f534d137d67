// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the job API over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/vidforge/internal/api/middleware"
	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/health"
)

// JobService is the part of the job manager the handlers need.
type JobService interface {
	Submit(ctx context.Context, req domain.GenerateRequest) (domain.JobSnapshot, error)
	Get(ctx context.Context, id string) (domain.JobSnapshot, error)
	List(ctx context.Context) ([]domain.JobSnapshot, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	// RateLimitRPM caps generate calls per client IP and minute. 0 disables it.
	RateLimitRPM int
	// TracingService names the otelhttp server spans. Empty disables tracing.
	TracingService string
	// DisableAccessLog turns off the per-request log line.
	DisableAccessLog bool
}

// Deps are the collaborators of the server.
type Deps struct {
	Jobs   JobService
	Health *health.Manager
	// MaxDurationSec returns the current duration cap; it may change on reload.
	MaxDurationSec func() int
}

// Server routes HTTP requests to the job manager.
type Server struct {
	jobs        JobService
	health      *health.Manager
	maxDuration func() int
	router      chi.Router
}

// New builds the server and its router.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		jobs:        deps.Jobs,
		health:      deps.Health,
		maxDuration: deps.MaxDurationSec,
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	if s.maxDuration == nil {
		s.maxDuration = func() int { return defaultMaxDurationSec }
	}
	s.router = s.routes(cfg)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(cfg Config) chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: cfg.TracingService,
		EnableLogging:  !cfg.DisableAccessLog,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.SubmitRateLimit(cfg.RateLimitRPM)).Post("/generate", s.handleGenerate)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/jobs", s.handleList)
		r.Get("/download/{id}", s.handleDownload)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		RespondError(w, r, http.StatusNotFound, &APIError{Code: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		RespondError(w, r, http.StatusMethodNotAllowed, &APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})
	return r
}
