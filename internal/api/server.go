// Package api serves analysis results over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/service"
)

// Analyzer is the part of *service.Service the handlers use.
type Analyzer interface {
	Analyze(ctx context.Context, req service.Request) (*service.Envelope, error)
	StartJob(ctx context.Context, req service.Request) (*batch.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (batch.Job, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	analyzer Analyzer
	logger   *slog.Logger
	http     *http.Server
}

func NewServer(port int, apiToken string, analyzer Analyzer, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		analyzer: analyzer,
		logger:   logger,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/projects/{projectID}/analysis", s.analyze)
		r.Post("/projects/{projectID}/analysis/jobs", s.startJob)
		r.Get("/analysis/jobs/{jobID}", s.getJob)
	})

	return s
}

// Start blocks until the server stops. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}
