// Package server exposes the catalog over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voyagen/castvault/api"
	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/config"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/service"
	"github.com/voyagen/castvault/internal/store"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	syncer *service.Syncer
	store  store.Store  // nil when DATABASE_URL is not set
	redis  *cache.Redis // nil when REDIS_URL is not set
	cfg    *config.Config
	router chi.Router
	logger zerolog.Logger
}

// New creates a Server and registers routes. st and rds may be nil.
func New(cfg *config.Config, syncer *service.Syncer, st store.Store, rds *cache.Redis) *Server {
	srv := &Server{
		syncer: syncer,
		store:  st,
		redis:  rds,
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: log.WithComponent("server"),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(withCORS)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/docs", handleSwaggerUI)
		r.Get("/docs/openapi.yaml", handleOpenAPISpec)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(600, time.Minute))

			r.Get("/channels", s.handleListChannels)
			r.Get("/channels/{id}", s.handleGetChannel)

			r.Get("/playback", s.handleListPlayback)
			r.Get("/playback/{id}", s.handleGetPlayback)
			r.Get("/playback/{id}/cast", s.handleCastRequest)
			r.Get("/playlist.m3u", s.handlePlaylist)

			r.With(rateLimit(10, time.Minute)).Post("/catalog/refresh", s.handleRefresh)
			r.Delete("/catalog", s.handleReset)

			r.Get("/snapshots", s.handleListSnapshots)
			r.Get("/snapshots/{ref}", s.handleGetSnapshot)
			r.Delete("/snapshots/{ref}", s.handleDeleteSnapshot)
		})
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("writeJSON")
	}
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Int("status", status).Str(log.FieldPath, r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>castvault API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "/api/docs/openapi.yaml", dom_id: "#swagger-ui" });
  </script>
</body>
</html>`
