// Package api exposes the HTTP and WebSocket interface for the service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crawlchat/crawlchat/internal/crawl"
	"github.com/crawlchat/crawlchat/internal/metrics"
	"github.com/crawlchat/crawlchat/internal/safety"
)

// Runner starts a crawl run and blocks until it finishes.
type Runner interface {
	Start(ctx context.Context, seedURL, sessionID string) crawl.Result
}

// Answerer produces a chat answer scoped to one session's documents.
type Answerer interface {
	Answer(ctx context.Context, query, sessionID string) (string, error)
}

// Server wires HTTP handlers to the orchestrator, status, and agent.
type Server struct {
	router   chi.Router
	runner   Runner
	status   *crawl.Status
	registry *crawl.Registry
	checker  safety.Checker
	agent    Answerer
	logger   *zap.Logger

	running atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runner Runner,
	status *crawl.Status,
	registry *crawl.Registry,
	checker safety.Checker,
	agent Answerer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		runner:   runner,
		status:   status,
		registry: registry,
		checker:  checker,
		agent:    agent,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/scrape", s.scrape)
	r.Get("/scraping-status", s.scrapingStatus)
	r.Get("/chat", s.chat)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// scrape validates the submitted URL, checks it against the safety policy,
// and kicks off the crawl in the background. Only one run may be active at a
// time; a second submission is refused rather than queued.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	seedURL := r.FormValue("url")
	sessionID := r.FormValue("session_id")
	if seedURL == "" || sessionID == "" {
		writeError(w, http.StatusBadRequest, "url and session_id are required")
		return
	}

	ok, reason, err := s.checker.Check(r.Context(), seedURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "safety check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a scraping run is already in progress")
		return
	}

	// The run outlives the request, so it gets its own context.
	go func() {
		defer s.running.Store(false)
		result := s.runner.Start(context.Background(), seedURL, sessionID)
		if !result.Success {
			s.logger.Error("crawl run failed",
				zap.String("url", seedURL),
				zap.String("session_id", sessionID),
				zap.Error(result.Err),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": "Scraping started",
	})
}

func (s *Server) scrapingStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   snap.Message,
		"scraped":   s.registry.CountScraped(),
		"failed":    s.registry.CountFailed(),
		"completed": snap.Completed,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets WebSocket upgrades pass through the wrapped writer.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
