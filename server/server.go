// Package server exposes comparisons over HTTP: a JSON API, Prometheus
// metrics, and a fixture server with sample pages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/domdiff/comparer"
	"github.com/hazyhaar/domdiff/diff"
	"github.com/hazyhaar/domdiff/report"
	"github.com/hazyhaar/domdiff/source"
)

// Config configures the API server.
type Config struct {
	Addr      string
	RateLimit float64 // compare requests per second; 0 disables the limit
	Burst     int
	MaxBody   int64 // request body cap in bytes
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 16 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the HTTP front of a Comparer.
type Server struct {
	cmp     *comparer.Comparer
	cfg     Config
	metrics *Metrics
	limiter *rate.Limiter
}

// New creates a Server.
func New(cmp *comparer.Comparer, cfg Config) *Server {
	cfg.defaults()
	s := &Server{cmp: cmp, cfg: cfg, metrics: NewMetrics()}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(TraceID(s.cfg.Logger))
	r.Use(MaxBody(s.cfg.MaxBody))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(RateLimit(s.limiter))
			}
			r.Post("/compare", s.handleCompare)
		})
		r.Get("/comparisons", s.handleList)
		r.Get("/comparisons/{id}", s.handleGet)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("server: listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.cfg.Logger.Info("server: shutting down")
		return srv.Shutdown(shutCtx)
	}
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req comparer.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	start := time.Now()
	rep, err := s.cmp.Compare(r.Context(), req)
	res := resultOf(rep)
	s.metrics.observe(res, time.Since(start).Seconds(), err != nil)
	if err != nil {
		requestLogger(r.Context()).Warn("server: compare failed", "error", err)
		body := map[string]any{"error": err.Error()}
		var se *comparer.StageError
		if errors.As(err, &se) {
			body["stage"] = se.Stage
			if se.Side > 0 {
				body["side"] = se.Side
			}
		}
		if rep != nil {
			body["report"] = rep
		}
		writeJSON(w, statusFor(err), body)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cmp.History(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparisons": entries, "count": len(entries)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := s.cmp.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("comparison %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func resultOf(rep *report.Report) *diff.Result {
	if rep == nil {
		return nil
	}
	return &rep.Result
}

// statusFor maps comparison errors to HTTP status codes.
func statusFor(err error) int {
	var se *comparer.StageError
	switch {
	case errors.Is(err, comparer.ErrInvalidRequest),
		errors.Is(err, source.ErrUnsafeScheme),
		errors.Is(err, source.ErrPrivateAddress):
		return http.StatusBadRequest
	case errors.Is(err, comparer.ErrNoStore):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &se):
		if se.Stage == comparer.StageParse {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
