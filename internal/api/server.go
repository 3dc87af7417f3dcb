// Package api exposes the catalog and archive ingestion over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"rtranslator/internal/analytics"
	"rtranslator/internal/archive"
	"rtranslator/internal/config"
	"rtranslator/internal/network"
	"rtranslator/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options wires a Server.
type Options struct {
	Archives  *archive.Service
	Store     *storage.Storage
	Config    *config.ConfigManager
	Stats     *analytics.StatsManager
	Bandwidth *network.BandwidthManager
	Logger    *slog.Logger
}

type Server struct {
	archives   *archive.Service
	store      *storage.Storage
	cfg        *config.ConfigManager
	stats      *analytics.StatsManager
	bandwidth  *network.BandwidthManager
	logger     *slog.Logger
	router     *chi.Mux
	activeReqs int64
}

func NewServer(opts Options) *Server {
	s := &Server{
		archives:  opts.Archives,
		store:     opts.Store,
		cfg:       opts.Config,
		stats:     opts.Stats,
		bandwidth: opts.Bandwidth,
		logger:    opts.Logger,
		router:    chi.NewRouter(),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("api server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.concurrencyLimitMiddleware)

	s.router.Get("/status", s.handleGetStatus)

	s.router.Route("/archives", func(r chi.Router) {
		r.Post("/tasks", s.handleSubmitTask)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Get("/search", s.handleArchiveSearch)
	})

	s.router.Route("/mods", func(r chi.Router) {
		r.Get("/search", s.handleModSearch)
		r.Get("/{id}/metadata", s.handleModMetadata)
		r.Get("/{id}/entries", s.handleModEntries)
	})

	s.router.Route("/entries/text/{key}", func(r chi.Router) {
		r.Post("/translate", s.handleAddTranslation)
		r.Get("/translations", s.handleGetTranslations)
	})

	s.router.Get("/stats", s.handleGetStats)
	s.router.Get("/settings", s.handleGetSettings)
	s.router.Put("/settings", s.handleUpdateSettings)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) concurrencyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		max := int64(1 << 30)
		if s.cfg != nil {
			max = int64(s.cfg.GetAPIMaxConcurrent())
		}
		if max <= 0 {
			max = 1 // Safety default
		}

		current := atomic.AddInt64(&s.activeReqs, 1)
		defer atomic.AddInt64(&s.activeReqs, -1)

		if current > max {
			s.logger.Warn("request rejected, too many concurrent requests", "path", r.URL.Path, "max", max)
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ============= Helpers =============

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// pageParam reads the zero-based "page" query parameter.
func pageParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		return 0, false
	}
	return page, true
}

func idParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// archiveErrorStatus maps ingestion errors to HTTP statuses.
func archiveErrorStatus(err error) int {
	switch {
	case errors.Is(err, archive.ErrProviderNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, archive.ErrInvalidResource), errors.Is(err, archive.ErrUnknownProvider):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}
