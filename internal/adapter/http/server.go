package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/query"
)

// Version is reported by the index route.
const Version = "1.0.0"

// QueryService answers record and status queries.
type QueryService interface {
	Query(ctx context.Context, kind domain.Kind, slug string, p query.Params) (query.Result, error)
	Status(ctx context.Context) (query.Status, error)
}

// Server exposes the record API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	queries    QueryService
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Reads may trigger an upstream refresh
// bounded by the source timeouts, so the write timeout is generous.
func NewServer(addr string, queries QueryService, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		queries: queries,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.recoverer(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/{kind}/{source}", s.handleRecords)
	mux.HandleFunc("/", s.handleNotFound)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"version":   Version,
		"endpoints": query.Catalogue(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.queries.Status(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := query.KindForSegment(r.PathValue("kind"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	res, err := s.queries.Query(r.Context(), kind, r.PathValue("source"), query.ParseParams(r.URL.Query()))
	switch {
	case errors.Is(err, query.ErrNotFound):
		s.handleNotFound(w, r)
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, res.Envelope())
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":               "not found",
		"message":             "the requested endpoint does not exist",
		"available_endpoints": query.Catalogue(),
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "internal server error",
		"message": "an error occurred while processing the request, please try again later",
	})
}

// recoverer turns a handler panic into the generic 500 body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", v)
				s.internalError(w, r, errors.New("panic in handler"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
