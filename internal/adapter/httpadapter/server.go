package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/streamflow-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBytes = 8 << 20

// Computer runs a parsed request synchronously.
type Computer interface {
	Compute(ctx context.Context, req domain.Request) (domain.Result, error)
}

// Server exposes health, readiness, metrics and synchronous compute endpoints.
type Server struct {
	httpServer *http.Server
	computer   Computer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /v1/compute routes. The service is ready when every check passes.
func NewServer(addr string, computer Computer, logger *slog.Logger, checks ...sharedobs.ReadinessChecker) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		computer: computer,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(allReady(checks)))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/compute", s.handleCompute)

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

// handleCompute accepts the same envelope as the request topic and answers
// with the result envelope.
func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	req, err := domain.ParseRequest(domain.RawEvent{Value: body})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	res, err := s.computer.Compute(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("compute request failed", "request_id", req.ID, "kind", req.Kind, "error", err)
		} else {
			s.logger.Info("compute request rejected", "request_id", req.ID, "kind", req.Kind, "error", err)
		}
		writeError(w, status, err)
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, res)
}

// statusFor maps engine errors to HTTP status codes. Errors that are not
// caused by the request, such as registry failures, are server errors.
func statusFor(err error) int {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		timeErr   *time.ParseError
	)
	switch {
	case errors.Is(err, domain.ErrCurveNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrMismatchedLengths),
		errors.Is(err, domain.ErrUnsortedSeries):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnknownKind),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr),
		errors.As(err, &timeErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

// readiness combines several readiness checks; the first failure wins.
type readiness []sharedobs.ReadinessChecker

func allReady(checks []sharedobs.ReadinessChecker) readiness {
	return readiness(checks)
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
