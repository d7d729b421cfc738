// Package api provides the HTTP API for the subscription lifecycle.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// Server is the HTTP API server for subscriptions.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	metrics observability.Metrics
	health  *observability.HealthRegistry
	handler *SubscriptionHandler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Health reports dependency status on /health when set.
	Health *observability.HealthRegistry
	// Metrics is mounted on /metrics when set.
	MetricsHandler http.Handler
	Metrics        observability.Metrics
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new subscription API server.
func NewServer(cfg ServerConfig, handler *SubscriptionHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		metrics: cfg.Metrics,
		health:  cfg.Health,
		handler: handler,
	}

	s.registerRoutes()
	if cfg.MetricsHandler != nil {
		s.mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health check
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Catalog
	s.mux.HandleFunc("GET /api/v1/plans", s.handler.ListPlans)

	// Subscribers
	s.mux.HandleFunc("GET /api/v1/subscribers/{subscriberID}/subscription", s.handler.GetSubscription)
	s.mux.HandleFunc("GET /api/v1/subscribers/{subscriberID}/contracts", s.handler.ListContracts)
	s.mux.HandleFunc("GET /api/v1/subscribers/{subscriberID}/contracts/active", s.handler.GetActiveContract)
	s.mux.HandleFunc("POST /api/v1/subscribers/{subscriberID}/contracts", s.handler.CreateContract)
	s.mux.HandleFunc("POST /api/v1/subscribers/{subscriberID}/plan", s.handler.ChangePlan)

	// Contracts
	s.mux.HandleFunc("POST /api/v1/contracts/{contractID}/renew", s.handler.RenewContract)
	s.mux.HandleFunc("PUT /api/v1/contracts/{contractID}/payment-status", s.handler.UpdatePaymentStatus)
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return requestContext(s.observe(s.mux))
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}

	checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	overall := s.health.GetOverallHealth(checkCtx)
	body["status"] = overall.Status
	body["checks"] = overall.Checks

	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting subscription API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down subscription API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Status, apiErr)
}

// APIError represents an API error.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// Common API errors
var (
	ErrBadRequest = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: "Invalid request",
	}
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: "Resource not found",
	}
	ErrInternalServer = &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Internal server error",
	}
)

// toAPIError maps lifecycle errors onto HTTP statuses. Persistence failures
// hide the store error from the client.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrUnknownPlan),
		errors.Is(err, domain.ErrInvalidBillingCycle),
		errors.Is(err, domain.ErrInvalidPaymentStatus),
		errors.Is(err, domain.ErrNegativeAmount),
		errors.Is(err, domain.ErrAmountPrecision),
		errors.Is(err, domain.ErrMissingSubscriber),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidDate):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidPlanChange):
		return newAPIError(http.StatusConflict, "invalid_plan_change", err.Error())
	case errors.Is(err, domain.ErrMutationInProgress),
		errors.Is(err, domain.ErrDuplicateRenewal),
		errors.Is(err, domain.ErrConcurrentModification):
		return newAPIError(http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrPersistenceFailure):
		return newAPIError(http.StatusServiceUnavailable, "unavailable", "Storage is unavailable, retry later")
	default:
		return ErrInternalServer
	}
}
