package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/portal/internal/subscriptions/application"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// SubscriptionHandler handles subscription API requests.
type SubscriptionHandler struct {
	lifecycle *application.Lifecycle
	logger    *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(lifecycle *application.Lifecycle, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// CreateContractRequest is the body of POST /api/v1/subscribers/{id}/contracts.
type CreateContractRequest struct {
	PlanID        string           `json:"plan_id"`
	BillingCycle  string           `json:"billing_cycle"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	StartDate     domain.Date      `json:"start_date"`
	PaymentStatus string           `json:"payment_status,omitempty"`
	AutoRenew     bool             `json:"auto_renew"`
}

// ChangePlanRequest is the body of POST /api/v1/subscribers/{id}/plan.
type ChangePlanRequest struct {
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	AutoRenew    bool   `json:"auto_renew"`
}

// UpdatePaymentStatusRequest is the body of PUT /api/v1/contracts/{id}/payment-status.
type UpdatePaymentStatusRequest struct {
	Status string `json:"status"`
}

// ListPlans handles GET /api/v1/plans
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.lifecycle.Plans(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"plans": plans,
		"total": len(plans),
	})
}

// GetSubscription handles GET /api/v1/subscribers/{subscriberID}/subscription
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.pathID(w, r, "subscriberID")
	if !ok {
		return
	}

	result, err := h.lifecycle.Subscription(r.Context(), subscriberID)
	if err != nil {
		h.fail(w, r, "get subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListContracts handles GET /api/v1/subscribers/{subscriberID}/contracts
func (h *SubscriptionHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.pathID(w, r, "subscriberID")
	if !ok {
		return
	}

	onlyLive := parseBoolParam(r, "live", false)
	contracts, err := h.lifecycle.Contracts(r.Context(), subscriberID, onlyLive)
	if err != nil {
		h.fail(w, r, "list contracts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contracts": contracts,
		"total":     len(contracts),
	})
}

// GetActiveContract handles GET /api/v1/subscribers/{subscriberID}/contracts/active.
// A subscriber without an active contract gets 200 with a null body.
func (h *SubscriptionHandler) GetActiveContract(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.pathID(w, r, "subscriberID")
	if !ok {
		return
	}

	contract, err := h.lifecycle.ActiveContract(r.Context(), subscriberID)
	if err != nil {
		h.fail(w, r, "get active contract", err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// CreateContract handles POST /api/v1/subscribers/{subscriberID}/contracts
func (h *SubscriptionHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.pathID(w, r, "subscriberID")
	if !ok {
		return
	}

	var req CreateContractRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contract, err := h.lifecycle.CreateContract(r.Context(), commands.CreateContractCommand{
		SubscriberID:  subscriberID,
		PlanID:        req.PlanID,
		BillingCycle:  req.BillingCycle,
		Amount:        req.Amount,
		StartDate:     req.StartDate,
		PaymentStatus: req.PaymentStatus,
		AutoRenew:     req.AutoRenew,
	})
	if err != nil {
		h.fail(w, r, "create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, contract)
}

// ChangePlan handles POST /api/v1/subscribers/{subscriberID}/plan
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.pathID(w, r, "subscriberID")
	if !ok {
		return
	}

	var req ChangePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.lifecycle.ChangePlan(r.Context(), commands.ChangePlanCommand{
		SubscriberID: subscriberID,
		PlanID:       req.PlanID,
		BillingCycle: req.BillingCycle,
		AutoRenew:    req.AutoRenew,
	})
	if err != nil {
		h.fail(w, r, "change plan", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RenewContract handles POST /api/v1/contracts/{contractID}/renew
func (h *SubscriptionHandler) RenewContract(w http.ResponseWriter, r *http.Request) {
	contractID, ok := h.pathID(w, r, "contractID")
	if !ok {
		return
	}

	renewal, err := h.lifecycle.RenewContract(r.Context(), contractID)
	if err != nil {
		h.fail(w, r, "renew contract", err)
		return
	}
	writeJSON(w, http.StatusOK, renewal)
}

// UpdatePaymentStatus handles PUT /api/v1/contracts/{contractID}/payment-status
func (h *SubscriptionHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	contractID, ok := h.pathID(w, r, "contractID")
	if !ok {
		return
	}

	var req UpdatePaymentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	contract, err := h.lifecycle.UpdatePaymentStatus(r.Context(), contractID, req.Status)
	if err != nil {
		h.fail(w, r, "update payment status", err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (h *SubscriptionHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, "bad_request", "Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func (h *SubscriptionHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "operation", op, "error", err)
	}
	writeError(w, apiErr)
}

// decodeBody reads a single JSON object into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid JSON body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, newAPIError(http.StatusBadRequest, "bad_request", msg))
		return false
	}
	return true
}

func parseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
