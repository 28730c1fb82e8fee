package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cass-tech/storefront/internal/alerts"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

// CheckoutService is what the handlers need from the session layer.
type CheckoutService interface {
	View(ctx context.Context, checkoutID, channel string) (*service.View, error)
	UpdateEmail(ctx context.Context, checkoutID, channel, email string) (*service.View, error)
	UpdateBillingAddress(ctx context.Context, checkoutID, channel string, address domain.Address) (*service.View, error)
	UpdateShippingAddress(ctx context.Context, checkoutID, channel string, address domain.Address) (*service.View, error)
	UpdateLines(ctx context.Context, checkoutID, channel string, lines []domain.LineUpdate) (*service.View, error)
	InitializePayment(ctx context.Context, checkoutID, channel string, gatewayID domain.GatewayID) (*service.View, error)
	Submit(ctx context.Context, checkoutID, channel string, authenticated bool) (*service.View, error)
	Return(ctx context.Context, checkoutID, channel string, processingPayment bool) (*service.View, error)
	Alerts(ctx context.Context, checkoutID string) ([]alerts.Alert, error)
}

type CheckoutHandler struct {
	svc     CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type UpdateEmailRequestDTO struct {
	Email string `json:"email"`
}

type UpdateLinesRequestDTO struct {
	Lines []domain.LineUpdate `json:"lines"`
}

type AlertsResponseDTO struct {
	Alerts []alerts.Alert `json:"alerts"`
}

// requestScope is the context and route data shared by every checkout call.
func (h *CheckoutHandler) requestScope(r *http.Request) (context.Context, context.CancelFunc, string, string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	checkoutID := chi.URLParam(r, "checkoutID")
	ctx = log.WithLogField(ctx, "checkout_id", checkoutID)
	return ctx, cancel, checkoutID, r.URL.Query().Get("channel")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (h *CheckoutHandler) respond(w http.ResponseWriter, r *http.Request, view *service.View, err error) {
	if err != nil {
		handleServiceError(w, r, err, view)
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// GET /api/v1/checkouts/{checkoutID}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	view, err := h.svc.View(ctx, checkoutID, channel)
	h.respond(w, r, view, err)
}

// PUT /api/v1/checkouts/{checkoutID}/email
func (h *CheckoutHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	var req UpdateEmailRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.svc.UpdateEmail(ctx, checkoutID, channel, req.Email)
	h.respond(w, r, view, err)
}

// PUT /api/v1/checkouts/{checkoutID}/billing-address
func (h *CheckoutHandler) UpdateBillingAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	var address domain.Address
	if !decodeJSON(w, r, &address) {
		return
	}

	view, err := h.svc.UpdateBillingAddress(ctx, checkoutID, channel, address)
	h.respond(w, r, view, err)
}

// PUT /api/v1/checkouts/{checkoutID}/shipping-address
func (h *CheckoutHandler) UpdateShippingAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	var address domain.Address
	if !decodeJSON(w, r, &address) {
		return
	}

	view, err := h.svc.UpdateShippingAddress(ctx, checkoutID, channel, address)
	h.respond(w, r, view, err)
}

// PUT /api/v1/checkouts/{checkoutID}/lines
func (h *CheckoutHandler) UpdateLines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	var req UpdateLinesRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.svc.UpdateLines(ctx, checkoutID, channel, req.Lines)
	h.respond(w, r, view, err)
}

// POST /api/v1/checkouts/{checkoutID}/payment/{gatewayID}/initialize
func (h *CheckoutHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	gatewayID := domain.GatewayID(chi.URLParam(r, "gatewayID"))
	view, err := h.svc.InitializePayment(ctx, checkoutID, channel, gatewayID)
	h.respond(w, r, view, err)
}

// POST /api/v1/checkouts/{checkoutID}/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	view, err := h.svc.Submit(ctx, checkoutID, channel, isAuthenticated(r.Context()))
	h.respond(w, r, view, err)
}

// GET /api/v1/checkouts/{checkoutID}/return?processingPayment=true
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, channel := h.requestScope(r)
	defer cancel()

	processing := false
	if raw := r.URL.Query().Get("processingPayment"); raw != "" {
		var err error
		processing, err = strconv.ParseBool(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_argument", "processingPayment must be a boolean")
			return
		}
	}

	view, err := h.svc.Return(ctx, checkoutID, channel, processing)
	h.respond(w, r, view, err)
}

// GET /api/v1/checkouts/{checkoutID}/alerts
func (h *CheckoutHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, checkoutID, _ := h.requestScope(r)
	defer cancel()

	got, err := h.svc.Alerts(ctx, checkoutID)
	if err != nil {
		handleServiceError(w, r, err, nil)
		return
	}
	if got == nil {
		got = []alerts.Alert{}
	}
	respondJSON(w, r, http.StatusOK, AlertsResponseDTO{Alerts: got})
}
