package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cass-tech/storefront/internal/cache"
	"github.com/cass-tech/storefront/internal/gateway"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/saleor"
	"github.com/cass-tech/storefront/internal/service"
	"github.com/cass-tech/storefront/internal/validation"
)

type ErrorResponse struct {
	Error     string                  `json:"error"`
	Code      string                  `json:"code,omitempty"`
	RequestID string                  `json:"requestId,omitempty"`
	Fields    []validation.FieldError `json:"fields,omitempty"`
	// View is the session state after the failed call, when there is one.
	View *service.View `json:"view,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.L(r.Context()).WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(r.Context()),
	})
}

// handleServiceError maps service and checkout API errors onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, view *service.View) {
	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: getRequestID(r.Context()),
		View:      view,
	}

	var status int
	var formErr *service.FormError
	var apiErr *saleor.APIError

	switch {
	case errors.As(err, &formErr):
		status = http.StatusUnprocessableEntity
		resp.Code = "invalid_form"
		resp.Fields = formErr.Errors
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, saleor.ErrCheckoutNotFound):
		status = http.StatusNotFound
		resp.Code = "not_found"
	case errors.Is(err, gateway.ErrUnknownGateway):
		status = http.StatusNotFound
		resp.Code = "unknown_gateway"
	case errors.Is(err, service.ErrInvalidLineUpdates):
		status = http.StatusBadRequest
		resp.Code = "invalid_argument"
	case errors.Is(err, service.ErrSubmitInProgress),
		errors.Is(err, service.ErrCheckoutCompleted),
		errors.Is(err, cache.ErrCompletionInProgress):
		status = http.StatusConflict
		resp.Code = "conflict"
	case errors.Is(err, service.ErrPaymentInitFailed):
		status = http.StatusBadGateway
		resp.Code = "payment_initialization_failed"
	case errors.Is(err, saleor.ErrUnavailable), errors.Is(err, service.ErrSessionClosed):
		status = http.StatusServiceUnavailable
		resp.Code = "service_unavailable"
	case errors.As(err, &apiErr):
		status = http.StatusUnprocessableEntity
		resp.Code = "checkout_rejected"
		for _, me := range apiErr.MutationErrors {
			resp.Fields = append(resp.Fields, validation.FieldError{Field: me.Field, Code: me.Code, Message: me.Message})
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
		resp.Code = "timeout"
	default:
		status = http.StatusInternalServerError
		resp.Code = "internal_error"
		resp.Error = "internal server error"
		log.L(r.Context()).WithError(err).Error("unhandled error")
	}

	respondJSON(w, r, status, resp)
}
