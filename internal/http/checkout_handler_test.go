package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cass-tech/storefront/internal/alerts"
	"github.com/cass-tech/storefront/internal/cache"
	"github.com/cass-tech/storefront/internal/config"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/gateway"
	"github.com/cass-tech/storefront/internal/saleor"
	"github.com/cass-tech/storefront/internal/service"
	"github.com/cass-tech/storefront/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	view   *service.View
	err    error
	alerts []alerts.Alert

	lastCheckoutID    string
	lastChannel       string
	lastEmail         string
	lastAddress       domain.Address
	lastLines         []domain.LineUpdate
	lastGateway       domain.GatewayID
	lastAuthenticated bool
	lastProcessing    bool
	hadDeadline       bool
}

func (m *MockService) record(ctx context.Context, checkoutID, channel string) {
	m.lastCheckoutID = checkoutID
	m.lastChannel = channel
	_, m.hadDeadline = ctx.Deadline()
}

func (m *MockService) View(ctx context.Context, checkoutID, channel string) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	return m.view, m.err
}

func (m *MockService) UpdateEmail(ctx context.Context, checkoutID, channel, email string) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastEmail = email
	return m.view, m.err
}

func (m *MockService) UpdateBillingAddress(ctx context.Context, checkoutID, channel string, address domain.Address) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastAddress = address
	return m.view, m.err
}

func (m *MockService) UpdateShippingAddress(ctx context.Context, checkoutID, channel string, address domain.Address) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastAddress = address
	return m.view, m.err
}

func (m *MockService) UpdateLines(ctx context.Context, checkoutID, channel string, lines []domain.LineUpdate) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastLines = lines
	return m.view, m.err
}

func (m *MockService) InitializePayment(ctx context.Context, checkoutID, channel string, gatewayID domain.GatewayID) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastGateway = gatewayID
	return m.view, m.err
}

func (m *MockService) Submit(ctx context.Context, checkoutID, channel string, authenticated bool) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastAuthenticated = authenticated
	return m.view, m.err
}

func (m *MockService) Return(ctx context.Context, checkoutID, channel string, processingPayment bool) (*service.View, error) {
	m.record(ctx, checkoutID, channel)
	m.lastProcessing = processingPayment
	return m.view, m.err
}

func (m *MockService) Alerts(ctx context.Context, checkoutID string) ([]alerts.Alert, error) {
	m.record(ctx, checkoutID, "")
	return m.alerts, m.err
}

func testView() *service.View {
	return &service.View{
		CheckoutID: "checkout-1",
		Channel:    "default-channel",
		Checkout:   &domain.Checkout{ID: "checkout-1", Email: "jane@example.com"},
		Payment:    gateway.None(),
	}
}

func newTestRouter(svc *MockService, checks ...HealthCheck) http.Handler {
	handler := NewCheckoutHandler(svc, 5*time.Second)
	return NewRouter(handler,
		config.HTTPConfig{MaxRequestBodySize: 1 << 10},
		config.CORSConfig{AllowedOrigins: []string{"https://shop.test"}},
		checks...,
	)
}

func do(t *testing.T, h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetCheckout_Success(t *testing.T) {
	svc := &MockService{view: testView()}
	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/checkouts/checkout-1?channel=channel-pln", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var view service.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "jane@example.com", view.Checkout.Email)
	assert.Equal(t, gateway.PresentationNone, view.Payment.Kind)

	assert.Equal(t, "checkout-1", svc.lastCheckoutID)
	assert.Equal(t, "channel-pln", svc.lastChannel)
	assert.True(t, svc.hadDeadline, "handlers bound the call with a timeout")
}

func TestGetCheckout_NotFound(t *testing.T) {
	svc := &MockService{err: fmt.Errorf("load checkout: %w", saleor.ErrCheckoutNotFound)}
	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/checkouts/missing", nil, "X-Request-ID", "req-42")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "not_found", resp.Code)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestUpdateEmail_FormError(t *testing.T) {
	svc := &MockService{
		view: testView(),
		err: &service.FormError{
			Form:   validation.GuestUserForm,
			Errors: []validation.FieldError{{Field: "email", Code: "email", Message: "bad"}},
		},
	}
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/email",
		UpdateEmailRequestDTO{Email: "nope"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "invalid_form", resp.Code)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "email", resp.Fields[0].Field)
	require.NotNil(t, resp.View)
	assert.Equal(t, "checkout-1", resp.View.CheckoutID)
	assert.Equal(t, "nope", svc.lastEmail)
}

func TestUpdateEmail_InvalidJSON(t *testing.T) {
	svc := &MockService{view: testView()}
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/email", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
	assert.Empty(t, svc.lastCheckoutID)
}

func TestUpdateEmail_BodyTooLarge(t *testing.T) {
	svc := &MockService{view: testView()}
	body := `{"email":"` + strings.Repeat("a", 2<<10) + `@example.com"}`
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/email", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpdateBillingAddress_Success(t *testing.T) {
	svc := &MockService{view: testView()}
	address := domain.Address{FirstName: "Jane", City: "Cape Town", Country: domain.Country{Code: "ZA"}}
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/billing-address", address)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cape Town", svc.lastAddress.City)
	assert.Equal(t, "ZA", svc.lastAddress.Country.Code)
}

func TestUpdateShippingAddress_APIError(t *testing.T) {
	svc := &MockService{
		view: testView(),
		err: fmt.Errorf("update shippingAddress: %w", &saleor.APIError{
			Op:             "checkoutShippingAddressUpdate",
			MutationErrors: []saleor.MutationError{{Field: "postalCode", Code: "INVALID", Message: "wrong"}},
		}),
	}
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/shipping-address",
		domain.Address{FirstName: "Jane"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "checkout_rejected", resp.Code)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "postalCode", resp.Fields[0].Field)
}

func TestUpdateLines_Success(t *testing.T) {
	svc := &MockService{view: testView()}
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/lines",
		UpdateLinesRequestDTO{Lines: []domain.LineUpdate{{LineID: "line-1", Quantity: 3}}})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.lastLines, 1)
	assert.Equal(t, 3, svc.lastLines[0].Quantity)
}

func TestUpdateLines_Invalid(t *testing.T) {
	svc := &MockService{err: service.ErrInvalidLineUpdates}
	rec := do(t, newTestRouter(svc), http.MethodPut, "/api/v1/checkouts/checkout-1/lines", UpdateLinesRequestDTO{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitializePayment(t *testing.T) {
	svc := &MockService{view: testView()}
	rec := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/checkouts/checkout-1/payment/app.saleor.payfast/initialize", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PayfastGatewayID, svc.lastGateway)
}

func TestInitializePayment_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown gateway", fmt.Errorf("%w: app.saleor.paypal", gateway.ErrUnknownGateway), http.StatusNotFound, "unknown_gateway"},
		{"init failed", fmt.Errorf("%w: boom", service.ErrPaymentInitFailed), http.StatusBadGateway, "payment_initialization_failed"},
		{"api unavailable", fmt.Errorf("checkout: %w", saleor.ErrUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{err: tt.err}
			rec := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/checkouts/checkout-1/payment/x/initialize", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestSubmit_Authenticated(t *testing.T) {
	svc := &MockService{view: testView()}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/v1/checkouts/checkout-1/submit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastAuthenticated)

	rec = do(t, router, http.MethodPost, "/api/v1/checkouts/checkout-1/submit", nil, "Authorization", "Bearer tok-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastAuthenticated)

	rec = do(t, router, http.MethodPost, "/api/v1/checkouts/checkout-1/submit", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastAuthenticated)
}

func TestSubmit_Conflict(t *testing.T) {
	for _, err := range []error{service.ErrSubmitInProgress, service.ErrCheckoutCompleted, cache.ErrCompletionInProgress} {
		svc := &MockService{view: testView(), err: err}
		rec := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/checkouts/checkout-1/submit", nil)
		assert.Equal(t, http.StatusConflict, rec.Code, err.Error())
	}
}

func TestReturn_ProcessingPayment(t *testing.T) {
	svc := &MockService{view: testView()}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/v1/checkouts/checkout-1/return?processingPayment=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastProcessing)

	rec = do(t, router, http.MethodGet, "/api/v1/checkouts/checkout-1/return", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastProcessing)

	rec = do(t, router, http.MethodGet, "/api/v1/checkouts/checkout-1/return?processingPayment=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlerts(t *testing.T) {
	svc := &MockService{}
	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/v1/checkouts/checkout-1/alerts", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alerts":[]}`, rec.Body.String())

	svc = &MockService{err: service.ErrSessionNotFound}
	rec = do(t, newTestRouter(svc), http.MethodGet, "/api/v1/checkouts/checkout-1/alerts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(&MockService{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	router := newTestRouter(&MockService{},
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestCORSPreflight(t *testing.T) {
	rec := do(t, newTestRouter(&MockService{}), http.MethodOptions, "/api/v1/checkouts/checkout-1/submit", nil,
		"Origin", "https://shop.test",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, "https://shop.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, newTestRouter(&MockService{}), http.MethodOptions, "/api/v1/checkouts/checkout-1/submit", nil,
		"Origin", "https://evil.test",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = bearerToken("bearer ")
	assert.False(t, ok)
	_, ok = bearerToken("")
	assert.False(t, ok)
}
