package saleor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cass-tech/storefront/internal/config"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type retryableKey struct{}
type authTokenKey struct{}

// WithAuthToken attaches the customer's access token to calls made with ctx.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey{}, token)
}

func authToken(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey{}).(string)
	return token
}

// Client talks GraphQL to the remote checkout API. Only read queries are
// retried; mutations are sent once.
type Client struct {
	endpoint string
	http     *resty.Client
	breaker  *gobreaker.CircuitBreaker[*resty.Response]
}

func NewClient(cfg config.SaleorConfig) *Client {
	httpClient := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil {
				return false
			}
			retryable, _ := r.Request.Context().Value(retryableKey{}).(bool)
			return retryable && (err != nil || r.StatusCode() >= http.StatusInternalServerError)
		})

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "saleor",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.L(context.Background()).Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		endpoint: cfg.APIURL,
		http:     httpClient,
		breaker:  breaker,
	}
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		req := c.http.R().
			SetContext(ctx).
			SetBody(graphQLRequest{Query: query, Variables: vars})
		if token := authToken(ctx); token != "" {
			req.SetAuthToken(token)
		}
		resp, err := req.Post(c.endpoint)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("status %d", resp.StatusCode())
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	var gr graphQLResponse
	if err := json.Unmarshal(resp.Body(), &gr); err != nil {
		if resp.IsError() {
			return &APIError{Op: op, StatusCode: resp.StatusCode()}
		}
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	if len(gr.Errors) > 0 || resp.IsError() {
		return &APIError{Op: op, StatusCode: resp.StatusCode(), GraphQLErrors: gr.Errors}
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("%s: %w", op, ErrEmptyPayload)
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("%s: failed to decode data: %w", op, err)
	}
	return nil
}

func (c *Client) Checkout(ctx context.Context, id string) (*domain.Checkout, error) {
	var out struct {
		Checkout *wireCheckout `json:"checkout"`
	}
	ctx = context.WithValue(ctx, retryableKey{}, true)
	if err := c.do(ctx, "checkout", checkoutQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Checkout == nil {
		return nil, ErrCheckoutNotFound
	}
	return out.Checkout.toDomain(), nil
}

// Me resolves the customer the request's auth token belongs to.
// It returns nil without a call when there is no token, and nil when the API does not recognise it.
func (c *Client) Me(ctx context.Context) (*domain.Customer, error) {
	if authToken(ctx) == "" {
		return nil, nil
	}
	var out struct {
		Me *domain.Customer `json:"me"`
	}
	ctx = context.WithValue(ctx, retryableKey{}, true)
	if err := c.do(ctx, "me", meQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Me, nil
}

func (c *Client) checkoutMutation(ctx context.Context, op, query string, vars map[string]any) (*domain.Checkout, error) {
	var out map[string]checkoutMutationPayload
	if err := c.do(ctx, op, query, vars, &out); err != nil {
		return nil, err
	}
	payload, ok := out[op]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPayload)
	}
	if len(payload.Errors) > 0 {
		return nil, &APIError{Op: op, StatusCode: http.StatusOK, MutationErrors: payload.Errors}
	}
	if payload.Checkout == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPayload)
	}
	return payload.Checkout.toDomain(), nil
}

func (c *Client) UpdateEmail(ctx context.Context, id, email string) (*domain.Checkout, error) {
	return c.checkoutMutation(ctx, "checkoutEmailUpdate", checkoutEmailUpdateMutation,
		map[string]any{"id": id, "email": email})
}

func (c *Client) UpdateBillingAddress(ctx context.Context, id string, address domain.Address) (*domain.Checkout, error) {
	return c.checkoutMutation(ctx, "checkoutBillingAddressUpdate", checkoutBillingAddressUpdateMutation,
		map[string]any{"id": id, "address": addressInput(address)})
}

func (c *Client) UpdateShippingAddress(ctx context.Context, id string, address domain.Address) (*domain.Checkout, error) {
	return c.checkoutMutation(ctx, "checkoutShippingAddressUpdate", checkoutShippingAddressUpdateMutation,
		map[string]any{"id": id, "address": addressInput(address)})
}

func (c *Client) UpdateLines(ctx context.Context, id string, lines []domain.LineUpdate) (*domain.Checkout, error) {
	return c.checkoutMutation(ctx, "checkoutLinesUpdate", checkoutLinesUpdateMutation,
		map[string]any{"id": id, "lines": lineInputs(lines)})
}

// TransactionInitialize asks the payment app behind gatewayID to start a
// transaction and returns its provider specific payload.
func (c *Client) TransactionInitialize(ctx context.Context, checkoutID string, gatewayID domain.GatewayID, data any) (*domain.TransactionIntent, error) {
	var out struct {
		TransactionInitialize *transactionInitializePayload `json:"transactionInitialize"`
	}
	vars := map[string]any{
		"checkoutId": checkoutID,
		"paymentGateway": map[string]any{
			"id":   gatewayID.String(),
			"data": data,
		},
	}
	if err := c.do(ctx, "transactionInitialize", transactionInitializeMutation, vars, &out); err != nil {
		return nil, err
	}
	payload := out.TransactionInitialize
	if payload == nil {
		return nil, fmt.Errorf("transactionInitialize: %w", ErrEmptyPayload)
	}
	if len(payload.Errors) > 0 {
		return nil, &APIError{Op: "transactionInitialize", StatusCode: http.StatusOK, MutationErrors: payload.Errors}
	}
	if len(payload.Data) == 0 || string(payload.Data) == "null" {
		return nil, fmt.Errorf("transactionInitialize: %w", ErrEmptyPayload)
	}

	intent := &domain.TransactionIntent{
		GatewayID: gatewayID,
		Data:      payload.Data,
		CreatedAt: time.Now(),
	}
	if payload.Transaction != nil {
		intent.TransactionID = payload.Transaction.ID
	}
	return intent, nil
}

func (c *Client) CheckoutComplete(ctx context.Context, checkoutID string) (*domain.Order, error) {
	var out struct {
		CheckoutComplete *checkoutCompletePayload `json:"checkoutComplete"`
	}
	if err := c.do(ctx, "checkoutComplete", checkoutCompleteMutation, map[string]any{"checkoutId": checkoutID}, &out); err != nil {
		return nil, err
	}
	payload := out.CheckoutComplete
	if payload == nil {
		return nil, fmt.Errorf("checkoutComplete: %w", ErrEmptyPayload)
	}
	if len(payload.Errors) > 0 {
		return nil, &APIError{Op: "checkoutComplete", StatusCode: http.StatusOK, MutationErrors: payload.Errors}
	}
	if payload.Order == nil {
		return nil, fmt.Errorf("checkoutComplete: %w", ErrEmptyPayload)
	}
	return payload.Order, nil
}
