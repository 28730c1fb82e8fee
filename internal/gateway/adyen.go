package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cass-tech/storefront/internal/domain"
)

type adyenPayload struct {
	PaymentMethodsResponse json.RawMessage `json:"paymentMethodsResponse"`
	ClientKey              string          `json:"clientKey"`
	Environment            string          `json:"environment"`
}

// Adyen renders the Adyen drop-in.
type Adyen struct {
	init TransactionInitializer
}

func NewAdyen(init TransactionInitializer) *Adyen {
	return &Adyen{init: init}
}

func (a *Adyen) ID() domain.GatewayID { return domain.AdyenGatewayID }

func (a *Adyen) Initialize(ctx context.Context, checkoutID, returnURL string) (*domain.TransactionIntent, error) {
	intent, err := a.init.TransactionInitialize(ctx, checkoutID, a.ID(), map[string]any{
		"action":    "paymentMethods",
		"returnUrl": returnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("adyen initialize: %w", err)
	}
	intent.ReturnURL = returnURL
	return intent, nil
}

func (a *Adyen) Present(intent *domain.TransactionIntent) (*Presentation, error) {
	if err := checkIntent(a.ID(), intent); err != nil {
		return nil, err
	}
	var payload adyenPayload
	if err := json.Unmarshal(intent.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.ClientKey == "" || len(payload.PaymentMethodsResponse) == 0 {
		return nil, fmt.Errorf("%w: missing client key or payment methods", ErrInvalidPayload)
	}
	env := payload.Environment
	if env == "" {
		env = "test"
	}

	return &Presentation{
		Kind:      PresentationRender,
		GatewayID: a.ID(),
		Component: "adyen-dropin",
		Props: map[string]any{
			"paymentMethodsResponse": payload.PaymentMethodsResponse,
			"clientKey":              payload.ClientKey,
			"environment":            env,
			"returnUrl":              intent.ReturnURL,
		},
	}, nil
}
