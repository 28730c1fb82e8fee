package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cass-tech/storefront/internal/domain"
)

type stripePayload struct {
	PaymentIntent struct {
		ClientSecret string `json:"client_secret"`
	} `json:"paymentIntent"`
	PublishableKey string `json:"publishableKey"`
}

// Stripe renders Stripe Elements with the intent's client secret.
type Stripe struct {
	init TransactionInitializer
}

func NewStripe(init TransactionInitializer) *Stripe {
	return &Stripe{init: init}
}

func (s *Stripe) ID() domain.GatewayID { return domain.StripeGatewayID }

func (s *Stripe) Initialize(ctx context.Context, checkoutID, returnURL string) (*domain.TransactionIntent, error) {
	intent, err := s.init.TransactionInitialize(ctx, checkoutID, s.ID(), map[string]any{
		"automatic_payment_methods": map[string]any{"enabled": true},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe initialize: %w", err)
	}
	intent.ReturnURL = returnURL
	return intent, nil
}

func (s *Stripe) Present(intent *domain.TransactionIntent) (*Presentation, error) {
	if err := checkIntent(s.ID(), intent); err != nil {
		return nil, err
	}
	var payload stripePayload
	if err := json.Unmarshal(intent.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.PaymentIntent.ClientSecret == "" || payload.PublishableKey == "" {
		return nil, fmt.Errorf("%w: missing client secret or publishable key", ErrInvalidPayload)
	}

	return &Presentation{
		Kind:      PresentationRender,
		GatewayID: s.ID(),
		Component: "stripe-elements",
		Props: map[string]any{
			"clientSecret":   payload.PaymentIntent.ClientSecret,
			"publishableKey": payload.PublishableKey,
			"returnUrl":      intent.ReturnURL,
		},
	}, nil
}
