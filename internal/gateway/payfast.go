package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cass-tech/storefront/internal/domain"
)

type payfastPayload struct {
	PaymentIntent struct {
		ID         string `json:"id"`
		MPaymentID string `json:"m_payment_id"`
		PaymentURL string `json:"payment_url"`
	} `json:"paymentIntent"`
}

// Payfast hands the customer off to the hosted payment page.
type Payfast struct {
	init TransactionInitializer
}

func NewPayfast(init TransactionInitializer) *Payfast {
	return &Payfast{init: init}
}

func (p *Payfast) ID() domain.GatewayID { return domain.PayfastGatewayID }

func (p *Payfast) Initialize(ctx context.Context, checkoutID, returnURL string) (*domain.TransactionIntent, error) {
	intent, err := p.init.TransactionInitialize(ctx, checkoutID, p.ID(), map[string]any{
		"return_url": returnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("payfast initialize: %w", err)
	}
	intent.ReturnURL = returnURL
	return intent, nil
}

func (p *Payfast) Present(intent *domain.TransactionIntent) (*Presentation, error) {
	if err := checkIntent(p.ID(), intent); err != nil {
		return nil, err
	}
	var payload payfastPayload
	if err := json.Unmarshal(intent.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	u, err := url.Parse(payload.PaymentIntent.PaymentURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: payment_url %q", ErrInvalidPayload, payload.PaymentIntent.PaymentURL)
	}

	return &Presentation{
		Kind:        PresentationRedirect,
		GatewayID:   p.ID(),
		RedirectURL: u.String(),
		Props: map[string]any{
			"paymentId":  payload.PaymentIntent.ID,
			"mPaymentId": payload.PaymentIntent.MPaymentID,
		},
	}, nil
}
