package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cass-tech/storefront/internal/domain"
)

var (
	ErrUnknownGateway  = errors.New("unknown payment gateway")
	ErrInvalidPayload  = errors.New("invalid transaction payload")
	ErrGatewayMismatch = errors.New("transaction intent belongs to another gateway")
)

type PresentationKind string

const (
	PresentationNone     PresentationKind = "none"
	PresentationRender   PresentationKind = "render"
	PresentationRedirect PresentationKind = "redirect"
)

// Presentation tells the browser what to show in the payment section.
type Presentation struct {
	Kind        PresentationKind `json:"kind"`
	GatewayID   domain.GatewayID `json:"gatewayId,omitempty"`
	Component   string           `json:"component,omitempty"`
	Props       map[string]any   `json:"props,omitempty"`
	RedirectURL string           `json:"redirectUrl,omitempty"`
}

// None is shown until a transaction intent exists.
func None() *Presentation {
	return &Presentation{Kind: PresentationNone}
}

// TransactionInitializer starts a payment transaction on the checkout API.
type TransactionInitializer interface {
	TransactionInitialize(ctx context.Context, checkoutID string, gatewayID domain.GatewayID, data any) (*domain.TransactionIntent, error)
}

type Handler interface {
	ID() domain.GatewayID
	// Initialize creates the transaction intent for checkoutID.
	Initialize(ctx context.Context, checkoutID, returnURL string) (*domain.TransactionIntent, error)
	// Present turns an intent into what the browser renders or follows.
	Present(intent *domain.TransactionIntent) (*Presentation, error)
}

type Registry struct {
	handlers map[domain.GatewayID]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[domain.GatewayID]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.ID()] = h
	}
	return r
}

// NewDefaultRegistry registers the built-in handlers named in enabled. An
// empty enabled list registers all of them.
func NewDefaultRegistry(init TransactionInitializer, enabled []string) (*Registry, error) {
	all := map[domain.GatewayID]Handler{
		domain.AdyenGatewayID:   NewAdyen(init),
		domain.StripeGatewayID:  NewStripe(init),
		domain.PayfastGatewayID: NewPayfast(init),
	}
	if len(enabled) == 0 {
		r := &Registry{handlers: all}
		return r, nil
	}

	r := &Registry{handlers: make(map[domain.GatewayID]Handler, len(enabled))}
	for _, id := range enabled {
		h, ok := all[domain.GatewayID(id)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, id)
		}
		r.handlers[h.ID()] = h
	}
	return r, nil
}

func (r *Registry) Get(id domain.GatewayID) (Handler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, id)
	}
	return h, nil
}

func (r *Registry) IDs() []domain.GatewayID {
	ids := make([]domain.GatewayID, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func checkIntent(id domain.GatewayID, intent *domain.TransactionIntent) error {
	if intent == nil || len(intent.Data) == 0 {
		return ErrInvalidPayload
	}
	if intent.GatewayID != id {
		return fmt.Errorf("%w: %s", ErrGatewayMismatch, intent.GatewayID)
	}
	return nil
}
