package service

import (
	"github.com/cass-tech/storefront/internal/alerts"
	"github.com/cass-tech/storefront/internal/coordinator"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/gateway"
	"github.com/cass-tech/storefront/internal/updates"
	"github.com/cass-tech/storefront/internal/validation"
)

// UpdatesView is the update tracker reduced to what the page needs.
type UpdatesView struct {
	InProgress          bool   `json:"inProgress"`
	FinishedWithNoError bool   `json:"finishedWithNoError"`
	SubmitInProgress    bool   `json:"submitInProgress"`
	ShouldRegisterUser  bool   `json:"shouldRegisterUser"`
	Failed              int    `json:"failed"`
	LastError           string `json:"lastError,omitempty"`
}

type View struct {
	CheckoutID string                `json:"checkoutId"`
	Channel    string                `json:"channel"`
	Checkout   *domain.Checkout      `json:"checkout"`
	Validation validation.State      `json:"validation"`
	Updates    UpdatesView           `json:"updates"`
	Submission coordinator.State     `json:"submission"`
	Payment    *gateway.Presentation `json:"payment"`
	Gateways   []domain.GatewayID    `json:"availableGateways"`
	Alerts     []alerts.Alert        `json:"alerts"`
}

func (s *Session) view(gateways []domain.GatewayID) *View {
	u := s.updates.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return &View{
		CheckoutID: s.id,
		Channel:    s.channel,
		Checkout:   s.checkout,
		Validation: s.validation.Snapshot(),
		Updates: UpdatesView{
			InProgress:          updates.AreAnyRequestsInProgress(u),
			FinishedWithNoError: updates.HasFinishedApiChangesWithNoError(u),
			SubmitInProgress:    u.SubmitInProgress,
			ShouldRegisterUser:  u.ShouldRegisterUser,
			Failed:              u.Failed,
			LastError:           u.LastError,
		},
		Submission: s.state,
		Payment:    s.paymentPresentationLocked(),
		Gateways:   gateways,
		Alerts:     s.alerts.Peek(),
	}
}

// paymentPresentationLocked hides a redirect target until the submission has
// handed off to the gateway, so the browser cannot skip validation.
func (s *Session) paymentPresentationLocked() *gateway.Presentation {
	p := s.presentation
	if p == nil {
		return gateway.None()
	}
	if p.Kind != gateway.PresentationRedirect || s.handedOff {
		return p
	}
	return &gateway.Presentation{
		Kind:      gateway.PresentationRender,
		GatewayID: p.GatewayID,
		Component: "redirect-pay-button",
	}
}
