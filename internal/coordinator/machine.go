// Package coordinator holds the checkout submission state machine. Transition
// is pure: it never performs I/O and returns the effects the caller must run.
package coordinator

import (
	"github.com/cass-tech/storefront/internal/alerts"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/updates"
	"github.com/cass-tech/storefront/internal/validation"
)

type State struct {
	Phase              domain.SubmissionPhase `json:"phase"`
	SubmitInProgress   bool                   `json:"submitInProgress"`
	Loading            bool                   `json:"loading"`
	CompletingCheckout bool                   `json:"completingCheckout"`
	Completed          bool                   `json:"completed"`
	// Attempt increments on every accepted submit; hand-off results for an
	// older attempt are dropped.
	Attempt uint64        `json:"attempt"`
	Order   *domain.Order `json:"order,omitempty"`
}

func Initial() State {
	return State{Phase: domain.PhaseIdle}
}

type Event interface{ event() }

type (
	Submit struct {
		Authenticated bool
	}
	// Observe carries the latest snapshot of both trackers.
	Observe struct {
		Validation validation.State
		Updates    updates.State
	}
	HandedOff struct {
		Attempt uint64
		// Redirect is true when the browser leaves the page.
		Redirect bool
	}
	HandOffFailed struct {
		Attempt uint64
		Err     error
	}
	Return struct {
		ProcessingPayment bool
	}
	CompletionFinished struct {
		Order *domain.Order
		Err   error
	}
)

func (Submit) event()             {}
func (Observe) event()            {}
func (HandedOff) event()          {}
func (HandOffFailed) event()      {}
func (Return) event()             {}
func (CompletionFinished) event() {}

type Effect interface{ effect() }

type (
	ResetUpdateErrors     struct{}
	SetShouldRegisterUser struct{ Value bool }
	SetSubmitInProgress   struct{ Value bool }
	ValidateAllForms      struct{ Authenticated bool }
	HandOff               struct{ Attempt uint64 }
	CompleteCheckout      struct{}
	ShowAlert             struct{ Message alerts.Message }
)

func (ResetUpdateErrors) effect()     {}
func (SetShouldRegisterUser) effect() {}
func (SetSubmitInProgress) effect()   {}
func (ValidateAllForms) effect()      {}
func (HandOff) effect()               {}
func (CompleteCheckout) effect()      {}
func (ShowAlert) effect()             {}

// Transition computes the next state for ev. Events that are not valid in
// the current state return s unchanged and no effects.
func Transition(s State, ev Event) (State, []Effect) {
	next, effects := transition(s, ev)
	if !domain.CanTransitionTo(s.Phase, next.Phase) {
		return s, nil
	}
	return next, effects
}

func transition(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Submit:
		return submit(s, ev)
	case Observe:
		return observe(s, ev)
	case HandedOff:
		if ev.Attempt != s.Attempt || s.Phase != domain.PhaseCompleting || s.CompletingCheckout {
			return s, nil
		}
		s.Phase = domain.PhaseIdle
		s.Loading = ev.Redirect
		return s, nil
	case HandOffFailed:
		if ev.Attempt != s.Attempt || s.Phase != domain.PhaseCompleting || s.CompletingCheckout {
			return s, nil
		}
		s.Phase = domain.PhaseFailed
		s.Loading = false
		return s, []Effect{ShowAlert{Message: alerts.PaymentInitFailed}}
	case Return:
		return returnFromRedirect(s, ev)
	case CompletionFinished:
		if !s.CompletingCheckout {
			return s, nil
		}
		s.CompletingCheckout = false
		s.Loading = false
		if ev.Err != nil || ev.Order == nil {
			s.Phase = domain.PhaseFailed
			return s, []Effect{ShowAlert{Message: alerts.CheckoutComplete}}
		}
		s.Phase = domain.PhaseIdle
		s.Completed = true
		s.Order = ev.Order
		return s, nil
	}
	return s, nil
}

func submit(s State, ev Submit) (State, []Effect) {
	if s.SubmitInProgress || s.CompletingCheckout || s.Completed || s.Phase == domain.PhaseCompleting {
		return s, nil
	}
	s.Phase = domain.PhaseSubmitting
	s.SubmitInProgress = true
	s.Loading = true
	s.Attempt++
	return s, []Effect{
		ResetUpdateErrors{},
		SetShouldRegisterUser{Value: true},
		SetSubmitInProgress{Value: true},
		ValidateAllForms{Authenticated: ev.Authenticated},
	}
}

func observe(s State, ev Observe) (State, []Effect) {
	if !s.SubmitInProgress {
		return s, nil
	}
	if validation.AnyFormsValidating(ev.Validation) || updates.AreAnyRequestsInProgress(ev.Updates) {
		s.Phase = domain.PhaseSettling
		return s, nil
	}

	s.SubmitInProgress = false
	effects := []Effect{SetSubmitInProgress{Value: false}}
	if !updates.HasFinishedApiChangesWithNoError(ev.Updates) || !validation.AreAllFormsValid(ev.Validation) {
		s.Phase = domain.PhaseFailed
		s.Loading = false
		return s, effects
	}
	s.Phase = domain.PhaseCompleting
	s.Loading = true
	return s, append(effects, HandOff{Attempt: s.Attempt})
}

func returnFromRedirect(s State, ev Return) (State, []Effect) {
	if !ev.ProcessingPayment || s.CompletingCheckout || s.Completed {
		return s, nil
	}
	var effects []Effect
	if s.SubmitInProgress {
		// A return supersedes whatever submission was still settling.
		s.SubmitInProgress = false
		effects = append(effects, SetSubmitInProgress{Value: false})
	}
	s.Phase = domain.PhaseCompleting
	s.CompletingCheckout = true
	s.Loading = true
	return s, append(effects, CompleteCheckout{})
}
