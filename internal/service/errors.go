package service

import (
	"errors"
	"fmt"

	"github.com/cass-tech/storefront/internal/validation"
)

var (
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrSessionClosed      = errors.New("checkout session closed")
	ErrSubmitInProgress   = errors.New("submission already in progress")
	ErrCheckoutCompleted  = errors.New("checkout already completed")
	ErrNoPaymentMethod    = errors.New("no payment method selected")
	ErrPaymentInitFailed  = errors.New("payment initialization failed")
	ErrInvalidLineUpdates = errors.New("line updates must name a line or a variant and a non-negative quantity")
)

// FormError carries the inline field errors of a form that failed local
// validation. No alert is raised for it.
type FormError struct {
	Form   validation.FormID
	Errors []validation.FieldError
}

func (e *FormError) Error() string {
	return fmt.Sprintf("form %s has %d invalid fields", e.Form, len(e.Errors))
}
