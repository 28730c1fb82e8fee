package validation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cass-tech/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivations(t *testing.T) {
	assert.True(t, AreAllFormsValid(State{}))
	assert.False(t, AnyFormsValidating(State{}))

	s := State{
		GuestUserForm:      {Valid: true},
		BillingAddressForm: {Valid: true},
	}
	assert.True(t, AreAllFormsValid(s))

	s[BillingAddressForm] = FormStatus{Validating: true}
	assert.True(t, AnyFormsValidating(s))
	assert.False(t, AreAllFormsValid(s))

	// valid but still validating does not count as valid
	s[BillingAddressForm] = FormStatus{Valid: true, Validating: true}
	assert.False(t, AreAllFormsValid(s))

	s[BillingAddressForm] = FormStatus{Valid: false}
	assert.False(t, AnyFormsValidating(s))
	assert.False(t, AreAllFormsValid(s))
}

func newCheckout() *domain.Checkout {
	return &domain.Checkout{
		ID:                 "Q2hlY2tvdXQ6MQ==",
		Email:              "guest@example.com",
		BillingAddress:     validAddress(),
		IsShippingRequired: false,
	}
}

func TestValidateAllForms_AllValid(t *testing.T) {
	c := newCheckout()
	tr := NewTracker(func() *domain.Checkout { return c }, CheckoutForms()...)

	tr.ValidateAllForms(context.Background(), false)
	tr.Wait()

	s := tr.Snapshot()
	assert.False(t, AnyFormsValidating(s))
	assert.True(t, AreAllFormsValid(s))
}

func TestValidateAllForms_InvalidBilling(t *testing.T) {
	c := newCheckout()
	c.BillingAddress.City = ""
	tr := NewTracker(func() *domain.Checkout { return c }, CheckoutForms()...)

	tr.ValidateAllForms(context.Background(), false)
	tr.Wait()

	s := tr.Snapshot()
	assert.False(t, AreAllFormsValid(s))
	require.Len(t, s[BillingAddressForm].Errors, 1)
	assert.Equal(t, "city", s[BillingAddressForm].Errors[0].Field)
}

func TestValidateAllForms_AuthenticatedSkipsGuestForm(t *testing.T) {
	c := newCheckout()
	c.Email = ""
	var guestRuns int32
	forms := []Form{{
		ID:        GuestUserForm,
		GuestOnly: true,
		Validate: func(ctx context.Context, c *domain.Checkout) []FieldError {
			atomic.AddInt32(&guestRuns, 1)
			return guestUserValidator(ctx, c)
		},
	}}
	tr := NewTracker(func() *domain.Checkout { return c }, forms...)

	tr.ValidateAllForms(context.Background(), true)
	tr.Wait()
	assert.True(t, AreAllFormsValid(tr.Snapshot()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&guestRuns))

	tr.ValidateAllForms(context.Background(), false)
	tr.Wait()
	assert.False(t, AreAllFormsValid(tr.Snapshot()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&guestRuns))
}

func TestValidateAllForms_MarksValidatingUntilResolved(t *testing.T) {
	release := make(chan struct{})
	forms := []Form{{
		ID: BillingAddressForm,
		Validate: func(context.Context, *domain.Checkout) []FieldError {
			<-release
			return nil
		},
	}}
	tr := NewTracker(func() *domain.Checkout { return nil }, forms...)

	tr.ValidateAllForms(context.Background(), false)
	assert.True(t, AnyFormsValidating(tr.Snapshot()))

	close(release)
	tr.Wait()
	assert.False(t, AnyFormsValidating(tr.Snapshot()))
	assert.True(t, AreAllFormsValid(tr.Snapshot()))
}

func TestStaleResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	forms := []Form{{
		ID: BillingAddressForm,
		Validate: func(context.Context, *domain.Checkout) []FieldError {
			if atomic.AddInt32(&calls, 1) == 1 {
				<-release
				return []FieldError{{Field: "city", Code: "required"}}
			}
			return nil
		},
	}}
	tr := NewTracker(func() *domain.Checkout { return nil }, forms...)

	tr.ValidateAllForms(context.Background(), false)
	// second run overtakes the first
	tr.SetFormStatus(BillingAddressForm, nil)
	close(release)
	tr.Wait()

	assert.True(t, AreAllFormsValid(tr.Snapshot()))
}

func TestSubscribeNotifiesOnEveryChange(t *testing.T) {
	c := newCheckout()
	tr := NewTracker(func() *domain.Checkout { return c }, CheckoutForms()...)

	var mu sync.Mutex
	count := 0
	tr.Subscribe(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	tr.ValidateAllForms(context.Background(), false)
	tr.Wait()

	mu.Lock()
	defer mu.Unlock()
	// one notification for the validating flip, one per form result
	assert.Equal(t, 4, count)
}
