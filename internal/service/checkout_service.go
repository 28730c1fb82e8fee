package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cass-tech/storefront/internal/alerts"
	"github.com/cass-tech/storefront/internal/cache"
	"github.com/cass-tech/storefront/internal/coordinator"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/gateway"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/repository"
	"github.com/cass-tech/storefront/internal/updates"
	"github.com/cass-tech/storefront/internal/validation"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CheckoutAPI is the subset of the remote checkout API the service drives.
type CheckoutAPI interface {
	Checkout(ctx context.Context, id string) (*domain.Checkout, error)
	UpdateEmail(ctx context.Context, id, email string) (*domain.Checkout, error)
	UpdateBillingAddress(ctx context.Context, id string, address domain.Address) (*domain.Checkout, error)
	UpdateShippingAddress(ctx context.Context, id string, address domain.Address) (*domain.Checkout, error)
	UpdateLines(ctx context.Context, id string, lines []domain.LineUpdate) (*domain.Checkout, error)
	CheckoutComplete(ctx context.Context, id string) (*domain.Order, error)
	Me(ctx context.Context) (*domain.Customer, error)
}

type Options struct {
	StorefrontURL  string
	DefaultChannel string
	// SubmitWait bounds how long Submit and Return block for an outcome.
	SubmitWait    time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type CheckoutService struct {
	api      CheckoutAPI
	gateways *gateway.Registry
	guard    cache.CompletionGuard
	ledger   repository.Ledger
	sessions *Store
	opts     Options

	completions singleflight.Group
}

// NewCheckoutService wires the session store. guard and ledger are optional.
func NewCheckoutService(api CheckoutAPI, gateways *gateway.Registry, guard cache.CompletionGuard, ledger repository.Ledger, opts Options) *CheckoutService {
	if opts.SubmitWait <= 0 {
		opts.SubmitWait = 20 * time.Second
	}
	return &CheckoutService{
		api:      api,
		gateways: gateways,
		guard:    guard,
		ledger:   ledger,
		sessions: NewStore(opts.IdleTTL, opts.SweepInterval),
		opts:     opts,
	}
}

func (svc *CheckoutService) Close() error {
	return svc.sessions.Close()
}

// session returns the live session for checkoutID, loading the checkout the
// first time it is seen.
func (svc *CheckoutService) session(ctx context.Context, checkoutID, channel string) (*Session, error) {
	sess, created := svc.sessions.GetOrCreate(checkoutID, func() *Session {
		return newSession(checkoutID, channel, svc)
	})
	if created {
		sess.loadErr = svc.load(ctx, sess)
		close(sess.ready)
		if sess.loadErr != nil {
			svc.sessions.Remove(sess)
			return nil, sess.loadErr
		}
	} else {
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if sess.loadErr != nil {
			return nil, sess.loadErr
		}
	}
	sess.touch()
	return sess, nil
}

func (svc *CheckoutService) load(ctx context.Context, sess *Session) error {
	ctx = log.WithLogField(ctx, "checkout_id", sess.id)
	rid := sess.updates.Begin(updates.KindCheckoutFetch)
	checkout, err := svc.api.Checkout(context.WithoutCancel(ctx), sess.id)
	if err == nil {
		sess.setCheckout(checkout)
		if sess.Channel() == "" {
			sess.mu.Lock()
			sess.channel = svc.opts.DefaultChannel
			sess.mu.Unlock()
		}
	}
	sess.updates.Finish(rid, err)
	if err != nil {
		log.L(ctx).WithError(err).Warn("failed to load checkout")
		return fmt.Errorf("load checkout: %w", err)
	}
	return nil
}

func (svc *CheckoutService) View(ctx context.Context, checkoutID, channel string) (*View, error) {
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	return sess.view(svc.gateways.IDs()), nil
}

// Alerts drains the session's alert queue.
func (svc *CheckoutService) Alerts(_ context.Context, checkoutID string) ([]alerts.Alert, error) {
	sess, err := svc.sessions.Get(checkoutID)
	if err != nil {
		return nil, err
	}
	sess.touch()
	return sess.alerts.Drain(), nil
}

// mutate sends one tracked update. The call is not cancelled with the
// request; failures become a generic alert.
func (svc *CheckoutService) mutate(ctx context.Context, sess *Session, kind updates.UpdateKind, fn func(context.Context) (*domain.Checkout, error)) error {
	ctx = log.WithLogField(ctx, "checkout_id", sess.id)
	rid := sess.updates.Begin(kind)
	checkout, err := fn(context.WithoutCancel(ctx))
	if err == nil {
		sess.setCheckout(checkout)
	}
	sess.updates.Finish(rid, err)
	if err != nil {
		log.L(ctx).WithError(err).WithField("update", string(kind)).Error("checkout update failed")
		sess.alerts.ShowCustomErrors(alerts.SomethingWentWrong)
		return fmt.Errorf("update %s: %w", kind, err)
	}
	return nil
}

func (svc *CheckoutService) UpdateEmail(ctx context.Context, checkoutID, channel, email string) (*View, error) {
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	errs := validation.ValidateEmail(email)
	sess.validation.SetFormStatus(validation.GuestUserForm, errs)
	if len(errs) > 0 {
		return sess.view(svc.gateways.IDs()), &FormError{Form: validation.GuestUserForm, Errors: errs}
	}
	err = svc.mutate(ctx, sess, updates.KindEmail, func(ctx context.Context) (*domain.Checkout, error) {
		return svc.api.UpdateEmail(ctx, checkoutID, email)
	})
	return sess.view(svc.gateways.IDs()), err
}

func (svc *CheckoutService) UpdateBillingAddress(ctx context.Context, checkoutID, channel string, address domain.Address) (*View, error) {
	return svc.updateAddress(ctx, checkoutID, channel, validation.BillingAddressForm, updates.KindBillingAddress, address,
		svc.api.UpdateBillingAddress)
}

func (svc *CheckoutService) UpdateShippingAddress(ctx context.Context, checkoutID, channel string, address domain.Address) (*View, error) {
	return svc.updateAddress(ctx, checkoutID, channel, validation.ShippingAddressForm, updates.KindShippingAddress, address,
		svc.api.UpdateShippingAddress)
}

func (svc *CheckoutService) updateAddress(
	ctx context.Context,
	checkoutID, channel string,
	form validation.FormID,
	kind updates.UpdateKind,
	address domain.Address,
	send func(context.Context, string, domain.Address) (*domain.Checkout, error),
) (*View, error) {
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	errs := validation.ValidateAddress(&address)
	sess.validation.SetFormStatus(form, errs)
	if len(errs) > 0 {
		return sess.view(svc.gateways.IDs()), &FormError{Form: form, Errors: errs}
	}
	err = svc.mutate(ctx, sess, kind, func(ctx context.Context) (*domain.Checkout, error) {
		return send(ctx, checkoutID, address)
	})
	return sess.view(svc.gateways.IDs()), err
}

func (svc *CheckoutService) UpdateLines(ctx context.Context, checkoutID, channel string, lines []domain.LineUpdate) (*View, error) {
	if len(lines) == 0 {
		return nil, ErrInvalidLineUpdates
	}
	for _, l := range lines {
		if (l.LineID == "" && l.VariantID == "") || l.Quantity < 0 {
			return nil, ErrInvalidLineUpdates
		}
	}
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	err = svc.mutate(ctx, sess, updates.KindLines, func(ctx context.Context) (*domain.Checkout, error) {
		return svc.api.UpdateLines(ctx, checkoutID, lines)
	})
	return sess.view(svc.gateways.IDs()), err
}

// InitializePayment mounts gatewayID's handler: it creates the transaction
// intent and stores what the payment section should show.
func (svc *CheckoutService) InitializePayment(ctx context.Context, checkoutID, channel string, gatewayID domain.GatewayID) (*View, error) {
	handler, err := svc.gateways.Get(gatewayID)
	if err != nil {
		return nil, err
	}
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	if sess.State().Completed {
		return sess.view(svc.gateways.IDs()), ErrCheckoutCompleted
	}
	ctx = log.WithLogField(ctx, "checkout_id", checkoutID)

	sess.mu.Lock()
	sess.gatewayID = gatewayID
	sess.intent = nil
	sess.presentation = gateway.None()
	sess.handedOff = false
	sess.mu.Unlock()

	intent, attemptID, err := svc.initialize(ctx, sess, handler)
	var pres *gateway.Presentation
	if err == nil {
		pres, err = handler.Present(intent)
		if err != nil {
			svc.updateAttempt(ctx, attemptID, domain.AttemptFailed, err)
		}
	}
	if err != nil {
		log.L(ctx).WithError(err).WithField("gateway", gatewayID.String()).Error("payment initialization failed")
		sess.alerts.ShowCustomErrors(alerts.PaymentInitFailed)
		return sess.view(svc.gateways.IDs()), fmt.Errorf("%w: %w", ErrPaymentInitFailed, err)
	}

	sess.mu.Lock()
	if sess.gatewayID == gatewayID {
		sess.intent = intent
		sess.attemptID = attemptID
		sess.presentation = pres
	}
	sess.mu.Unlock()
	return sess.view(svc.gateways.IDs()), nil
}

// initialize runs the handler's transactionInitialize and records the attempt.
func (svc *CheckoutService) initialize(ctx context.Context, sess *Session, handler gateway.Handler) (*domain.TransactionIntent, string, error) {
	attempt := &domain.PaymentAttempt{
		ID:         uuid.NewString(),
		CheckoutID: sess.id,
		GatewayID:  handler.ID(),
		Status:     domain.AttemptInitialized,
	}
	intent, err := handler.Initialize(context.WithoutCancel(ctx), sess.id, svc.ReturnURL(sess.id, sess.Channel()))
	if err != nil {
		attempt.Status = domain.AttemptFailed
		attempt.Error = err.Error()
	} else {
		attempt.TransactionID = intent.TransactionID
	}
	svc.recordAttempt(ctx, attempt)
	if err != nil {
		return nil, "", err
	}
	return intent, attempt.ID, nil
}

// handOff passes control to the selected gateway once a submission settled.
// A missing intent is created on the spot; the intent is discarded after.
func (svc *CheckoutService) handOff(ctx context.Context, sess *Session) (*gateway.Presentation, error) {
	sess.mu.RLock()
	gatewayID, intent, attemptID := sess.gatewayID, sess.intent, sess.attemptID
	sess.mu.RUnlock()

	if gatewayID == "" {
		return nil, ErrNoPaymentMethod
	}
	handler, err := svc.gateways.Get(gatewayID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		intent, attemptID, err = svc.initialize(ctx, sess, handler)
		if err != nil {
			return nil, err
		}
	}
	pres, err := handler.Present(intent)
	if err != nil {
		svc.updateAttempt(ctx, attemptID, domain.AttemptFailed, err)
		return nil, err
	}

	sess.mu.Lock()
	sess.presentation = pres
	sess.handedOff = true
	sess.intent = nil
	sess.mu.Unlock()

	svc.updateAttempt(ctx, attemptID, domain.AttemptHandedOff, nil)
	return pres, nil
}

// Submit starts a submission and waits until it failed or handed off.
// It returns early with the current view when the wait bound elapses.
func (svc *CheckoutService) Submit(ctx context.Context, checkoutID, channel string, authenticated bool) (*View, error) {
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	if authenticated {
		authenticated = svc.signedIn(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, svc.opts.SubmitWait)
	defer cancel()

	res, err := sess.dispatch(waitCtx, coordinator.Submit{Authenticated: authenticated})
	if err != nil {
		return nil, err
	}
	if res.next.Attempt == res.prev.Attempt {
		view := sess.view(svc.gateways.IDs())
		if res.prev.Completed {
			return view, ErrCheckoutCompleted
		}
		return view, ErrSubmitInProgress
	}

	attempt := res.next.Attempt
	_, err = sess.waitFor(waitCtx, func(st coordinator.State) bool {
		return st.Attempt != attempt || st.CompletingCheckout ||
			(!st.SubmitInProgress && st.Phase != domain.PhaseCompleting)
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, ErrSessionClosed) {
		return nil, err
	}
	return sess.view(svc.gateways.IDs()), nil
}

// Return handles the shopper coming back from a hosted payment page. With
// processingPayment set it completes the checkout at most once.
func (svc *CheckoutService) Return(ctx context.Context, checkoutID, channel string, processingPayment bool) (*View, error) {
	sess, err := svc.session(ctx, checkoutID, channel)
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, svc.opts.SubmitWait)
	defer cancel()

	res, err := sess.dispatch(waitCtx, coordinator.Return{ProcessingPayment: processingPayment})
	if err != nil {
		return nil, err
	}
	if res.next.CompletingCheckout {
		_, err = sess.waitFor(waitCtx, func(st coordinator.State) bool { return !st.CompletingCheckout })
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrSessionClosed) {
			return nil, err
		}
	}

	view := sess.view(svc.gateways.IDs())
	sess.mu.RLock()
	completionErr := sess.completionErr
	sess.mu.RUnlock()
	if errors.Is(completionErr, cache.ErrCompletionInProgress) && !view.Submission.Completed {
		return view, completionErr
	}
	return view, nil
}

// complete calls checkoutComplete at most once per checkout: concurrent
// callers in this process share one call, other replicas are kept out by the
// Redis guard, and a finished order is replayed instead of re-submitted.
func (svc *CheckoutService) complete(ctx context.Context, sess *Session) (*domain.Order, error) {
	v, err, shared := svc.completions.Do(sess.id, func() (any, error) {
		return svc.completeOnce(ctx, sess)
	})
	if shared {
		log.L(ctx).Debug("joined in-flight checkout completion")
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

// signedIn reports whether the request's bearer token belongs to a customer account.
// Anything short of a resolved customer submits as a guest.
func (svc *CheckoutService) signedIn(ctx context.Context) bool {
	customer, err := svc.api.Me(ctx)
	switch {
	case err != nil:
		log.L(ctx).WithError(err).Warn("failed to resolve customer, submitting as guest")
		return false
	case customer == nil:
		log.L(ctx).Info("auth token has no customer, submitting as guest")
		return false
	}
	return true
}

func (svc *CheckoutService) completeOnce(ctx context.Context, sess *Session) (*domain.Order, error) {
	logger := log.L(ctx)
	if svc.guard != nil {
		order, err := svc.guard.CompletedOrder(ctx, sess.id)
		switch {
		case err == nil:
			logger.WithField("order_id", order.ID).Info("replaying completed order")
			return order, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.WithError(err).Warn("completed order lookup failed")
		}

		token, err := svc.guard.Acquire(ctx, sess.id)
		switch {
		case errors.Is(err, cache.ErrCompletionInProgress):
			return nil, err
		case err != nil:
			logger.WithError(err).Warn("completion guard unavailable, completing without it")
		default:
			defer func() {
				if err := svc.guard.Release(ctx, sess.id, token); err != nil {
					logger.WithError(err).Warn("failed to release completion guard")
				}
			}()
			// another replica may have finished between the lookup and the lock
			if order, err := svc.guard.CompletedOrder(ctx, sess.id); err == nil {
				logger.WithField("order_id", order.ID).Info("replaying order completed elsewhere")
				return order, nil
			}
		}
	}

	order, err := svc.api.CheckoutComplete(ctx, sess.id)
	if err != nil {
		sess.mu.RLock()
		gatewayID := sess.gatewayID
		sess.mu.RUnlock()
		svc.recordAttempt(ctx, &domain.PaymentAttempt{
			ID:         uuid.NewString(),
			CheckoutID: sess.id,
			GatewayID:  gatewayID,
			Status:     domain.AttemptFailed,
			Error:      err.Error(),
		})
		return nil, fmt.Errorf("complete checkout: %w", err)
	}

	if svc.guard != nil {
		if err := svc.guard.StoreCompletedOrder(ctx, sess.id, order); err != nil {
			logger.WithError(err).Warn("failed to cache completed order")
		}
	}
	svc.recordCompletion(ctx, sess, order)
	logger.WithField("order_id", order.ID).Info("checkout completed")
	return order, nil
}

func (svc *CheckoutService) recordAttempt(ctx context.Context, attempt *domain.PaymentAttempt) {
	if svc.ledger == nil {
		return
	}
	if err := svc.ledger.RecordAttempt(ctx, attempt); err != nil {
		log.L(ctx).WithError(err).Warn("failed to record payment attempt")
	}
}

func (svc *CheckoutService) updateAttempt(ctx context.Context, id string, status domain.AttemptStatus, cause error) {
	if svc.ledger == nil || id == "" {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := svc.ledger.UpdateAttemptStatus(ctx, id, status, msg); err != nil {
		log.L(ctx).WithError(err).Warn("failed to update payment attempt")
	}
}

func (svc *CheckoutService) recordCompletion(ctx context.Context, sess *Session, order *domain.Order) {
	if svc.ledger == nil {
		return
	}
	sess.mu.RLock()
	gatewayID, channel, checkout := sess.gatewayID, sess.channel, sess.checkout
	sess.mu.RUnlock()

	now := time.Now().UTC()
	event := domain.CheckoutCompleted{
		CheckoutID:  sess.id,
		Channel:     channel,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		GatewayID:   gatewayID,
		CompletedAt: now,
	}
	if checkout != nil {
		event.Email = checkout.Email
		event.TotalAmount = checkout.Totals.Total.Amount
		event.Currency = checkout.Totals.Total.Currency
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.L(ctx).WithError(err).Error("failed to marshal checkout completed event")
		return
	}

	attempt := &domain.PaymentAttempt{
		ID:         uuid.NewString(),
		CheckoutID: sess.id,
		GatewayID:  gatewayID,
		Status:     domain.AttemptCompleted,
		OrderID:    order.ID,
		CreatedAt:  now,
	}
	outbox := &repository.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: sess.id,
		EventType:   domain.CheckoutCompletedEvent,
		Payload:     payload,
		CreatedAt:   now,
	}
	if err := svc.ledger.RecordCompletion(ctx, attempt, outbox); err != nil {
		log.L(ctx).WithError(err).Error("failed to record checkout completion")
	}
}

// ReturnURL is where hosted payment pages send the shopper back to.
func (svc *CheckoutService) ReturnURL(checkoutID, channel string) string {
	if channel == "" {
		channel = svc.opts.DefaultChannel
	}
	u, err := url.Parse(svc.opts.StorefrontURL)
	if err != nil {
		u = &url.URL{}
	}
	u = u.JoinPath(channel, "checkout")
	q := u.Query()
	q.Set("checkout", checkoutID)
	q.Set("processingPayment", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// Gateways lists the payment apps this storefront can mount.
func (svc *CheckoutService) Gateways() []domain.GatewayID {
	return svc.gateways.IDs()
}
