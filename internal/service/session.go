package service

import (
	"context"
	"sync"
	"time"

	"github.com/cass-tech/storefront/internal/alerts"
	"github.com/cass-tech/storefront/internal/coordinator"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/gateway"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/updates"
	"github.com/cass-tech/storefront/internal/validation"
)

const eventBuffer = 16

type transitionResult struct {
	prev, next coordinator.State
}

type envelope struct {
	ev    coordinator.Event
	reply chan transitionResult
}

// Session is the server side of one shopper's payment section. A single
// goroutine owns the coordinator state; tracker changes and async results
// reach it as events, so transitions never interleave.
type Session struct {
	id  string
	svc *CheckoutService

	validation *validation.Tracker
	updates    *updates.Tracker
	alerts     *alerts.Channel

	events   chan envelope
	observe  chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	ready    chan struct{}
	loadErr  error
	wg       sync.WaitGroup
	closer   sync.Once

	mu            sync.RWMutex
	channel       string
	checkout      *domain.Checkout
	state         coordinator.State
	settled       coordinator.State
	gatewayID     domain.GatewayID
	intent        *domain.TransactionIntent
	attemptID     string
	presentation  *gateway.Presentation
	handedOff     bool
	completionErr error
	changed       chan struct{}
	lastActive    time.Time
}

func newSession(id, channel string, svc *CheckoutService) *Session {
	s := &Session{
		id:           id,
		svc:          svc,
		alerts:       alerts.NewChannel(0),
		updates:      updates.NewTracker(),
		events:       make(chan envelope, eventBuffer),
		observe:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		ready:        make(chan struct{}),
		channel:      channel,
		state:        coordinator.Initial(),
		settled:      coordinator.Initial(),
		presentation: gateway.None(),
		changed:      make(chan struct{}),
		lastActive:   time.Now(),
	}
	s.validation = validation.NewTracker(s.Checkout, validation.CheckoutForms()...)
	s.validation.Subscribe(s.signal)
	s.updates.Subscribe(s.signal)
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Checkout() *domain.Checkout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkout
}

func (s *Session) setCheckout(c *domain.Checkout) {
	s.mu.Lock()
	s.checkout = c
	if s.channel == "" && c != nil {
		s.channel = c.Channel
	}
	s.mu.Unlock()
}

func (s *Session) Channel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

func (s *Session) State() coordinator.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// idleSince reports when the session was last used, or zero while a
// completion is running.
func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.CompletingCheckout {
		return time.Time{}
	}
	return s.lastActive
}

func (s *Session) ctx() context.Context {
	return log.WithLogField(context.Background(), "checkout_id", s.id)
}

// signal schedules an Observe. Bursts of tracker changes collapse into one
// snapshot taken when the loop gets to it.
func (s *Session) signal() {
	select {
	case s.observe <- struct{}{}:
	default:
	}
}

func (s *Session) run() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case env := <-s.events:
			res := s.apply(env.ev)
			if env.reply != nil {
				env.reply <- res
			}
		case <-s.observe:
			s.apply(coordinator.Observe{
				Validation: s.validation.Snapshot(),
				Updates:    s.updates.Snapshot(),
			})
		}
	}
}

func (s *Session) apply(ev coordinator.Event) transitionResult {
	s.mu.Lock()
	prev := s.state
	next, effects := coordinator.Transition(prev, ev)
	s.state = next
	s.mu.Unlock()

	if next.Phase != prev.Phase {
		log.L(s.ctx()).Debugf("submission %s -> %s (attempt %d)", prev.Phase, next.Phase, next.Attempt)
	}
	for _, eff := range effects {
		s.execute(eff)
	}

	// waiters only see a state once its inline effects, alerts included, ran
	s.mu.Lock()
	if next != s.settled {
		s.settled = next
		close(s.changed)
		s.changed = make(chan struct{})
	}
	s.mu.Unlock()
	return transitionResult{prev: prev, next: next}
}

// execute runs tracker effects inline so the next Observe already sees them.
// Network effects run in the background and report back as events.
func (s *Session) execute(eff coordinator.Effect) {
	ctx := s.ctx()
	switch e := eff.(type) {
	case coordinator.ResetUpdateErrors:
		s.updates.ResetErrors()
	case coordinator.SetShouldRegisterUser:
		s.updates.SetShouldRegisterUser(e.Value)
	case coordinator.SetSubmitInProgress:
		s.updates.SetSubmitInProgress(e.Value)
	case coordinator.ValidateAllForms:
		s.validation.ValidateAllForms(ctx, e.Authenticated)
	case coordinator.HandOff:
		s.wg.Add(1)
		go s.handOff(ctx, e.Attempt)
	case coordinator.CompleteCheckout:
		s.wg.Add(1)
		go s.completeCheckout(ctx)
	case coordinator.ShowAlert:
		s.alerts.ShowCustomErrors(e.Message)
	}
}

func (s *Session) handOff(ctx context.Context, attempt uint64) {
	defer s.wg.Done()
	pres, err := s.svc.handOff(ctx, s)
	if err != nil {
		log.L(ctx).WithError(err).Warn("payment hand-off failed")
		s.post(coordinator.HandOffFailed{Attempt: attempt, Err: err})
		return
	}
	s.post(coordinator.HandedOff{Attempt: attempt, Redirect: pres.Kind == gateway.PresentationRedirect})
}

func (s *Session) completeCheckout(ctx context.Context) {
	defer s.wg.Done()
	order, err := s.svc.complete(ctx, s)
	if err != nil {
		log.L(ctx).WithError(err).Error("checkout completion failed")
	}
	s.mu.Lock()
	s.completionErr = err
	s.mu.Unlock()
	s.post(coordinator.CompletionFinished{Order: order, Err: err})
}

func (s *Session) post(ev coordinator.Event) {
	select {
	case s.events <- envelope{ev: ev}:
	case <-s.done:
	}
}

// dispatch hands ev to the loop and returns the state before and after it.
func (s *Session) dispatch(ctx context.Context, ev coordinator.Event) (transitionResult, error) {
	reply := make(chan transitionResult, 1)
	select {
	case s.events <- envelope{ev: ev, reply: reply}:
	case <-s.done:
		return transitionResult{}, ErrSessionClosed
	case <-ctx.Done():
		return transitionResult{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-s.done:
		return transitionResult{}, ErrSessionClosed
	case <-ctx.Done():
		return transitionResult{}, ctx.Err()
	}
}

// waitFor blocks until cond holds for the coordinator state.
func (s *Session) waitFor(ctx context.Context, cond func(coordinator.State) bool) (coordinator.State, error) {
	for {
		s.mu.RLock()
		st, changed := s.settled, s.changed
		s.mu.RUnlock()
		if cond(st) {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		case <-s.done:
			return st, ErrSessionClosed
		}
	}
}

// Close stops the loop and waits for background hand-offs and completions.
func (s *Session) Close() {
	s.closer.Do(func() {
		close(s.done)
		<-s.loopDone
		s.wg.Wait()
		s.validation.Wait()
	})
}
