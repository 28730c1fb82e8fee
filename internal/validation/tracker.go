package validation

import (
	"context"
	"sync"

	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/log"
)

// Validator checks one form against the cached checkout and returns its field errors.
type Validator func(ctx context.Context, checkout *domain.Checkout) []FieldError

type Form struct {
	ID FormID
	// GuestOnly forms are skipped (treated as valid) for signed in customers.
	GuestOnly bool
	Validate  Validator
}

// Tracker aggregates per-form validity for one checkout session.
type Tracker struct {
	mu         sync.Mutex
	forms      []Form
	state      State
	generation map[FormID]uint64
	observers  []func()
	source     func() *domain.Checkout
	wg         sync.WaitGroup
}

func NewTracker(source func() *domain.Checkout, forms ...Form) *Tracker {
	t := &Tracker{
		state:      State{},
		generation: map[FormID]uint64{},
		source:     source,
	}
	for _, f := range forms {
		t.Register(f)
	}
	return t
}

// Register adds a form; it starts out valid until its first validation run.
func (t *Tracker) Register(f Form) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forms = append(t.forms, f)
	t.state[f.ID] = FormStatus{Valid: true}
}

// Subscribe registers fn to be called after every state change.
func (t *Tracker) Subscribe(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// ValidateAllForms marks every form as validating and runs the validators
// asynchronously. Each result flips its form to valid or invalid when it lands.
func (t *Tracker) ValidateAllForms(ctx context.Context, authenticated bool) {
	ctx = context.WithoutCancel(ctx)

	type job struct {
		form Form
		gen  uint64
	}
	var jobs []job

	t.mu.Lock()
	for _, f := range t.forms {
		t.generation[f.ID]++
		if authenticated && f.GuestOnly {
			t.state[f.ID] = FormStatus{Valid: true}
			continue
		}
		t.state[f.ID] = FormStatus{Validating: true}
		jobs = append(jobs, job{form: f, gen: t.generation[f.ID]})
	}
	t.mu.Unlock()
	t.notify()

	for _, j := range jobs {
		t.wg.Add(1)
		go func(j job) {
			defer t.wg.Done()
			errs := j.form.Validate(ctx, t.source())
			if len(errs) > 0 {
				log.L(ctx).Debugf("form %s invalid: %d field errors", j.form.ID, len(errs))
			}
			t.report(j.form.ID, j.gen, errs)
		}(j)
	}
}

// SetFormStatus lets a form report its own validity outside a full run, e.g.
// after the customer edits an address.
func (t *Tracker) SetFormStatus(id FormID, errs []FieldError) {
	t.mu.Lock()
	t.generation[id]++
	gen := t.generation[id]
	t.mu.Unlock()
	t.report(id, gen, errs)
}

func (t *Tracker) report(id FormID, gen uint64, errs []FieldError) {
	t.mu.Lock()
	if t.generation[id] != gen {
		// a newer run owns this form
		t.mu.Unlock()
		return
	}
	t.state[id] = FormStatus{Valid: len(errs) == 0, Errors: errs}
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) notify() {
	t.mu.Lock()
	observers := append([]func(){}, t.observers...)
	t.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// Wait blocks until all running validators have reported.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
