package updates

import "sync"

// Tracker records the lifecycle of every mutation sent for one checkout.
type Tracker struct {
	mu        sync.Mutex
	state     State
	next      RequestID
	observers []func()
}

func NewTracker() *Tracker {
	return &Tracker{state: State{InFlight: map[RequestID]UpdateKind{}}}
}

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

// Begin marks a request of the given kind as in flight.
func (t *Tracker) Begin(kind UpdateKind) RequestID {
	t.mu.Lock()
	t.next++
	id := t.next
	t.state.InFlight[id] = kind
	t.mu.Unlock()
	t.notify()
	return id
}

// Finish settles a request. A non-nil err makes the aggregate sticky-failed
// until ResetErrors.
func (t *Tracker) Finish(id RequestID, err error) {
	t.mu.Lock()
	if _, ok := t.state.InFlight[id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.state.InFlight, id)
	t.state.Completed++
	if err != nil {
		t.state.Failed++
		t.state.LastError = err.Error()
	}
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) ResetErrors() {
	t.set(func(s *State) {
		s.Failed = 0
		s.LastError = ""
	})
}

func (t *Tracker) SetSubmitInProgress(v bool) {
	t.set(func(s *State) { s.SubmitInProgress = v })
}

func (t *Tracker) SetShouldRegisterUser(v bool) {
	t.set(func(s *State) { s.ShouldRegisterUser = v })
}

func (t *Tracker) set(fn func(s *State)) {
	t.mu.Lock()
	fn(&t.state)
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
