package updates

// UpdateKind names the mutation a request performs against the checkout API.
type UpdateKind string

const (
	KindCheckoutFetch   UpdateKind = "checkoutFetch"
	KindEmail           UpdateKind = "email"
	KindBillingAddress  UpdateKind = "billingAddress"
	KindShippingAddress UpdateKind = "shippingAddress"
	KindLines           UpdateKind = "lines"
)

type RequestID uint64

type State struct {
	InFlight map[RequestID]UpdateKind `json:"inFlight"`
	// Completed counts every request that finished during the session.
	Completed int `json:"completed"`
	// Failed counts errored requests since the last ResetErrors.
	Failed             int    `json:"failed"`
	LastError          string `json:"lastError,omitempty"`
	SubmitInProgress   bool   `json:"submitInProgress"`
	ShouldRegisterUser bool   `json:"shouldRegisterUser"`
}

func AreAnyRequestsInProgress(s State) bool {
	return len(s.InFlight) > 0
}

// HasFinishedApiChangesWithNoError is true once nothing is in flight, at least
// one request has completed, and none has failed since the last reset.
func HasFinishedApiChangesWithNoError(s State) bool {
	return !AreAnyRequestsInProgress(s) && s.Completed > 0 && s.Failed == 0
}

func (s State) clone() State {
	out := s
	out.InFlight = make(map[RequestID]UpdateKind, len(s.InFlight))
	for id, k := range s.InFlight {
		out.InFlight[id] = k
	}
	return out
}
