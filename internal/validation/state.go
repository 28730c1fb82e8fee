package validation

type FormID string

const (
	GuestUserForm       FormID = "guestUser"
	BillingAddressForm  FormID = "billingAddress"
	ShippingAddressForm FormID = "shippingAddress"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FormStatus struct {
	Valid      bool         `json:"valid"`
	Validating bool         `json:"validating"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// State is a point-in-time view of every registered form.
type State map[FormID]FormStatus

func AnyFormsValidating(s State) bool {
	for _, f := range s {
		if f.Validating {
			return true
		}
	}
	return false
}

// AreAllFormsValid is true iff every form is valid and none is still validating.
func AreAllFormsValid(s State) bool {
	for _, f := range s {
		if !f.Valid || f.Validating {
			return false
		}
	}
	return true
}

func (s State) clone() State {
	out := make(State, len(s))
	for id, f := range s {
		if f.Errors != nil {
			f.Errors = append([]FieldError(nil), f.Errors...)
		}
		out[id] = f
	}
	return out
}
