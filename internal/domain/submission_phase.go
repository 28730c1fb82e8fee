package domain

type SubmissionPhase string

const (
	PhaseIdle       SubmissionPhase = "IDLE"
	PhaseSubmitting SubmissionPhase = "SUBMITTING"
	PhaseSettling   SubmissionPhase = "SETTLING"
	PhaseCompleting SubmissionPhase = "COMPLETING"
	PhaseFailed     SubmissionPhase = "FAILED"
)

var allowedPhaseTransitions = map[SubmissionPhase][]SubmissionPhase{
	PhaseIdle:       {PhaseSubmitting, PhaseCompleting},
	PhaseSubmitting: {PhaseSettling, PhaseCompleting, PhaseFailed},
	PhaseSettling:   {PhaseCompleting, PhaseFailed},
	PhaseCompleting: {PhaseIdle, PhaseFailed},
	PhaseFailed:     {PhaseIdle, PhaseSubmitting, PhaseCompleting},
}

// CanTransitionTo reports whether the coordinator may move from one phase to another.
// Staying in the same phase is always allowed.
func CanTransitionTo(from, to SubmissionPhase) bool {
	if from == to {
		return true
	}
	for _, p := range allowedPhaseTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// IsSettled is true once an attempt has stopped waiting on validation or updates.
func (p SubmissionPhase) IsSettled() bool {
	return p == PhaseIdle || p == PhaseFailed || p == PhaseCompleting
}

// String representation (for logging)
func (p SubmissionPhase) String() string {
	return string(p)
}
