package sim

import "aethersim/internal/feedback"

// OutcomeWriter handles closed-assignment outcome records.
type OutcomeWriter interface {
	WriteOutcome(feedback.OutcomeRecord) error
}

// Optional: outcome writers may support batch mode.
type batchOutcomeWriter interface {
	WriteOutcomes([]feedback.OutcomeRecord) error
}
