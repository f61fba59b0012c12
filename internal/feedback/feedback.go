// Outcome records and bounded scoring-weight updates
package feedback

import (
	"time"

	"aethersim/internal/fleet"
	"aethersim/internal/scoring"

	"github.com/google/uuid"
)

// Result of a closed assignment window.
type Result string

const (
	ResultSuccess      Result = "success"
	ResultFailure      Result = "failure"
	ResultInconclusive Result = "inconclusive"
)

// OutcomeRecord captures the result of one closed assignment. Immutable once
// written.
type OutcomeRecord struct {
	ID           string           `json:"id"`
	AssignmentID string           `json:"assignment_id"`
	AgentID      string           `json:"agent_id"`
	CellKey      string           `json:"cell_key"`
	Result       Result           `json:"result"`
	Score        float64          `json:"score"`
	Features     scoring.Features `json:"features"`
	DurationS    float64          `json:"duration_s"`
	Timestamp    time.Time        `json:"ts"`
}

// Loop consumes closed assignments and nudges the scorer's weight vector
// toward features correlated with success and away from failure. Updates are
// clamped by the scorer's bounds, so the weight vector can never drift out
// of range.
type Loop struct {
	scorer  *scoring.Scorer
	alpha   float64
	records []OutcomeRecord
	keep    int
}

// NewLoop creates a feedback loop. alpha is the update step; zero defaults
// to 0.05. keep bounds the retained record history (0 means 256).
func NewLoop(scorer *scoring.Scorer, alpha float64, keep int) *Loop {
	if alpha <= 0 {
		alpha = 0.05
	}
	if keep <= 0 {
		keep = 256
	}
	return &Loop{scorer: scorer, alpha: alpha, keep: keep}
}

// Close records the outcome of a finished assignment, updates the weight
// vector, and returns the new immutable record.
func (l *Loop) Close(a fleet.Assignment, result Result, now time.Time) OutcomeRecord {
	f := scoring.Normalize(a.Target)
	rec := OutcomeRecord{
		ID:           uuid.New().String(),
		AssignmentID: a.ID,
		AgentID:      a.AgentID,
		CellKey:      a.CellKey,
		Result:       result,
		Score:        a.Score,
		Features:     f,
		DurationS:    now.Sub(a.ValidFrom).Seconds(),
		Timestamp:    now.UTC(),
	}
	l.update(f, result)
	l.records = append(l.records, rec)
	if len(l.records) > l.keep {
		l.records = l.records[len(l.records)-l.keep:]
	}
	return rec
}

// update applies the bounded incremental rule: move each weight toward the
// observed feature on success, away on failure. Inconclusive outcomes leave
// the vector untouched. SetWeights clamps to the configured range.
func (l *Loop) update(f scoring.Features, result Result) {
	var dir float64
	switch result {
	case ResultSuccess:
		dir = 1
	case ResultFailure:
		dir = -1
	default:
		return
	}
	w := l.scorer.Weights()
	w.CAPE += dir * l.alpha * f.CAPE
	w.Vorticity += dir * l.alpha * f.Vorticity
	w.Humidity += dir * l.alpha * f.Humidity
	w.VerticalVelocity += dir * l.alpha * f.VerticalVelocity
	w.Anomaly += dir * l.alpha * f.Anomaly
	l.scorer.SetWeights(w)
}

// Records returns a copy of the retained outcome history, oldest first.
func (l *Loop) Records() []OutcomeRecord {
	out := make([]OutcomeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Recent returns up to n of the latest records, oldest first.
func (l *Loop) Recent(n int) []OutcomeRecord {
	if n <= 0 || n > len(l.records) {
		n = len(l.records)
	}
	out := make([]OutcomeRecord, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}
