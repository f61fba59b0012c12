package sim

import (
	"time"

	"aethersim/internal/fleet"
	"aethersim/internal/scoring"
	"aethersim/internal/telemetry"

	"github.com/google/uuid"
)

// stagedAssignment is a matched pair awaiting commit. Nothing is visible to
// the roster or the shared store until the whole stage commits.
type stagedAssignment struct {
	agentID string
	target  scoring.Target
}

// stageAssignments greedily matches the top focus targets to the nearest
// eligible agents. Targets arrive ranked highest score first; each takes the
// closest remaining agent, so a high-score cell is never starved by a lower
// one. A target already covered by a live assignment is skipped.
func (s *Simulator) stageAssignments(targets []scoring.Target, ts time.Time) []stagedAssignment {
	topK := s.cfg.Scoring.TopK
	if topK <= 0 {
		topK = 5
	}

	covered := make(map[string]bool, len(s.assignments))
	for _, a := range s.assignments {
		covered[a.CellKey] = true
	}

	eligible := s.roster.Eligible()
	var staged []stagedAssignment

	for _, t := range targets {
		if len(staged) >= topK || len(eligible) == 0 {
			break
		}
		if !s.scorer.ShouldFocus(t) {
			break // ranked order: everything after is below threshold too
		}
		if covered[t.Cell.Key()] {
			continue
		}

		best := -1
		bestDist := 0.0
		for i, a := range eligible {
			d := s.distance(a.Position.Lat, a.Position.Lon, t.Cell.Lat, t.Cell.Lon)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
		staged = append(staged, stagedAssignment{agentID: eligible[best].ID, target: t})
		covered[t.Cell.Key()] = true
		eligible = append(eligible[:best], eligible[best+1:]...)
	}
	return staged
}

// commitAssignments makes staged assignments live: one assignment record and
// one agent transition per pair, plus an assignment event. Callers have
// already decided the cycle is going through; nothing here can fail halfway.
func (s *Simulator) commitAssignments(staged []stagedAssignment, ts time.Time) []telemetry.EventRow {
	var events []telemetry.EventRow
	window := time.Duration(s.cfg.Outcome.WindowTicks) * s.tickInterval
	if window <= 0 {
		window = 10 * s.tickInterval
	}
	for _, st := range staged {
		ag := s.roster.Get(st.agentID)
		if ag == nil {
			continue
		}
		a := fleet.Assignment{
			ID:         uuid.New().String(),
			AgentID:    st.agentID,
			CellKey:    st.target.Cell.Key(),
			Target:     st.target.Cell,
			Score:      st.target.Score,
			ValidFrom:  ts,
			ValidUntil: ts.Add(window),
			UpdatedAt:  ts,
		}
		s.assignments[a.ID] = a
		s.agentAssignments[st.agentID] = a.ID
		ag.Status = fleet.StatusEnRoute
		ag.AssignedCell = a.CellKey
		ag.UpdatedAt = ts
		events = append(events, telemetry.EventRow{
			ClusterID: s.clusterID,
			EventType: telemetry.EventAssignment,
			AgentIDs:  []string{st.agentID},
			CellKey:   a.CellKey,
			Timestamp: ts,
		})
	}
	return events
}
