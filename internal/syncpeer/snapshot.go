// Shared state snapshots with last-write-wins merge
package syncpeer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"aethersim/internal/feedback"
	"aethersim/internal/fleet"
)

// Snapshot is the serializable union of current agents, assignments, and
// recent outcome records exchanged between peers. Round-trippable through
// JSON.
type Snapshot struct {
	ClusterID   string                   `json:"cluster_id"`
	Agents      []fleet.Agent            `json:"agents"`
	Assignments []fleet.Assignment       `json:"assignments"`
	Outcomes    []feedback.OutcomeRecord `json:"outcomes"`
	Timestamp   time.Time                `json:"ts"`
}

// MergeConflictError reports two records sharing an id with identical
// timestamps but different content. Surfaced to the caller for manual
// resolution, never auto-resolved.
type MergeConflictError struct {
	Kind      string
	ID        string
	Timestamp time.Time
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: %s %s at %s has divergent content",
		e.Kind, e.ID, e.Timestamp.Format(time.RFC3339Nano))
}

// Store holds the merged shared state. Merges take the exclusive lock so
// they never interleave with the next tick's read.
type Store struct {
	mu          sync.Mutex
	agents      map[string]fleet.Agent
	assignments map[string]fleet.Assignment
	outcomes    map[string]feedback.OutcomeRecord
}

// NewStore creates an empty shared state store.
func NewStore() *Store {
	return &Store{
		agents:      make(map[string]fleet.Agent),
		assignments: make(map[string]fleet.Assignment),
		outcomes:    make(map[string]feedback.OutcomeRecord),
	}
}

// SetLocal replaces the store's view of locally owned entities. Local state
// is authoritative for this cluster's own agents; merge semantics still
// apply to anything learned from peers.
func (s *Store) SetLocal(agents []fleet.Agent, assignments []fleet.Assignment, outcomes []feedback.OutcomeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
	for _, o := range outcomes {
		s.outcomes[o.ID] = o
	}
}

// Merge folds a peer snapshot into the store, last-write-wins per entity id
// by timestamp. Entities absent from the incoming snapshot are left alone:
// absence means "no new information", not deletion. Merging the same
// snapshot twice yields the same store state as merging it once.
func (s *Store) Merge(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range snap.Agents {
		cur, ok := s.agents[in.ID]
		switch {
		case !ok, in.UpdatedAt.After(cur.UpdatedAt):
			s.agents[in.ID] = in
		case in.UpdatedAt.Equal(cur.UpdatedAt) && in != cur:
			return &MergeConflictError{Kind: "agent", ID: in.ID, Timestamp: in.UpdatedAt}
		}
	}
	for _, in := range snap.Assignments {
		cur, ok := s.assignments[in.ID]
		switch {
		case !ok, in.UpdatedAt.After(cur.UpdatedAt):
			s.assignments[in.ID] = in
		case in.UpdatedAt.Equal(cur.UpdatedAt) && in != cur:
			return &MergeConflictError{Kind: "assignment", ID: in.ID, Timestamp: in.UpdatedAt}
		}
	}
	for _, in := range snap.Outcomes {
		cur, ok := s.outcomes[in.ID]
		switch {
		case !ok:
			s.outcomes[in.ID] = in
		case in.Timestamp.Equal(cur.Timestamp) && in != cur:
			// Outcome records are immutable, so divergent content under the
			// same id is always a conflict.
			return &MergeConflictError{Kind: "outcome", ID: in.ID, Timestamp: in.Timestamp}
		case in.Timestamp.After(cur.Timestamp):
			s.outcomes[in.ID] = in
		}
	}
	return nil
}

// Snapshot builds a publishable snapshot. Assignments whose agent does not
// resolve within the same snapshot are dropped here, at publish time, so the
// snapshot invariant holds without mutating merged state.
func (s *Store) Snapshot(clusterID string, now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{ClusterID: clusterID, Timestamp: now.UTC()}
	for _, a := range s.agents {
		snap.Agents = append(snap.Agents, a)
	}
	for _, asg := range s.assignments {
		if _, ok := s.agents[asg.AgentID]; !ok {
			continue
		}
		snap.Assignments = append(snap.Assignments, asg)
	}
	for _, o := range s.outcomes {
		snap.Outcomes = append(snap.Outcomes, o)
	}
	sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].ID < snap.Agents[j].ID })
	sort.Slice(snap.Assignments, func(i, j int) bool { return snap.Assignments[i].ID < snap.Assignments[j].ID })
	sort.Slice(snap.Outcomes, func(i, j int) bool { return snap.Outcomes[i].ID < snap.Outcomes[j].ID })
	return snap
}

// DropAssignment removes a released assignment from the local view.
func (s *Store) DropAssignment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, id)
}
