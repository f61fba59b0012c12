package fleet

import (
	"fmt"
	"sort"
	"time"

	"aethersim/internal/atmosphere"

	"github.com/google/uuid"
)

// Wear accrual per tick by activity. Wear is a modeled resource, not
// physical fuel; it only influences rotation order and degradation.
const (
	wearIdleRecovery = 0.5
	wearActive       = 1.0
	wearOperator     = 1.5
	wearDegraded     = 95.0
)

// Roster maintains the current agent set and exposes register, heartbeat,
// and role-rotation operations. Safe for concurrent use via the owning
// simulator's lock; the roster itself is not internally locked because all
// mutation is funneled through the coordinator and the roster's own
// operations.
type Roster struct {
	agents  map[string]*Agent
	order   []string // registration order, for deterministic iteration
	timeout time.Duration
	now     func() time.Time
}

// NewRoster creates a roster with the given heartbeat timeout. A zero
// timeout defaults to 60s. now may be nil.
func NewRoster(timeout time.Duration, now func() time.Time) *Roster {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Roster{agents: make(map[string]*Agent), timeout: timeout, now: now}
}

// Register adds a new agent to the roster in Idle state.
func (r *Roster) Register(squad string, role Role, pos atmosphere.Position) *Agent {
	ts := r.now().UTC()
	a := &Agent{
		ID:        fmt.Sprintf("%s-%s", squad, uuid.New().String()),
		Squad:     squad,
		Role:      role,
		Status:    StatusIdle,
		Position:  pos,
		LastSeen:  ts,
		UpdatedAt: ts,
	}
	r.agents[a.ID] = a
	r.order = append(r.order, a.ID)
	return a
}

// Heartbeat records a liveness signal. An Offline agent returns to Idle.
func (r *Roster) Heartbeat(id string, pos atmosphere.Position) error {
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("heartbeat from unknown agent %s", id)
	}
	ts := r.now().UTC()
	a.LastSeen = ts
	a.UpdatedAt = ts
	a.Position = pos
	if a.Status == StatusOffline {
		a.Status = StatusIdle
		a.AssignedCell = ""
	}
	return nil
}

// Sweep transitions agents past the heartbeat timeout to Offline and returns
// one AgentTimeoutError per transition. Errors are informational; the sweep
// itself never fails.
func (r *Roster) Sweep() []*AgentTimeoutError {
	ts := r.now().UTC()
	var errs []*AgentTimeoutError
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status == StatusOffline {
			continue
		}
		if ts.Sub(a.LastSeen) >= r.timeout {
			a.Status = StatusOffline
			a.UpdatedAt = ts
			errs = append(errs, &AgentTimeoutError{AgentID: a.ID, LastSeen: a.LastSeen, Timeout: r.timeout})
		}
	}
	return errs
}

// Tick accrues wear for active agents and recovers idle ones. Agents worn
// past the degradation point go Degraded.
func (r *Roster) Tick() {
	ts := r.now().UTC()
	for _, id := range r.order {
		a := r.agents[id]
		switch a.Status {
		case StatusIdle:
			a.Wear -= wearIdleRecovery
			if a.Wear < 0 {
				a.Wear = 0
			}
		case StatusEnRoute, StatusOnStation:
			if a.Role == RoleOperator {
				a.Wear += wearOperator
			} else {
				a.Wear += wearActive
			}
			if a.Wear >= wearDegraded {
				a.Status = StatusDegraded
			}
		}
		a.UpdatedAt = ts
	}
}

// Eligible returns agents available for assignment: online, not degraded,
// and not already assigned.
func (r *Roster) Eligible() []*Agent {
	var out []*Agent
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status != StatusIdle {
			continue
		}
		if a.AssignedCell != "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Get returns the agent with the given id, or nil.
func (r *Roster) Get(id string) *Agent {
	return r.agents[id]
}

// RoleChange records one rotation step.
type RoleChange struct {
	AgentID string
	From    Role
	To      Role
}

// RotateRoles reassigns roles round-robin among Idle and OnStation agents,
// highest wear first, to balance wear across the squad. Fallback agents hold
// their role so the standby pool never empties through rotation.
func (r *Roster) RotateRoles() []RoleChange {
	var rotatable []*Agent
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status != StatusIdle && a.Status != StatusOnStation {
			continue
		}
		if a.Role == RoleFallback {
			continue
		}
		rotatable = append(rotatable, a)
	}
	sort.SliceStable(rotatable, func(i, j int) bool {
		return rotatable[i].Wear > rotatable[j].Wear
	})
	ts := r.now().UTC()
	var changes []RoleChange
	for _, a := range rotatable {
		next := NextRole(a.Role)
		if next == RoleFallback {
			next = NextRole(next)
		}
		changes = append(changes, RoleChange{AgentID: a.ID, From: a.Role, To: next})
		a.Role = next
		a.UpdatedAt = ts
	}
	return changes
}

// RotationSchedule returns agent ids ordered by wear, highest first, the
// recommended order for swapping agents to recover.
func (r *Roster) RotationSchedule() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.SliceStable(ids, func(i, j int) bool {
		return r.agents[ids[i]].Wear > r.agents[ids[j]].Wear
	})
	return ids
}

// AssignBackup pulls an idle Fallback agent from the squad's standby pool,
// or nil when none is available.
func (r *Roster) AssignBackup(squad string) *Agent {
	for _, id := range r.order {
		a := r.agents[id]
		if a.Squad == squad && a.Role == RoleFallback && a.Status == StatusIdle && a.AssignedCell == "" {
			return a
		}
	}
	return nil
}

// Agents returns copies of all agents in registration order.
func (r *Roster) Agents() []Agent {
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.agents[id])
	}
	return out
}

// Timeout returns the configured heartbeat timeout.
func (r *Roster) Timeout() time.Duration {
	return r.timeout
}
