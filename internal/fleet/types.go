// Agent and assignment state for the coordination layer
package fleet

import (
	"fmt"
	"time"

	"aethersim/internal/atmosphere"
)

// Role is an agent's function within a squad.
type Role string

const (
	RoleScanner  Role = "scanner"
	RoleRelay    Role = "relay"
	RoleOperator Role = "operator"
	RoleFallback Role = "fallback"
)

// rotationOrder defines the round-robin succession of roles.
var rotationOrder = []Role{RoleScanner, RoleRelay, RoleOperator, RoleFallback}

// NextRole returns the role following r in the rotation cycle.
func NextRole(r Role) Role {
	for i, cur := range rotationOrder {
		if cur == r {
			return rotationOrder[(i+1)%len(rotationOrder)]
		}
	}
	return RoleScanner
}

// Agent status constants.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusEnRoute   Status = "en_route"
	StatusOnStation Status = "on_station"
	StatusDegraded  Status = "degraded"
	StatusOffline   Status = "offline"
)

// Agent holds runtime state for one simulated agent. Role and assignment are
// mutated only by the roster and coordinator.
type Agent struct {
	ID           string              `json:"id"`
	Squad        string              `json:"squad"`
	Role         Role                `json:"role"`
	Status       Status              `json:"status"`
	Position     atmosphere.Position `json:"position"`
	Wear         float64             `json:"wear"`
	AssignedCell string              `json:"assigned_cell,omitempty"`
	LastSeen     time.Time           `json:"last_seen"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Assignment relates an agent to a target cell for a validity window.
type Assignment struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agent_id"`
	CellKey    string          `json:"cell_key"`
	Target     atmosphere.Cell `json:"target"`
	Score      float64         `json:"score"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil time.Time       `json:"valid_until"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AgentTimeoutError reports a missed heartbeat. Non-fatal; the agent is
// transitioned to Offline and excluded from assignment until it returns.
type AgentTimeoutError struct {
	AgentID  string
	LastSeen time.Time
	Timeout  time.Duration
}

func (e *AgentTimeoutError) Error() string {
	return fmt.Sprintf("agent %s heartbeat timed out (last seen %s, timeout %s)",
		e.AgentID, e.LastSeen.Format(time.RFC3339), e.Timeout)
}
