// Row structs with greptime tags
package telemetry

import (
	"os"
	"time"
)

// AgentRow represents one agent telemetry record for GreptimeDB.
type AgentRow struct {
	ClusterID string    `json:"cluster_id"` // TAG
	AgentID   string    `json:"agent_id"`   // TAG
	Squad     string    `json:"squad"`      // FIELD
	Role      string    `json:"role"`       // FIELD
	Status    string    `json:"status"`     // FIELD
	Lat       float64   `json:"lat"`        // FIELD
	Lon       float64   `json:"lon"`        // FIELD
	Alt       float64   `json:"alt"`        // FIELD
	Wear      float64   `json:"wear"`       // FIELD
	CellKey   string    `json:"cell_key"`   // FIELD
	Pattern   string    `json:"pattern"`    // FIELD
	Timestamp time.Time `json:"ts"`         // TIME INDEX
}

// AgentTableName holds the table name used when writing agent telemetry to
// GreptimeDB. It defaults to "agent_telemetry" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var AgentTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "agent_telemetry"
}()

func (AgentRow) TableName() string {
	return AgentTableName
}

// TargetRow represents one scored cell for a cycle.
type TargetRow struct {
	ClusterID    string    `json:"cluster_id"`
	CellKey      string    `json:"cell_key"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Score        float64   `json:"score"`
	CAPE         float64   `json:"cape"`
	Vorticity    float64   `json:"vorticity"`
	Humidity     float64   `json:"humidity"`
	Focus        bool      `json:"focus"`
	HeadingDeg   float64   `json:"heading_deg"`
	YawOffsetDeg float64   `json:"yaw_offset_deg"`
	Alignment    string    `json:"alignment_mode"`
	Timestamp    time.Time `json:"ts"`
}

// Coordination event types.
const (
	EventAssignment = "assignment"
	EventRelease    = "release"
	EventRotation   = "rotation"
	EventPattern    = "pattern"
	EventBackup     = "backup"
)

// EventRow represents a coordination event.
type EventRow struct {
	ClusterID string    `json:"cluster_id"`
	EventType string    `json:"event_type"`
	AgentIDs  []string  `json:"agent_ids"`
	CellKey   string    `json:"cell_key,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// CycleRow captures per-cycle coordinator state metrics and the cluster sync
// digest.
type CycleRow struct {
	ClusterID       string    `json:"cluster_id"`
	Cycle           int       `json:"cycle"`
	Phase           string    `json:"phase"`
	ScenarioPhase   string    `json:"scenario_phase,omitempty"`
	CellCount       int       `json:"cell_count"`
	TargetCount     int       `json:"target_count"`
	AssignmentCount int       `json:"assignment_count"`
	OutcomeCount    int       `json:"outcome_count"`
	SkippedCells    int       `json:"skipped_cells"`
	AvgCAPE         float64   `json:"avg_cape"`
	ActiveAgents    []string  `json:"active_agents,omitempty"`
	AlignmentMode   string    `json:"alignment_mode"`
	WeightCAPE      float64   `json:"weight_cape"`
	WeightVorticity float64   `json:"weight_vorticity"`
	WeightHumidity  float64   `json:"weight_humidity"`
	WeightVertVel   float64   `json:"weight_vertical_velocity"`
	WeightAnomaly   float64   `json:"weight_anomaly"`
	ChaosMode       bool      `json:"chaos_mode"`
	Timestamp       time.Time `json:"ts"`
}
