package sim

import (
	"context"
	"encoding/json"
	"log"

	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// greptimeClient is the slice of the ingester client the writer needs;
// narrow so tests can stub it.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes telemetry to GreptimeDB via the ingester client.
// Tables are auto-created on first ingest.
type GreptimeDBWriter struct {
	client       greptimeClient
	agentTable   string
	targetTable  string
	eventTable   string
	outcomeTable string
	cycleTable   string
}

// NewGreptimeDBWriter creates a new GreptimeDB writer.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(endpoint).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client:       client,
		agentTable:   telemetry.AgentTableName,
		targetTable:  "instability_targets",
		eventTable:   "coordination_events",
		outcomeTable: "outcome_records",
		cycleTable:   "cycle_state",
	}, nil
}

// tableBuilder wraps the ingester table so schema and rows can be declared
// in one block; the first error sticks and short-circuits the rest.
type tableBuilder struct {
	tbl *table.Table
	err error
}

func newTableBuilder(name string) *tableBuilder {
	tbl, err := table.New(name)
	return &tableBuilder{tbl: tbl, err: err}
}

func (b *tableBuilder) tag(name string, t types.ColumnType) *tableBuilder {
	if b.err == nil {
		b.err = b.tbl.AddTagColumn(name, t)
	}
	return b
}

func (b *tableBuilder) field(name string, t types.ColumnType) *tableBuilder {
	if b.err == nil {
		b.err = b.tbl.AddFieldColumn(name, t)
	}
	return b
}

func (b *tableBuilder) timestamp(name string) *tableBuilder {
	if b.err == nil {
		b.err = b.tbl.AddTimestampColumn(name, types.TIMESTAMP_MILLISECOND)
	}
	return b
}

// row appends one data row; value order must match the declared columns.
func (b *tableBuilder) row(values ...any) {
	if b.err == nil {
		b.err = b.tbl.AddRow(values...)
	}
}

func (b *tableBuilder) build() (*table.Table, error) {
	return b.tbl, b.err
}

// Write inserts a single agent telemetry row.
func (w *GreptimeDBWriter) Write(row telemetry.AgentRow) error {
	return w.WriteBatch([]telemetry.AgentRow{row})
}

// WriteBatch inserts multiple agent telemetry rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.AgentRow) error {
	if len(rows) == 0 {
		return nil
	}

	b := newTableBuilder(w.agentTable).
		tag("cluster_id", types.STRING).
		tag("agent_id", types.STRING).
		field("squad", types.STRING).
		field("role", types.STRING).
		field("status", types.STRING).
		field("lat", types.FLOAT64).
		field("lon", types.FLOAT64).
		field("alt", types.FLOAT64).
		field("wear", types.FLOAT64).
		field("cell_key", types.STRING).
		field("pattern", types.STRING).
		timestamp("ts")

	for _, r := range rows {
		b.row(r.ClusterID, r.AgentID, r.Squad, r.Role, r.Status,
			r.Lat, r.Lon, r.Alt, r.Wear, r.CellKey, r.Pattern, r.Timestamp)
	}

	tbl, err := b.build()
	if err != nil {
		return err
	}
	return w.flush(tbl, "agent telemetry")
}

// WriteTarget inserts a single scored target row.
func (w *GreptimeDBWriter) WriteTarget(row telemetry.TargetRow) error {
	return w.WriteTargets([]telemetry.TargetRow{row})
}

// WriteTargets inserts multiple scored target rows.
func (w *GreptimeDBWriter) WriteTargets(rows []telemetry.TargetRow) error {
	if len(rows) == 0 {
		return nil
	}

	b := newTableBuilder(w.targetTable).
		tag("cluster_id", types.STRING).
		tag("cell_key", types.STRING).
		field("lat", types.FLOAT64).
		field("lon", types.FLOAT64).
		field("score", types.FLOAT64).
		field("cape", types.FLOAT64).
		field("vorticity", types.FLOAT64).
		field("humidity", types.FLOAT64).
		field("focus", types.BOOLEAN).
		field("heading_deg", types.FLOAT64).
		field("yaw_offset_deg", types.FLOAT64).
		field("alignment_mode", types.STRING).
		timestamp("ts")

	for _, r := range rows {
		b.row(r.ClusterID, r.CellKey, r.Lat, r.Lon, r.Score,
			r.CAPE, r.Vorticity, r.Humidity, r.Focus,
			r.HeadingDeg, r.YawOffsetDeg, r.Alignment, r.Timestamp)
	}

	tbl, err := b.build()
	if err != nil {
		return err
	}
	return w.flush(tbl, "targets")
}

// WriteEvent inserts a single coordination event.
func (w *GreptimeDBWriter) WriteEvent(e telemetry.EventRow) error {
	return w.WriteEvents([]telemetry.EventRow{e})
}

// WriteEvents inserts multiple coordination events. Agent id lists are
// stored as a JSON column.
func (w *GreptimeDBWriter) WriteEvents(rows []telemetry.EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	b := newTableBuilder(w.eventTable).
		tag("cluster_id", types.STRING).
		field("event_type", types.STRING).
		field("agent_ids", types.JSON).
		field("cell_key", types.STRING).
		field("detail", types.STRING).
		timestamp("ts")

	for _, r := range rows {
		ids, err := json.Marshal(r.AgentIDs)
		if err != nil {
			return err
		}
		b.row(r.ClusterID, r.EventType, string(ids), r.CellKey, r.Detail, r.Timestamp)
	}

	tbl, err := b.build()
	if err != nil {
		return err
	}
	return w.flush(tbl, "events")
}

// WriteOutcome inserts a single outcome record.
func (w *GreptimeDBWriter) WriteOutcome(rec feedback.OutcomeRecord) error {
	return w.WriteOutcomes([]feedback.OutcomeRecord{rec})
}

// WriteOutcomes inserts multiple outcome records.
func (w *GreptimeDBWriter) WriteOutcomes(recs []feedback.OutcomeRecord) error {
	if len(recs) == 0 {
		return nil
	}

	b := newTableBuilder(w.outcomeTable).
		tag("agent_id", types.STRING).
		field("id", types.STRING).
		field("assignment_id", types.STRING).
		field("cell_key", types.STRING).
		field("result", types.STRING).
		field("score", types.FLOAT64).
		field("duration_s", types.FLOAT64).
		timestamp("ts")

	for _, r := range recs {
		b.row(r.AgentID, r.ID, r.AssignmentID, r.CellKey,
			string(r.Result), r.Score, r.DurationS, r.Timestamp)
	}

	tbl, err := b.build()
	if err != nil {
		return err
	}
	return w.flush(tbl, "outcomes")
}

// WriteCycle inserts a cycle state row.
func (w *GreptimeDBWriter) WriteCycle(row telemetry.CycleRow) error {
	return w.WriteCycles([]telemetry.CycleRow{row})
}

// WriteCycles inserts multiple cycle state rows.
func (w *GreptimeDBWriter) WriteCycles(rows []telemetry.CycleRow) error {
	if len(rows) == 0 {
		return nil
	}

	b := newTableBuilder(w.cycleTable).
		tag("cluster_id", types.STRING).
		field("cycle", types.INT64).
		field("phase", types.STRING).
		field("scenario_phase", types.STRING).
		field("cell_count", types.INT64).
		field("target_count", types.INT64).
		field("assignment_count", types.INT64).
		field("outcome_count", types.INT64).
		field("skipped_cells", types.INT64).
		field("avg_cape", types.FLOAT64).
		field("active_agents", types.JSON).
		field("alignment_mode", types.STRING).
		field("weight_cape", types.FLOAT64).
		field("weight_vorticity", types.FLOAT64).
		field("weight_humidity", types.FLOAT64).
		field("weight_vertical_velocity", types.FLOAT64).
		field("weight_anomaly", types.FLOAT64).
		field("chaos_mode", types.BOOLEAN).
		timestamp("ts")

	for _, r := range rows {
		active, err := json.Marshal(r.ActiveAgents)
		if err != nil {
			return err
		}
		b.row(r.ClusterID, int64(r.Cycle), r.Phase, r.ScenarioPhase,
			int64(r.CellCount), int64(r.TargetCount), int64(r.AssignmentCount),
			int64(r.OutcomeCount), int64(r.SkippedCells), r.AvgCAPE,
			string(active), r.AlignmentMode,
			r.WeightCAPE, r.WeightVorticity, r.WeightHumidity,
			r.WeightVertVel, r.WeightAnomaly, r.ChaosMode, r.Timestamp)
	}

	tbl, err := b.build()
	if err != nil {
		return err
	}
	return w.flush(tbl, "cycle state")
}

func (w *GreptimeDBWriter) flush(tbl *table.Table, kind string) error {
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		log.Printf("[GreptimeDBWriter] %s write failed: %v", kind, err)
		return err
	}
	return nil
}
