package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

func TestJSONStdoutWriterRows(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}

	ts := time.Unix(1000, 0).UTC()
	if err := w.Write(telemetry.AgentRow{ClusterID: "c1", AgentID: "a1", Timestamp: ts}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteTarget(telemetry.TargetRow{CellKey: "k1", Score: 0.8, Timestamp: ts}); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := w.WriteCycle(telemetry.CycleRow{Cycle: 1, Timestamp: ts}); err != nil {
		t.Fatalf("write cycle: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output lines = %d, want 3", len(lines))
	}
	var row telemetry.AgentRow
	if err := json.Unmarshal([]byte(lines[0]), &row); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if row.AgentID != "a1" {
		t.Fatalf("agent row = %+v", row)
	}
}

func TestJSONStdoutWriterBatch(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}
	rows := []telemetry.AgentRow{{AgentID: "a1"}, {AgentID: "a2"}, {AgentID: "a3"}}
	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Fatalf("batch wrote %d lines, want 3", n)
	}
}

func colorTestConfig() *config.SimulationConfig {
	return &config.SimulationConfig{
		Zones:  []atmosphere.Region{{Name: "z1", CenterLat: 47.5, CenterLon: 13.0, RadiusKM: 30}},
		Squads: []config.Squad{{Name: "storm-watch", HomeZone: "z1", Scanners: 2, Fallbacks: 1}},
		Scoring: config.ScoringConfig{
			FocusThreshold: 0.65,
			TopK:           5,
		},
	}
}

func TestColorWriterPrintsOverviewOnce(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{cfg: colorTestConfig(), out: &buf, squadColors: make(map[string]string)}

	_ = w.Write(telemetry.AgentRow{ClusterID: "c1", AgentID: "a1", Squad: "storm-watch", Status: "idle"})
	_ = w.Write(telemetry.AgentRow{ClusterID: "c1", AgentID: "a2", Squad: "storm-watch", Status: "idle"})

	out := buf.String()
	if n := strings.Count(out, "Simulation Configuration:"); n != 1 {
		t.Fatalf("overview printed %d times, want once", n)
	}
	if !strings.Contains(out, "storm-watch") || !strings.Contains(out, "Focus Threshold:") {
		t.Fatalf("overview incomplete:\n%s", out)
	}
}

func TestColorWriterStatusColors(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{out: &buf, squadColors: make(map[string]string)}

	_ = w.Write(telemetry.AgentRow{AgentID: "down", Squad: "s", Status: "offline"})
	if !strings.Contains(buf.String(), colorRed+"status=offline") {
		t.Fatalf("offline status not red:\n%q", buf.String())
	}

	buf.Reset()
	_ = w.Write(telemetry.AgentRow{AgentID: "worn", Squad: "s", Status: "degraded"})
	if !strings.Contains(buf.String(), colorYellow+"status=degraded") {
		t.Fatalf("degraded status not yellow:\n%q", buf.String())
	}
}

func TestColorWriterSquadColorsStable(t *testing.T) {
	w := &ColorStdoutWriter{out: &bytes.Buffer{}, squadColors: make(map[string]string)}
	a := w.getSquadColor("alpha")
	b := w.getSquadColor("beta")
	if a == b {
		t.Fatalf("distinct squads share a color")
	}
	if w.getSquadColor("alpha") != a {
		t.Fatalf("squad color changed between calls")
	}
}

func TestColorWriterTargetFocusTag(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{out: &buf, squadColors: make(map[string]string)}

	_ = w.WriteTarget(telemetry.TargetRow{CellKey: "k1", Score: 0.9, Focus: true})
	if !strings.Contains(buf.String(), "FOCUS") {
		t.Fatalf("focused target missing FOCUS tag")
	}
	buf.Reset()
	_ = w.WriteTarget(telemetry.TargetRow{CellKey: "k2", Score: 0.2})
	if strings.Contains(buf.String(), "FOCUS") {
		t.Fatalf("unfocused target carries FOCUS tag")
	}
}

func TestColorWriterEventAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{out: &buf, squadColors: make(map[string]string)}

	_ = w.WriteEvent(telemetry.EventRow{
		EventType: telemetry.EventRelease,
		AgentIDs:  []string{"a1"},
		CellKey:   "k1",
		Detail:    "heartbeat timeout",
	})
	out := buf.String()
	if !strings.Contains(out, "type=release") || !strings.Contains(out, `detail="heartbeat timeout"`) {
		t.Fatalf("event line = %q", out)
	}

	buf.Reset()
	_ = w.WriteOutcome(feedback.OutcomeRecord{AgentID: "a1", CellKey: "k1", Result: feedback.ResultFailure})
	if !strings.Contains(buf.String(), colorRed+"failure") {
		t.Fatalf("failure outcome not red: %q", buf.String())
	}
}
