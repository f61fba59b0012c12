package sim

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

func readJSONL(t *testing.T, path string, out func([]byte)) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		out(sc.Bytes())
		n++
	}
	return n
}

func TestFileWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	agentPath := filepath.Join(dir, "agents.jsonl")
	targetPath := filepath.Join(dir, "targets.jsonl")
	eventPath := filepath.Join(dir, "events.jsonl")
	outcomePath := filepath.Join(dir, "outcomes.jsonl")

	fw, err := NewFileWriter(agentPath, targetPath, eventPath, outcomePath)
	if err != nil {
		t.Fatalf("new file writer: %v", err)
	}

	ts := time.Unix(1000, 0).UTC()
	rows := []telemetry.AgentRow{
		{ClusterID: "c1", AgentID: "a1", Squad: "s", Status: "idle", Timestamp: ts},
		{ClusterID: "c1", AgentID: "a2", Squad: "s", Status: "en_route", Timestamp: ts},
	}
	if err := fw.WriteBatch(rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := fw.WriteTarget(telemetry.TargetRow{ClusterID: "c1", CellKey: "k1", Score: 0.7, Timestamp: ts}); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := fw.WriteEvents([]telemetry.EventRow{
		{ClusterID: "c1", EventType: telemetry.EventAssignment, AgentIDs: []string{"a1"}, Timestamp: ts},
	}); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := fw.WriteOutcome(feedback.OutcomeRecord{ID: "o1", Result: feedback.ResultSuccess, Timestamp: ts}); err != nil {
		t.Fatalf("write outcome: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var gotAgents []telemetry.AgentRow
	n := readJSONL(t, agentPath, func(b []byte) {
		var r telemetry.AgentRow
		if err := json.Unmarshal(b, &r); err != nil {
			t.Fatalf("decode agent row: %v", err)
		}
		gotAgents = append(gotAgents, r)
	})
	if n != 2 || gotAgents[1].AgentID != "a2" {
		t.Fatalf("agent log = %d rows, %+v", n, gotAgents)
	}

	if n := readJSONL(t, targetPath, func([]byte) {}); n != 1 {
		t.Fatalf("target log = %d rows, want 1", n)
	}
	var ev telemetry.EventRow
	readJSONL(t, eventPath, func(b []byte) {
		if err := json.Unmarshal(b, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
	})
	if ev.EventType != telemetry.EventAssignment || len(ev.AgentIDs) != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if n := readJSONL(t, outcomePath, func([]byte) {}); n != 1 {
		t.Fatalf("outcome log = %d rows, want 1", n)
	}
}

func TestFileWriterOptionalLogs(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(filepath.Join(dir, "agents.jsonl"), "", "", "")
	if err != nil {
		t.Fatalf("new file writer: %v", err)
	}
	defer fw.Close()

	// Disabled logs silently drop rows instead of failing the cycle.
	if err := fw.WriteTarget(telemetry.TargetRow{CellKey: "k"}); err != nil {
		t.Fatalf("disabled target write: %v", err)
	}
	if err := fw.WriteEvent(telemetry.EventRow{EventType: "x"}); err != nil {
		t.Fatalf("disabled event write: %v", err)
	}
	if err := fw.WriteOutcome(feedback.OutcomeRecord{ID: "o"}); err != nil {
		t.Fatalf("disabled outcome write: %v", err)
	}
}

func TestFileWriterCycleRowsShareAgentLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.jsonl")
	fw, err := NewFileWriter(path, "", "", "")
	if err != nil {
		t.Fatalf("new file writer: %v", err)
	}
	if err := fw.WriteCycle(telemetry.CycleRow{ClusterID: "c1", Cycle: 3}); err != nil {
		t.Fatalf("write cycle: %v", err)
	}
	fw.Close()
	if n := readJSONL(t, path, func([]byte) {}); n != 1 {
		t.Fatalf("agent log = %d rows, want the cycle row", n)
	}
}

func TestFileWriterBadPath(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "agents.jsonl"), "", "", ""); err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}
