package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aethersim/internal/telemetry"
)

func replayFixture(t *testing.T, rows []telemetry.AgentRow) string {
	t.Helper()
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode fixture: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReplayLogFile(t *testing.T) {
	ts := time.Unix(1000, 0).UTC()
	rows := []telemetry.AgentRow{
		{ClusterID: "c1", AgentID: "a1", Status: "idle", Timestamp: ts},
		{ClusterID: "c1", AgentID: "a2", Status: "en_route", Timestamp: ts.Add(time.Second)},
		{ClusterID: "c1", AgentID: "a1", Status: "on_station", Timestamp: ts.Add(2 * time.Second)},
	}
	path := replayFixture(t, rows)

	w := &mockWriter{}
	// speed <= 0 disables pacing, so the replay finishes immediately.
	if err := ReplayLogFile(path, w, 0); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(w.agents) != 3 {
		t.Fatalf("replayed %d rows, want 3", len(w.agents))
	}
	if w.agents[2].Status != "on_station" {
		t.Fatalf("rows out of order: %+v", w.agents)
	}
}

func TestReplayPacing(t *testing.T) {
	ts := time.Unix(1000, 0).UTC()
	rows := []telemetry.AgentRow{
		{AgentID: "a1", Timestamp: ts},
		{AgentID: "a1", Timestamp: ts.Add(400 * time.Millisecond)},
	}
	path := replayFixture(t, rows)

	w := &mockWriter{}
	start := time.Now()
	// 10x speed turns the 400ms gap into roughly 40ms.
	if err := ReplayLogFile(path, w, 10); err != nil {
		t.Fatalf("replay: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 30*time.Millisecond {
		t.Fatalf("replay ignored pacing, took %s", elapsed)
	}
	if elapsed > 350*time.Millisecond {
		t.Fatalf("replay too slow at 10x, took %s", elapsed)
	}
}

func TestReplayMalformedInput(t *testing.T) {
	if err := ReplayLog(strings.NewReader("not json\n"), &mockWriter{}, 0); err == nil {
		t.Fatalf("expected error for malformed log")
	}
}

func TestReplayMissingFile(t *testing.T) {
	if err := ReplayLogFile(filepath.Join(t.TempDir(), "nope.jsonl"), &mockWriter{}, 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
