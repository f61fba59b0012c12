package sim

import (
	"context"
	"testing"
	"time"

	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/fleet"
)

func TestEnRouteAgentConvergesOnStation(t *testing.T) {
	cfg := simTestConfig()
	cfg.Squads = []config.Squad{{Name: "storm-watch", HomeZone: "z1", Scanners: 1}}
	w := &mockWriter{}
	s, _ := newTestSimulator(cfg, w)
	ts := time.Unix(0, 0).UTC()

	// Target roughly 13 km from the squad's home position.
	s.IngestPayload(atmosphere.Payload{Cells: []atmosphere.Cell{cellAt(47.6, 13.05, 3000, ts)}, Timestamp: ts})
	s.runCycle(context.Background())

	asgs := s.Assignments()
	if len(asgs) != 1 {
		t.Fatalf("setup: expected one assignment")
	}
	ag := s.roster.Get(asgs[0].AgentID)
	if ag.Status != fleet.StatusEnRoute {
		t.Fatalf("agent status = %s, want en_route", ag.Status)
	}

	startDist := s.distance(47.5, 13.0, 47.6, 13.05)
	arrived := false
	// At 2500 m per tick the 13 km leg takes a handful of cycles; the
	// window (10 ticks) outlasts the flight.
	for i := 0; i < 8; i++ {
		s.moveAgents(ts)
		if ag.Status == fleet.StatusOnStation {
			arrived = true
			break
		}
		d := s.distance(ag.Position.Lat, ag.Position.Lon, 47.6, 13.05)
		if d >= startDist {
			t.Fatalf("agent not closing on target: %.0f m after tick %d", d, i+1)
		}
		startDist = d
	}
	if !arrived {
		t.Fatalf("agent never reached station, still %.0f m out", startDist)
	}
}

func TestOrphanedEnRouteAgentGoesIdle(t *testing.T) {
	w := &mockWriter{}
	s, _ := newTestSimulator(simTestConfig(), w)
	ts := time.Unix(0, 0).UTC()

	agents := s.roster.Agents()
	ag := s.roster.Get(agents[0].ID)
	ag.Status = fleet.StatusEnRoute
	ag.AssignedCell = "47.6000,13.0500"

	s.moveAgents(ts)
	if ag.Status != fleet.StatusIdle || ag.AssignedCell != "" {
		t.Fatalf("orphaned agent = %s cell=%q, want idle and cleared", ag.Status, ag.AssignedCell)
	}
}

func TestIdleAgentsDrift(t *testing.T) {
	w := &mockWriter{}
	s, _ := newTestSimulator(simTestConfig(), w)
	ts := time.Unix(0, 0).UTC()

	before := s.roster.Agents()[0].Position
	for i := 0; i < 20; i++ {
		s.moveAgents(ts)
	}
	after := s.roster.Agents()[0].Position
	if before == after {
		t.Fatalf("idle agent never drifted")
	}
}
