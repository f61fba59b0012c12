package feedback

import (
	"fmt"
	"math"
	"testing"
	"time"

	"aethersim/internal/atmosphere"
	"aethersim/internal/fleet"
	"aethersim/internal/scoring"
)

func testAssignment() fleet.Assignment {
	return fleet.Assignment{
		ID:      "asg-1",
		AgentID: "agent-1",
		CellKey: "47.5000,13.0000",
		Target: atmosphere.Cell{
			Lat:       47.5,
			Lon:       13.0,
			CAPE:      2000, // normalizes to 0.5
			Humidity:  0.8,
			Timestamp: time.Unix(1000, 0).UTC(),
		},
		Score:     0.4,
		ValidFrom: time.Unix(1000, 0).UTC(),
	}
}

func TestCloseSuccessRaisesWeights(t *testing.T) {
	s := scoring.NewScorer(scoring.DefaultWeights(), 0, 1, 0.65)
	l := NewLoop(s, 0.1, 0)
	before := s.Weights()

	rec := l.Close(testAssignment(), ResultSuccess, time.Unix(1060, 0).UTC())
	after := s.Weights()

	if got, want := after.CAPE, before.CAPE+0.1*0.5; math.Abs(got-want) > 1e-9 {
		t.Fatalf("CAPE weight = %.4f, want %.4f", got, want)
	}
	if after.Humidity <= before.Humidity {
		t.Fatalf("humidity weight should rise on success")
	}
	if rec.Result != ResultSuccess || rec.AssignmentID != "asg-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.DurationS != 60 {
		t.Fatalf("duration = %.0f s, want 60", rec.DurationS)
	}
}

func TestCloseFailureLowersWeights(t *testing.T) {
	s := scoring.NewScorer(scoring.DefaultWeights(), 0, 1, 0.65)
	l := NewLoop(s, 0.1, 0)
	before := s.Weights()

	l.Close(testAssignment(), ResultFailure, time.Unix(1060, 0).UTC())
	after := s.Weights()
	if after.CAPE >= before.CAPE {
		t.Fatalf("CAPE weight should fall on failure: %.4f -> %.4f", before.CAPE, after.CAPE)
	}
}

func TestCloseInconclusiveLeavesWeights(t *testing.T) {
	s := scoring.NewScorer(scoring.DefaultWeights(), 0, 1, 0.65)
	l := NewLoop(s, 0.1, 0)
	before := s.Weights()

	l.Close(testAssignment(), ResultInconclusive, time.Unix(1060, 0).UTC())
	if s.Weights() != before {
		t.Fatalf("inconclusive outcome must not move weights")
	}
}

func TestWeightsStayBounded(t *testing.T) {
	s := scoring.NewScorer(scoring.DefaultWeights(), 0, 1, 0.65)
	l := NewLoop(s, 0.2, 0)
	for i := 0; i < 100; i++ {
		l.Close(testAssignment(), ResultSuccess, time.Unix(1060, 0).UTC())
	}
	w := s.Weights()
	for name, v := range map[string]float64{
		"cape": w.CAPE, "vorticity": w.Vorticity, "humidity": w.Humidity,
		"vertical_velocity": w.VerticalVelocity, "anomaly": w.Anomaly,
	} {
		if v < 0 || v > 1 {
			t.Fatalf("weight %s = %.4f drifted out of [0,1]", name, v)
		}
	}
	for i := 0; i < 100; i++ {
		l.Close(testAssignment(), ResultFailure, time.Unix(1060, 0).UTC())
	}
	if w := s.Weights(); w.CAPE < 0 || w.Humidity < 0 {
		t.Fatalf("weights drifted below zero: %+v", w)
	}
}

func TestRecordRetention(t *testing.T) {
	s := scoring.NewScorer(scoring.DefaultWeights(), 0, 1, 0.65)
	l := NewLoop(s, 0.05, 4)
	for i := 0; i < 10; i++ {
		a := testAssignment()
		a.ID = fmt.Sprintf("asg-%d", i)
		l.Close(a, ResultInconclusive, time.Unix(int64(1000+i), 0).UTC())
	}
	recs := l.Records()
	if len(recs) != 4 {
		t.Fatalf("retained %d records, want 4", len(recs))
	}
	if recs[0].AssignmentID != "asg-6" || recs[3].AssignmentID != "asg-9" {
		t.Fatalf("retention should keep the newest, oldest first: %s .. %s",
			recs[0].AssignmentID, recs[3].AssignmentID)
	}

	recent := l.Recent(2)
	if len(recent) != 2 || recent[1].AssignmentID != "asg-9" {
		t.Fatalf("recent = %+v", recent)
	}
}
