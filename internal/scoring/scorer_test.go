package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"aethersim/internal/atmosphere"
)

func cellWithCAPE(cape float64) atmosphere.Cell {
	return atmosphere.Cell{
		Lat:       47.5,
		Lon:       13.0,
		CAPE:      cape,
		Vorticity: 0.0003,
		Humidity:  0.6,
		Timestamp: time.Unix(1000, 0).UTC(),
	}
}

func TestScoreMonotonicInCAPE(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0, 1, 0.65)
	low, err := s.Score(cellWithCAPE(500))
	if err != nil {
		t.Fatalf("score low: %v", err)
	}
	high, err := s.Score(cellWithCAPE(3500))
	if err != nil {
		t.Fatalf("score high: %v", err)
	}
	if high.Score <= low.Score {
		t.Fatalf("higher CAPE should score higher: low=%.3f high=%.3f", low.Score, high.Score)
	}
}

func TestScoreCapsAtNorm(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0, 1, 0.65)
	atCap, _ := s.Score(cellWithCAPE(4000))
	beyond, _ := s.Score(cellWithCAPE(9000))
	if atCap.Score != beyond.Score {
		t.Fatalf("CAPE beyond the cap should not add score: %.3f vs %.3f", atCap.Score, beyond.Score)
	}
	if beyond.Features.CAPE != 1.0 {
		t.Fatalf("normalized CAPE = %.3f, want 1.0", beyond.Features.CAPE)
	}
}

func TestScoreRejectsInvalidCell(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0, 1, 0.65)
	c := cellWithCAPE(1000)
	c.Humidity = 2.0
	_, err := s.Score(c)
	var iie *atmosphere.InvalidInputError
	if !errors.As(err, &iie) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestRankOrderAndErrors(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0, 1, 0.65)
	bad := cellWithCAPE(1000)
	bad.Timestamp = time.Time{}

	cells := []atmosphere.Cell{
		cellWithCAPE(500),
		cellWithCAPE(3000),
		bad,
		cellWithCAPE(1500),
	}
	targets, errs := s.Rank(cells)
	if len(errs) != 1 {
		t.Fatalf("expected one skipped cell, got %d errors", len(errs))
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 ranked targets, got %d", len(targets))
	}
	for i := 1; i < len(targets); i++ {
		if targets[i].Score > targets[i-1].Score {
			t.Fatalf("targets not in descending score order at %d", i)
		}
	}
	if targets[0].Cell.CAPE != 3000 {
		t.Fatalf("top target CAPE = %.0f, want 3000", targets[0].Cell.CAPE)
	}
}

func TestRankTieBreakByPosition(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0, 1, 0.65)
	a := cellWithCAPE(1000)
	a.Lat, a.Lon = 48.0, 14.0
	b := cellWithCAPE(1000)
	b.Lat, b.Lon = 47.0, 13.0
	c := cellWithCAPE(1000)
	c.Lat, c.Lon = 47.0, 12.0

	targets, errs := s.Rank([]atmosphere.Cell{a, b, c})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	wantKeys := []string{"47.0000,12.0000", "47.0000,13.0000", "48.0000,14.0000"}
	for i, want := range wantKeys {
		if got := targets[i].Cell.Key(); got != want {
			t.Fatalf("tie order[%d] = %s, want %s", i, got, want)
		}
	}
}

func TestSetWeightsClampsToBounds(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0.05, 0.5, 0.65)
	s.SetWeights(Weights{CAPE: 2.0, Vorticity: -1.0, Humidity: 0.3, VerticalVelocity: 0.3, Anomaly: 0.3})
	w := s.Weights()
	if w.CAPE != 0.5 {
		t.Fatalf("CAPE weight = %.2f, want clamped to 0.5", w.CAPE)
	}
	if w.Vorticity != 0.05 {
		t.Fatalf("vorticity weight = %.2f, want clamped to 0.05", w.Vorticity)
	}
	if w.Humidity != 0.3 {
		t.Fatalf("humidity weight = %.2f, want untouched 0.3", w.Humidity)
	}
}

func TestShouldFocus(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0, 1, 0.5)
	if s.ShouldFocus(Target{Score: 0.49}) {
		t.Fatalf("score below threshold should not focus")
	}
	if !s.ShouldFocus(Target{Score: 0.5}) {
		t.Fatalf("score at threshold should focus")
	}
}

func TestNormalizeVorticitySign(t *testing.T) {
	c := cellWithCAPE(1000)
	c.Vorticity = -0.0015
	f := Normalize(c)
	if math.Abs(f.Vorticity-1.0) > 1e-9 {
		t.Fatalf("negative vorticity magnitude = %.3f, want 1.0", f.Vorticity)
	}
}
