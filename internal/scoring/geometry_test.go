package scoring

import (
	"testing"

	"aethersim/internal/atmosphere"
)

func TestHeadingFromWind(t *testing.T) {
	cases := []struct {
		name string
		wind float64
		mode AlignmentMode
		want float64
	}{
		{"upwind faces wind", 270, AlignUpwind, 270},
		{"downwind turns away", 270, AlignDownwind, 90},
		{"crosswind offsets 90", 270, AlignCrosswind, 0},
		{"wraps below zero", -10, AlignUpwind, 350},
		{"wraps above 360", 350, AlignCrosswind, 80},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HeadingFromWind(tc.wind, tc.mode); got != tc.want {
				t.Fatalf("heading = %.0f, want %.0f", got, tc.want)
			}
		})
	}
}

func TestSuggestGeometry(t *testing.T) {
	c := atmosphere.Cell{WindFromDeg: 180, WindShear: 100, Vorticity: 0.1}
	g := SuggestGeometry(c, AlignCrosswind)
	if g.DesiredHeadingDeg == nil || *g.DesiredHeadingDeg != 270 {
		t.Fatalf("crosswind heading = %v, want 270", g.DesiredHeadingDeg)
	}
	// Extreme shear and vorticity stay inside the caps.
	if g.YawOffsetDeg != 20 {
		t.Fatalf("yaw offset = %.1f, want capped at 20", g.YawOffsetDeg)
	}
	if g.BankDeg != 8 {
		t.Fatalf("bank = %.1f, want capped at 8", g.BankDeg)
	}
}

func TestSuggestGeometryNoAlignment(t *testing.T) {
	g := SuggestGeometry(atmosphere.Cell{WindFromDeg: 45}, AlignNone)
	if g.DesiredHeadingDeg != nil {
		t.Fatalf("no-alignment geometry should carry no heading, got %.0f", *g.DesiredHeadingDeg)
	}
	if g.Alignment != AlignNone {
		t.Fatalf("alignment = %s", g.Alignment)
	}
}
