package scoring

import (
	"math"

	"aethersim/internal/atmosphere"
)

// AlignmentMode describes how an agent orients relative to the wind.
type AlignmentMode string

const (
	AlignUpwind    AlignmentMode = "upwind"
	AlignDownwind  AlignmentMode = "downwind"
	AlignCrosswind AlignmentMode = "crosswind"
	AlignNone      AlignmentMode = "none"
)

// Geometry is a suggested station-keeping orientation for a target.
type Geometry struct {
	DesiredHeadingDeg *float64      `json:"desired_heading_deg,omitempty"`
	YawOffsetDeg      float64       `json:"yaw_offset_deg"`
	BankDeg           float64       `json:"bank_deg"`
	AngleOfAttackDeg  float64       `json:"angle_of_attack_deg"`
	Alignment         AlignmentMode `json:"alignment_mode"`
}

// HeadingFromWind derives a heading from the wind-from direction.
// 0 = north, clockwise positive.
func HeadingFromWind(windFromDeg float64, mode AlignmentMode) float64 {
	windFromDeg = math.Mod(windFromDeg+360, 360)
	switch mode {
	case AlignUpwind:
		return windFromDeg
	case AlignDownwind:
		return math.Mod(windFromDeg+180, 360)
	default:
		return math.Mod(windFromDeg+90, 360)
	}
}

// SuggestGeometry produces an orientation recommendation for a cell. Yaw
// offset grows modestly with wind shear, bank with vorticity; both capped.
func SuggestGeometry(c atmosphere.Cell, mode AlignmentMode) Geometry {
	const (
		defaultYawDeg = 10.0
		defaultBank   = 5.0
		defaultAoA    = 2.0
	)
	g := Geometry{
		YawOffsetDeg:     defaultYawDeg + math.Min(c.WindShear/5, 10),
		BankDeg:          defaultBank + math.Min(c.Vorticity*500, 3),
		AngleOfAttackDeg: defaultAoA,
		Alignment:        mode,
	}
	if mode != AlignNone {
		h := HeadingFromWind(c.WindFromDeg, mode)
		g.DesiredHeadingDeg = &h
	}
	return g
}
