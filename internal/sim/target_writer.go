package sim

import "aethersim/internal/telemetry"

// TargetWriter handles scored target rows.
type TargetWriter interface {
	WriteTarget(telemetry.TargetRow) error
}

// Optional: target writers may support batch mode.
type batchTargetWriter interface {
	WriteTargets([]telemetry.TargetRow) error
}
