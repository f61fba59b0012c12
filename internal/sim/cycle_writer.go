package sim

import "aethersim/internal/telemetry"

// CycleWriter handles per-cycle state rows.
type CycleWriter interface {
	WriteCycle(telemetry.CycleRow) error
}

// Optional: writers may support batch mode for cycle rows.
type batchCycleWriter interface {
	WriteCycles([]telemetry.CycleRow) error
}
