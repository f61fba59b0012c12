package sim

import "aethersim/internal/telemetry"

// EventWriter handles coordination events.
type EventWriter interface {
	WriteEvent(telemetry.EventRow) error
}

// Optional: writers may support batch mode for events.
type batchEventWriter interface {
	WriteEvents([]telemetry.EventRow) error
}
