package sim

import (
	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

// MultiWriter fans out agent, target, event, outcome, and cycle rows to
// multiple writers.
type MultiWriter struct {
	writers       []TelemetryWriter
	targetWriters []TargetWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(tws []TelemetryWriter, gws []TargetWriter) *MultiWriter {
	return &MultiWriter{writers: tws, targetWriters: gws}
}

// Write sends an agent telemetry row to all writers.
func (mw *MultiWriter) Write(row telemetry.AgentRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple agent rows to all writers, using batch if
// supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTarget sends a target row to all target writers.
func (mw *MultiWriter) WriteTarget(row telemetry.TargetRow) error {
	for _, w := range mw.targetWriters {
		if err := w.WriteTarget(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteTargets sends multiple target rows to all target writers, using batch
// if supported.
func (mw *MultiWriter) WriteTargets(rows []telemetry.TargetRow) error {
	for _, w := range mw.targetWriters {
		if bw, ok := w.(batchTargetWriter); ok {
			if err := bw.WriteTargets(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteTarget(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvent sends a coordination event to every writer that handles events.
func (mw *MultiWriter) WriteEvent(e telemetry.EventRow) error {
	for _, w := range mw.writers {
		if ew, ok := w.(EventWriter); ok {
			if err := ew.WriteEvent(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvents sends multiple coordination events, using batch if supported.
func (mw *MultiWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchEventWriter); ok {
			if err := bw.WriteEvents(rows); err != nil {
				return err
			}
			continue
		}
		ew, ok := w.(EventWriter)
		if !ok {
			continue
		}
		for _, r := range rows {
			if err := ew.WriteEvent(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteOutcome sends an outcome record to every writer that handles
// outcomes.
func (mw *MultiWriter) WriteOutcome(rec feedback.OutcomeRecord) error {
	for _, w := range mw.writers {
		if ow, ok := w.(OutcomeWriter); ok {
			if err := ow.WriteOutcome(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteOutcomes sends multiple outcome records, using batch if supported.
func (mw *MultiWriter) WriteOutcomes(recs []feedback.OutcomeRecord) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchOutcomeWriter); ok {
			if err := bw.WriteOutcomes(recs); err != nil {
				return err
			}
			continue
		}
		ow, ok := w.(OutcomeWriter)
		if !ok {
			continue
		}
		for _, r := range recs {
			if err := ow.WriteOutcome(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteCycle sends a cycle state row to every writer that handles them.
func (mw *MultiWriter) WriteCycle(row telemetry.CycleRow) error {
	for _, w := range mw.writers {
		if cw, ok := w.(CycleWriter); ok {
			if err := cw.WriteCycle(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteCycles sends multiple cycle state rows, using batch if supported.
func (mw *MultiWriter) WriteCycles(rows []telemetry.CycleRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchCycleWriter); ok {
			if err := bw.WriteCycles(rows); err != nil {
				return err
			}
			continue
		}
		cw, ok := w.(CycleWriter)
		if !ok {
			continue
		}
		for _, r := range rows {
			if err := cw.WriteCycle(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetAdminStatus forwards admin UI status to all capable writers.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.writers {
		if aw, ok := w.(AdminStatusWriter); ok {
			aw.SetAdminStatus(listening)
		}
	}
}
