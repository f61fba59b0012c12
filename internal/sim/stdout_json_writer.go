package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

// JSONStdoutWriter prints agent telemetry, targets, events, outcomes, and
// cycle rows as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs an agent telemetry row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.AgentRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteBatch outputs multiple agent telemetry rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteTarget outputs a scored target row in JSON format.
func (w *JSONStdoutWriter) WriteTarget(row telemetry.TargetRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteTargets outputs multiple target rows in JSON format.
func (w *JSONStdoutWriter) WriteTargets(rows []telemetry.TargetRow) error {
	for _, r := range rows {
		_ = w.WriteTarget(r)
	}
	return nil
}

// WriteEvent outputs a coordination event in JSON format.
func (w *JSONStdoutWriter) WriteEvent(e telemetry.EventRow) error {
	data, _ := json.Marshal(e)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteEvents outputs multiple coordination events in JSON format.
func (w *JSONStdoutWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, r := range rows {
		_ = w.WriteEvent(r)
	}
	return nil
}

// WriteOutcome outputs an outcome record in JSON format.
func (w *JSONStdoutWriter) WriteOutcome(rec feedback.OutcomeRecord) error {
	data, _ := json.Marshal(rec)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteOutcomes outputs multiple outcome records in JSON format.
func (w *JSONStdoutWriter) WriteOutcomes(recs []feedback.OutcomeRecord) error {
	for _, r := range recs {
		_ = w.WriteOutcome(r)
	}
	return nil
}

// WriteCycle outputs a cycle state row in JSON format.
func (w *JSONStdoutWriter) WriteCycle(row telemetry.CycleRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}
