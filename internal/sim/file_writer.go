package sim

import (
	"encoding/json"
	"os"

	"aethersim/internal/feedback"
	"aethersim/internal/telemetry"
)

// FileWriter logs agent telemetry, targets, events, outcomes, and cycle rows
// to JSONL files.
type FileWriter struct {
	agentFile   *os.File
	targetFile  *os.File
	eventFile   *os.File
	outcomeFile *os.File
	agentEnc    *json.Encoder
	targetEnc   *json.Encoder
	eventEnc    *json.Encoder
	outcomeEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. targetPath, eventPath, or outcomePath
// may be empty to skip those logs.
func NewFileWriter(agentPath, targetPath, eventPath, outcomePath string) (*FileWriter, error) {
	af, err := os.Create(agentPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{agentFile: af, agentEnc: json.NewEncoder(af)}
	if targetPath != "" {
		tf, err := os.Create(targetPath)
		if err != nil {
			af.Close()
			return nil, err
		}
		fw.targetFile = tf
		fw.targetEnc = json.NewEncoder(tf)
	}
	if eventPath != "" {
		ef, err := os.Create(eventPath)
		if err != nil {
			if fw.targetFile != nil {
				fw.targetFile.Close()
			}
			af.Close()
			return nil, err
		}
		fw.eventFile = ef
		fw.eventEnc = json.NewEncoder(ef)
	}
	if outcomePath != "" {
		of, err := os.Create(outcomePath)
		if err != nil {
			if fw.targetFile != nil {
				fw.targetFile.Close()
			}
			if fw.eventFile != nil {
				fw.eventFile.Close()
			}
			af.Close()
			return nil, err
		}
		fw.outcomeFile = of
		fw.outcomeEnc = json.NewEncoder(of)
	}
	return fw, nil
}

// Write logs a single agent telemetry row.
func (f *FileWriter) Write(row telemetry.AgentRow) error {
	return f.agentEnc.Encode(row)
}

// WriteBatch logs multiple agent telemetry rows.
func (f *FileWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteTarget logs a single target row, if enabled.
func (f *FileWriter) WriteTarget(row telemetry.TargetRow) error {
	if f.targetEnc == nil {
		return nil
	}
	return f.targetEnc.Encode(row)
}

// WriteTargets logs multiple target rows.
func (f *FileWriter) WriteTargets(rows []telemetry.TargetRow) error {
	for _, r := range rows {
		if err := f.WriteTarget(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent logs a single coordination event, if enabled.
func (f *FileWriter) WriteEvent(e telemetry.EventRow) error {
	if f.eventEnc == nil {
		return nil
	}
	return f.eventEnc.Encode(e)
}

// WriteEvents logs multiple coordination events.
func (f *FileWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, r := range rows {
		if err := f.WriteEvent(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteOutcome logs a single outcome record, if enabled.
func (f *FileWriter) WriteOutcome(rec feedback.OutcomeRecord) error {
	if f.outcomeEnc == nil {
		return nil
	}
	return f.outcomeEnc.Encode(rec)
}

// WriteOutcomes logs multiple outcome records.
func (f *FileWriter) WriteOutcomes(recs []feedback.OutcomeRecord) error {
	for _, r := range recs {
		if err := f.WriteOutcome(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCycle logs a cycle state row to the agent telemetry file.
func (f *FileWriter) WriteCycle(row telemetry.CycleRow) error {
	return f.agentEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	for _, file := range []*os.File{f.agentFile, f.targetFile, f.eventFile, f.outcomeFile} {
		if file == nil {
			continue
		}
		if e := file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
