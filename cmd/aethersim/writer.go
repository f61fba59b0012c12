package main

import (
	"os"

	"golang.org/x/term"

	"aethersim/internal/config"
	"aethersim/internal/sim"
)

// newWriters sets up agent and target writers based on flags and env vars.
// It returns the writers and a cleanup function to close any resources.
func newWriters(cfg *config.SimulationConfig, printOnly, tui bool, logFile string) (sim.TelemetryWriter, sim.TargetWriter, func(), error) {
	cleanup := func() {}

	writer, targetWriter, err := baseWriters(cfg, printOnly, tui)
	if err != nil {
		return nil, nil, nil, err
	}
	if c, ok := writer.(interface{ Close() error }); ok {
		cleanup = func() { c.Close() }
	}
	if logFile == "" {
		return writer, targetWriter, cleanup, nil
	}

	fw, err := sim.NewFileWriter(logFile, logFile+".targets", logFile+".events", logFile+".outcomes")
	if err != nil {
		return nil, nil, nil, err
	}
	mw := sim.NewMultiWriter(
		[]sim.TelemetryWriter{writer, fw},
		[]sim.TargetWriter{targetWriter, fw},
	)
	prev := cleanup
	cleanup = func() {
		fw.Close()
		prev()
	}
	return mw, mw, cleanup, nil
}

// baseWriters chooses the underlying writers based on flags and env vars.
// Order: explicit TUI, then GreptimeDB when an endpoint is configured, then a
// colorized stdout writer on a terminal, falling back to plain JSON.
func baseWriters(cfg *config.SimulationConfig, printOnly, tui bool) (sim.TelemetryWriter, sim.TargetWriter, error) {
	if tui {
		w := sim.NewTUIWriter(cfg)
		return w, w, nil
	}
	if !printOnly && os.Getenv("GREPTIMEDB_ENDPOINT") != "" {
		endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
		database := os.Getenv("GREPTIMEDB_DATABASE")
		if database == "" {
			database = "public"
		}
		w, err := sim.NewGreptimeDBWriter(endpoint, database)
		if err != nil {
			return nil, nil, err
		}
		return w, w, nil
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		w := sim.NewColorStdoutWriter(cfg)
		return w, w, nil
	}
	w := sim.NewJSONStdoutWriter()
	return w, w, nil
}

// newTelemetryWriter creates an agent telemetry writer without target
// handling, used by replay.
func newTelemetryWriter(cfg *config.SimulationConfig, printOnly bool) (sim.TelemetryWriter, error) {
	w, _, _, err := newWriters(cfg, printOnly, false, "")
	return w, err
}
