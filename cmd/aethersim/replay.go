package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aethersim/internal/config"
	"aethersim/internal/sim"
)

var (
	replayInput      string
	replaySpeed      float64
	replayPrintOnly  bool
	replayConfigPath string
	replaySchemaPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an agent telemetry log file",
	Long:  "replay feeds agent telemetry rows from a log file back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := config.Load(replayConfigPath, replaySchemaPath)
		if err != nil {
			return err
		}
		writer, err := newTelemetryWriter(cfg, replayPrintOnly)
		if err != nil {
			return err
		}
		return sim.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to agent telemetry log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	replayCmd.Flags().StringVar(&replaySchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	replayCmd.MarkFlagRequired("input")
}
