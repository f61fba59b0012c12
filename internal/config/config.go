// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"aethersim/internal/atmosphere"
	"aethersim/internal/scoring"
)

// Squad defines a group of agents launched into a home zone with explicit
// per-role counts.
type Squad struct {
	Name      string `yaml:"name"`
	HomeZone  string `yaml:"home_zone"`
	Scanners  int    `yaml:"scanners"`
	Relays    int    `yaml:"relays"`
	Operators int    `yaml:"operators"`
	Fallbacks int    `yaml:"fallbacks"`
}

// Total returns the squad's agent count across all roles.
func (s Squad) Total() int {
	return s.Scanners + s.Relays + s.Operators + s.Fallbacks
}

// ScoringConfig holds scorer weights, bounds, and thresholds.
type ScoringConfig struct {
	Weights          scoring.Weights `yaml:"weights"`
	WeightMin        float64         `yaml:"weight_min"`
	WeightMax        float64         `yaml:"weight_max"`
	FocusThreshold   float64         `yaml:"focus_threshold"`
	ReleaseThreshold float64         `yaml:"release_threshold"`
	TopK             int             `yaml:"top_k"`
	Alignment        string          `yaml:"alignment_mode"`
}

// RosterConfig holds heartbeat and rotation policy.
type RosterConfig struct {
	HeartbeatTimeoutS     int `yaml:"heartbeat_timeout_s"`
	HeartbeatIntervalS    int `yaml:"heartbeat_interval_s"`
	RotationIntervalTicks int `yaml:"rotation_interval_ticks"`
}

// OutcomeConfig controls the simulated mission window.
type OutcomeConfig struct {
	WindowTicks int     `yaml:"window_ticks"`
	SuccessBias float64 `yaml:"success_bias"`
	Alpha       float64 `yaml:"alpha"`
	KeepRecords int     `yaml:"keep_records"`
}

// SyncConfig configures the peer sync layer.
type SyncConfig struct {
	Listen       string   `yaml:"listen"`
	Peers        []string `yaml:"peers"`
	SendTimeoutS int      `yaml:"send_timeout_s"`
	EveryTicks   int      `yaml:"every_ticks"`
}

// SimulationConfig is the root configuration for zones, squads, scoring,
// roster policy, outcomes, and sync.
type SimulationConfig struct {
	Zones          []atmosphere.Region `yaml:"zones"`
	Squads         []Squad             `yaml:"squads"`
	SystemCount    int                 `yaml:"system_count"`
	CellsPerZone   int                 `yaml:"cells_per_zone"`
	Scoring        ScoringConfig       `yaml:"scoring"`
	Roster         RosterConfig        `yaml:"roster"`
	Outcome        OutcomeConfig       `yaml:"outcome"`
	Sync           SyncConfig          `yaml:"sync"`
	DistanceMetric string              `yaml:"distance_metric"`
	Scenario       string              `yaml:"scenario"`
	ChaosDropRate  float64             `yaml:"chaos_drop_rate"`
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("config %s: no zones defined", configPath)
	}
	if len(cfg.Squads) == 0 {
		return nil, fmt.Errorf("config %s: no squads defined", configPath)
	}
	return &cfg, nil
}
