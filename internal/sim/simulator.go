// Simulator orchestrating the coordination cycle
package sim

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/feedback"
	"aethersim/internal/fleet"
	"aethersim/internal/logging"
	"aethersim/internal/scenario"
	"aethersim/internal/scoring"
	"aethersim/internal/syncpeer"
	"aethersim/internal/telemetry"
)

// Phase names for the coordination cycle state machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseScoring      Phase = "scoring"
	PhaseCoordinating Phase = "coordinating"
	PhaseFeedback     Phase = "feedback"
	PhaseSynced       Phase = "synced"
)

// Simulator orchestrates ingest, scoring, coordination, feedback, and sync
// over a fixed tick.
type Simulator struct {
	clusterID    string
	cfg          *config.SimulationConfig
	roster       *fleet.Roster
	scorer       *scoring.Scorer
	loop         *feedback.Loop
	engine       *atmosphere.Engine
	store        *syncpeer.Store
	hub          *syncpeer.Hub
	writer       TelemetryWriter
	targetWriter TargetWriter
	tickInterval time.Duration
	distance     func(lat1, lon1, lat2, lon2 float64) float64
	alignment    scoring.AlignmentMode
	rand         *rand.Rand
	now          func() time.Time

	chaosMode        bool
	phase            Phase
	cycleCount       int
	outcomesTotal    int
	assignments      map[string]fleet.Assignment // by assignment id
	agentAssignments map[string]string           // agent id -> assignment id
	pending          []atmosphere.Cell           // externally ingested payloads
	lastTargets      []scoring.Target

	scn      *scenario.Scenario
	scnPhase string
	scnTicks int

	mu sync.Mutex
}

// NewSimulator initializes the roster from squad config and wires the field
// engine, scorer, feedback loop, and shared state store. rnd and now may be
// nil for production defaults. Optional writer capabilities (events,
// outcomes, cycle rows, batching) are discovered by type assertion on
// writer and targetWriter.
func NewSimulator(clusterID string, cfg *config.SimulationConfig, writer TelemetryWriter, targetWriter TargetWriter, tickInterval time.Duration, rnd *rand.Rand, now func() time.Time) *Simulator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}

	scorer := scoring.NewScorer(orDefaultWeights(cfg.Scoring.Weights),
		cfg.Scoring.WeightMin, cfg.Scoring.WeightMax, cfg.Scoring.FocusThreshold)

	timeout := time.Duration(cfg.Roster.HeartbeatTimeoutS) * time.Second
	roster := fleet.NewRoster(timeout, now)

	s := &Simulator{
		clusterID:        clusterID,
		cfg:              cfg,
		roster:           roster,
		scorer:           scorer,
		loop:             feedback.NewLoop(scorer, cfg.Outcome.Alpha, cfg.Outcome.KeepRecords),
		store:            syncpeer.NewStore(),
		writer:           writer,
		targetWriter:     targetWriter,
		tickInterval:     tickInterval,
		alignment:        alignmentMode(cfg.Scoring.Alignment),
		rand:             rnd,
		now:              now,
		phase:            PhaseIdle,
		assignments:      make(map[string]fleet.Assignment),
		agentAssignments: make(map[string]string),
	}

	switch strings.ToLower(cfg.DistanceMetric) {
	case "equirect":
		s.distance = atmosphere.EquirectDistanceMeters
	default:
		s.distance = atmosphere.DistanceMeters
	}

	// Initialize squads
	for _, squad := range cfg.Squads {
		zone := s.zoneByName(squad.HomeZone)
		pos := atmosphere.Position{Lat: zone.CenterLat, Lon: zone.CenterLon, Alt: 100}
		for i := 0; i < squad.Scanners; i++ {
			roster.Register(squad.Name, fleet.RoleScanner, pos)
		}
		for i := 0; i < squad.Relays; i++ {
			roster.Register(squad.Name, fleet.RoleRelay, pos)
		}
		for i := 0; i < squad.Operators; i++ {
			roster.Register(squad.Name, fleet.RoleOperator, pos)
		}
		for i := 0; i < squad.Fallbacks; i++ {
			roster.Register(squad.Name, fleet.RoleFallback, pos)
		}
	}

	// Initialize the synthetic field engine across all zones.
	count := cfg.SystemCount
	if count <= 0 {
		count = 3
	}
	s.engine = atmosphere.NewEngine(count, cfg.CellsPerZone, cfg.Zones, rnd, now)

	// Scenario names resolve against the built-in arcs first; anything else
	// is treated as a path to a YAML scenario file.
	if cfg.Scenario != "" {
		if scn, ok := scenario.BuiltIn()[cfg.Scenario]; ok {
			s.scn = &scn
			s.enterScenarioPhase(scn.Phases[0].Name)
		} else if scn, err := scenario.Load(cfg.Scenario); err == nil && len(scn.Phases) > 0 {
			s.scn = scn
			s.enterScenarioPhase(scn.Phases[0].Name)
		} else {
			logging.New().Warn("scenario not found, running without one",
				"scenario", cfg.Scenario, "err", err)
		}
	}

	return s
}

func orDefaultWeights(w scoring.Weights) scoring.Weights {
	if w == (scoring.Weights{}) {
		return scoring.DefaultWeights()
	}
	return w
}

func alignmentMode(mode string) scoring.AlignmentMode {
	switch scoring.AlignmentMode(strings.ToLower(mode)) {
	case scoring.AlignUpwind:
		return scoring.AlignUpwind
	case scoring.AlignDownwind:
		return scoring.AlignDownwind
	case scoring.AlignNone:
		return scoring.AlignNone
	default:
		return scoring.AlignCrosswind
	}
}

func (s *Simulator) zoneByName(name string) atmosphere.Region {
	for _, z := range s.cfg.Zones {
		if z.Name == name {
			return z
		}
	}
	return s.cfg.Zones[0]
}

// SetHub attaches the peer sync hub. Optional; without one, snapshots stay
// local.
func (s *Simulator) SetHub(h *syncpeer.Hub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = h
}

// Store exposes the shared state store for the sync listener.
func (s *Simulator) Store() *syncpeer.Store {
	return s.store
}

// IngestPayload queues externally supplied cell readings; the next cycle
// consumes them instead of sampling the synthetic engine.
func (s *Simulator) IngestPayload(p atmosphere.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p.Cells...)
}

// ToggleChaos flips chaos mode on or off and returns the new state.
func (s *Simulator) ToggleChaos() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chaosMode = !s.chaosMode
	return s.chaosMode
}

// Chaos returns whether chaos mode is active.
func (s *Simulator) Chaos() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chaosMode
}

// Phase returns the current cycle phase.
func (s *Simulator) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Weights returns the scorer's current weight vector.
func (s *Simulator) Weights() scoring.Weights {
	return s.scorer.Weights()
}

// LaunchSquad registers count new scanner agents under the given squad name.
func (s *Simulator) LaunchSquad(name string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	zone := s.cfg.Zones[0]
	pos := atmosphere.Position{Lat: zone.CenterLat, Lon: zone.CenterLon, Alt: 100}
	for i := 0; i < count; i++ {
		s.roster.Register(name, fleet.RoleScanner, pos)
	}
}

// RotateNow triggers an immediate role rotation and returns the changes.
func (s *Simulator) RotateNow() []fleet.RoleChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	changes := s.roster.RotateRoles()
	s.logRotation(changes)
	return changes
}

// RotationQueue returns agent ids in rotation order, most worn first.
func (s *Simulator) RotationQueue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.RotationSchedule()
}

// SquadHealth summarizes status counts per squad.
type SquadHealth struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Idle      int    `json:"idle"`
	EnRoute   int    `json:"en_route"`
	OnStation int    `json:"on_station"`
	Degraded  int    `json:"degraded"`
	Offline   int    `json:"offline"`
}

// Health returns aggregated health information for all squads.
func (s *Simulator) Health() []SquadHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySquad := make(map[string]*SquadHealth)
	var order []string
	for _, a := range s.roster.Agents() {
		h, ok := bySquad[a.Squad]
		if !ok {
			h = &SquadHealth{Name: a.Squad}
			bySquad[a.Squad] = h
			order = append(order, a.Squad)
		}
		h.Total++
		switch a.Status {
		case fleet.StatusIdle:
			h.Idle++
		case fleet.StatusEnRoute:
			h.EnRoute++
		case fleet.StatusOnStation:
			h.OnStation++
		case fleet.StatusDegraded:
			h.Degraded++
		case fleet.StatusOffline:
			h.Offline++
		}
	}
	result := make([]SquadHealth, 0, len(order))
	for _, name := range order {
		result = append(result, *bySquad[name])
	}
	return result
}

// Targets returns the last cycle's ranked targets.
func (s *Simulator) Targets() []scoring.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scoring.Target, len(s.lastTargets))
	copy(out, s.lastTargets)
	return out
}

// Assignments returns the current assignment set sorted by id.
func (s *Simulator) Assignments() []fleet.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fleet.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SharedSnapshot returns the current publishable shared state.
func (s *Simulator) SharedSnapshot() syncpeer.Snapshot {
	return s.store.Snapshot(s.clusterID, s.now())
}

// GetConfig returns the simulation configuration.
func (s *Simulator) GetConfig() *config.SimulationConfig {
	return s.cfg
}

// TelemetrySnapshot returns the latest state for all agents.
func (s *Simulator) TelemetrySnapshot() []telemetry.AgentRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC()
	var rows []telemetry.AgentRow
	for _, a := range s.roster.Agents() {
		rows = append(rows, s.agentRow(a, "", ts))
	}
	return rows
}

func (s *Simulator) agentRow(a fleet.Agent, pattern string, ts time.Time) telemetry.AgentRow {
	return telemetry.AgentRow{
		ClusterID: s.clusterID,
		AgentID:   a.ID,
		Squad:     a.Squad,
		Role:      string(a.Role),
		Status:    string(a.Status),
		Lat:       a.Position.Lat,
		Lon:       a.Position.Lon,
		Alt:       a.Position.Alt,
		Wear:      a.Wear,
		CellKey:   a.AssignedCell,
		Pattern:   pattern,
		Timestamp: ts,
	}
}
