package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"aethersim/internal/atmosphere"
	"aethersim/internal/feedback"
	"aethersim/internal/fleet"
	"aethersim/internal/logging"
	"aethersim/internal/scenario"
	"aethersim/internal/scoring"
	"aethersim/internal/telemetry"
)

// Run starts the cycle loop and blocks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	log := logging.FromContext(ctx)
	log.Info("simulator started",
		"cluster", s.clusterID,
		"tick", s.tickInterval.String(),
		"agents", len(s.roster.Agents()),
		"zones", len(s.cfg.Zones),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("simulator stopped", "cycles", s.cycleCount)
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle advances the coordination state machine one full turn:
// Idle -> Scoring -> Coordinating -> Feedback -> Synced -> Idle. Scoring and
// the heartbeat sweep run concurrently; assignment commits happen only after
// both have joined and the context is still live.
func (s *Simulator) runCycle(ctx context.Context) {
	log := logging.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycleCount++
	s.scnTicks++
	ts := s.now().UTC()

	// --- Scoring phase: score this cycle's cells while the heartbeat sweep
	// runs alongside. The roster and scorer touch disjoint state, so the two
	// legs never contend.
	s.phase = PhaseScoring

	cells := s.takeCells()

	var (
		wg       sync.WaitGroup
		targets  []scoring.Target
		skipped  []error
		timeouts []*fleet.AgentTimeoutError
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		targets, skipped = s.scorer.Rank(cells)
	}()
	go func() {
		defer wg.Done()
		s.simulateHeartbeats(ts)
		timeouts = s.roster.Sweep()
	}()
	wg.Wait()

	for _, err := range skipped {
		log.Warn("cell skipped", "err", err)
	}
	s.lastTargets = targets

	var events []telemetry.EventRow

	// --- Coordinating phase: release first, then stage and commit.
	s.phase = PhaseCoordinating

	for _, te := range timeouts {
		log.Warn("agent offline", "err", te)
		events = append(events, s.releaseAgent(te.AgentID, "heartbeat timeout", ts)...)
	}
	var outcomes []feedback.OutcomeRecord
	expired, expireEvents := s.expireAssignments(ts)
	events = append(events, expireEvents...)
	releaseEvents := s.releaseWeakAssignments(targets, ts)
	events = append(events, releaseEvents...)

	staged := s.stageAssignments(targets, ts)

	// All-or-nothing: a cancelled cycle commits no assignments.
	if ctx.Err() != nil {
		s.phase = PhaseIdle
		return
	}
	events = append(events, s.commitAssignments(staged, ts)...)

	s.moveAgents(ts)
	s.roster.Tick()
	events = append(events, s.patternEvents(ts)...)

	// --- Feedback phase: close expired windows and nudge the weights.
	s.phase = PhaseFeedback

	for _, a := range expired {
		result := s.simulateOutcome(a)
		rec := s.loop.Close(a, result, ts)
		outcomes = append(outcomes, rec)
		s.outcomesTotal++
	}

	if s.cfg.Roster.RotationIntervalTicks > 0 && s.cycleCount%s.cfg.Roster.RotationIntervalTicks == 0 {
		changes := s.roster.RotateRoles()
		events = append(events, s.rotationEvent(changes, ts)...)
	}

	s.advanceScenario(ctx, targets)

	// --- Sync phase: publish local state, broadcast, and fold in whatever
	// peers have sent since the last cycle.
	s.phase = PhaseSynced

	s.store.SetLocal(s.roster.Agents(), s.assignmentList(), outcomes)
	if s.hub != nil && s.syncDue() {
		snap := s.store.Snapshot(s.clusterID, ts)
		s.hub.Broadcast(ctx, snap)
	}

	s.writeRows(ctx, targets, events, outcomes, len(cells), len(skipped), ts)

	s.phase = PhaseIdle
}

// takeCells consumes queued external payload cells, falling back to the
// synthetic field engine when nothing was ingested.
func (s *Simulator) takeCells() []atmosphere.Cell {
	if len(s.pending) > 0 {
		cells := s.pending
		s.pending = nil
		return cells
	}
	s.engine.Step()
	return s.engine.Sample()
}

// simulateHeartbeats delivers this tick's heartbeat signals. Agents report
// on the configured interval (every tick when unset), a small fraction drops
// at random, and chaos mode raises the drop rate. Offline agents have a
// recovery chance so the roster heals over time.
func (s *Simulator) simulateHeartbeats(now time.Time) {
	interval := time.Duration(s.cfg.Roster.HeartbeatIntervalS) * time.Second
	dropRate := 0.01
	if s.chaosMode {
		dropRate = s.cfg.ChaosDropRate
		if dropRate <= 0 {
			dropRate = 0.25
		}
	}
	for _, a := range s.roster.Agents() {
		if a.Status == fleet.StatusOffline {
			if s.rand.Float64() < 0.3 {
				_ = s.roster.Heartbeat(a.ID, a.Position)
			}
			continue
		}
		if interval > 0 && now.Sub(a.LastSeen) < interval {
			continue
		}
		if s.rand.Float64() < dropRate {
			continue
		}
		_ = s.roster.Heartbeat(a.ID, a.Position)
	}
}

func (s *Simulator) assignmentList() []fleet.Assignment {
	out := make([]fleet.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	return out
}

func (s *Simulator) syncDue() bool {
	every := s.cfg.Sync.EveryTicks
	if every <= 0 {
		every = 1
	}
	return s.cycleCount%every == 0
}

// expireAssignments closes assignments whose validity window has passed and
// frees their agents.
func (s *Simulator) expireAssignments(ts time.Time) ([]fleet.Assignment, []telemetry.EventRow) {
	var expired []fleet.Assignment
	var events []telemetry.EventRow
	for id, a := range s.assignments {
		if ts.Before(a.ValidUntil) {
			continue
		}
		expired = append(expired, a)
		delete(s.assignments, id)
		delete(s.agentAssignments, a.AgentID)
		s.store.DropAssignment(id)
		if ag := s.roster.Get(a.AgentID); ag != nil && ag.Status != fleet.StatusOffline {
			ag.Status = fleet.StatusIdle
			ag.AssignedCell = ""
			ag.UpdatedAt = ts
		}
		events = append(events, telemetry.EventRow{
			ClusterID: s.clusterID,
			EventType: telemetry.EventRelease,
			AgentIDs:  []string{a.AgentID},
			CellKey:   a.CellKey,
			Detail:    "window closed",
			Timestamp: ts,
		})
	}
	return expired, events
}

// releaseWeakAssignments drops assignments whose target has decayed below the
// release threshold in the current cycle's scoring.
func (s *Simulator) releaseWeakAssignments(targets []scoring.Target, ts time.Time) []telemetry.EventRow {
	threshold := s.cfg.Scoring.ReleaseThreshold
	if threshold <= 0 {
		return nil
	}
	scores := make(map[string]float64, len(targets))
	for _, t := range targets {
		scores[t.Cell.Key()] = t.Score
	}
	var events []telemetry.EventRow
	for id, a := range s.assignments {
		score, seen := scores[a.CellKey]
		if !seen || score >= threshold {
			continue
		}
		delete(s.assignments, id)
		delete(s.agentAssignments, a.AgentID)
		s.store.DropAssignment(id)
		if ag := s.roster.Get(a.AgentID); ag != nil && ag.Status != fleet.StatusOffline {
			ag.Status = fleet.StatusIdle
			ag.AssignedCell = ""
			ag.UpdatedAt = ts
		}
		events = append(events, telemetry.EventRow{
			ClusterID: s.clusterID,
			EventType: telemetry.EventRelease,
			AgentIDs:  []string{a.AgentID},
			CellKey:   a.CellKey,
			Detail:    "target decayed",
			Timestamp: ts,
		})
	}
	return events
}

// releaseAgent frees any assignment held by the agent, then tries to cover
// the vacated cell from the squad's fallback pool.
func (s *Simulator) releaseAgent(agentID, reason string, ts time.Time) []telemetry.EventRow {
	id, ok := s.agentAssignments[agentID]
	if !ok {
		return nil
	}
	a := s.assignments[id]
	delete(s.assignments, id)
	delete(s.agentAssignments, agentID)
	s.store.DropAssignment(id)

	events := []telemetry.EventRow{{
		ClusterID: s.clusterID,
		EventType: telemetry.EventRelease,
		AgentIDs:  []string{agentID},
		CellKey:   a.CellKey,
		Detail:    reason,
		Timestamp: ts,
	}}

	if ag := s.roster.Get(agentID); ag != nil {
		if backup := s.roster.AssignBackup(ag.Squad); backup != nil {
			committed := s.commitAssignments([]stagedAssignment{{
				agentID: backup.ID,
				target:  scoring.Target{Cell: a.Target, Score: a.Score},
			}}, ts)
			events = append(events, committed...)
			events = append(events, telemetry.EventRow{
				ClusterID: s.clusterID,
				EventType: telemetry.EventBackup,
				AgentIDs:  []string{backup.ID},
				CellKey:   a.CellKey,
				Detail:    "covering for " + agentID,
				Timestamp: ts,
			})
		}
	}
	return events
}

// simulateOutcome resolves a closed window. Success probability grows with
// the target's score on top of the configured bias.
func (s *Simulator) simulateOutcome(a fleet.Assignment) feedback.Result {
	bias := s.cfg.Outcome.SuccessBias
	if bias <= 0 {
		bias = 0.3
	}
	p := bias + 0.5*a.Score
	if p > 0.95 {
		p = 0.95
	}
	roll := s.rand.Float64()
	switch {
	case roll < p:
		return feedback.ResultSuccess
	case roll < p+0.15:
		return feedback.ResultInconclusive
	default:
		return feedback.ResultFailure
	}
}

func (s *Simulator) rotationEvent(changes []fleet.RoleChange, ts time.Time) []telemetry.EventRow {
	if len(changes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(changes))
	for _, c := range changes {
		ids = append(ids, c.AgentID)
	}
	return []telemetry.EventRow{{
		ClusterID: s.clusterID,
		EventType: telemetry.EventRotation,
		AgentIDs:  ids,
		Timestamp: ts,
	}}
}

func (s *Simulator) logRotation(changes []fleet.RoleChange) {
	rows := s.rotationEvent(changes, s.now().UTC())
	if ew, ok := s.writer.(EventWriter); ok {
		for _, r := range rows {
			_ = ew.WriteEvent(r)
		}
	}
}

// patternEvents emits the behavior pattern each on-station agent is flying
// this tick: zigzag in saturated air, spiral otherwise.
func (s *Simulator) patternEvents(ts time.Time) []telemetry.EventRow {
	var events []telemetry.EventRow
	for _, a := range s.roster.Agents() {
		if a.Status != fleet.StatusOnStation {
			continue
		}
		id, ok := s.agentAssignments[a.ID]
		if !ok {
			continue
		}
		asg := s.assignments[id]
		pattern := "spiral"
		if asg.Target.Humidity > 0.75 {
			pattern = "zigzag"
		}
		events = append(events, telemetry.EventRow{
			ClusterID: s.clusterID,
			EventType: telemetry.EventPattern,
			AgentIDs:  []string{a.ID},
			CellKey:   asg.CellKey,
			Detail:    pattern,
			Timestamp: ts,
		})
	}
	return events
}

// advanceScenario feeds this cycle's observations into the scenario triggers
// and applies the next phase's field settings on transition.
func (s *Simulator) advanceScenario(ctx context.Context, targets []scoring.Target) {
	if s.scn == nil {
		return
	}
	focus := 0
	for _, t := range targets {
		if s.scorer.ShouldFocus(t) {
			focus++
		}
	}
	for _, ev := range []scenario.Event{
		{Type: scenario.EventTimeElapsed, Value: s.scnTicks},
		{Type: scenario.EventCellsAboveFocus, Value: focus},
		{Type: scenario.EventOutcomes, Value: s.outcomesTotal},
	} {
		next, ok := s.scn.NextPhase(s.scnPhase, ev)
		if !ok {
			continue
		}
		logging.FromContext(ctx).Info("scenario phase change",
			"from", s.scnPhase, "to", next, "trigger", ev.Type)
		s.enterScenarioPhase(next)
		return
	}
}

func (s *Simulator) enterScenarioPhase(name string) {
	p, ok := s.scn.Phase(name)
	if !ok {
		return
	}
	s.scnPhase = name
	s.scnTicks = 0
	if p.IntensityScale > 0 {
		s.engine.IntensityScale = p.IntensityScale
	}
	if p.SystemCount > 0 {
		s.engine.SetSystemCount(p.SystemCount)
	}
}

// writeRows pushes this cycle's rows through the configured writers, using
// batch interfaces when the writer supports them.
func (s *Simulator) writeRows(ctx context.Context, targets []scoring.Target, events []telemetry.EventRow, outcomes []feedback.OutcomeRecord, cellCount, skippedCount int, ts time.Time) {
	log := logging.FromContext(ctx)

	agentRows := make([]telemetry.AgentRow, 0, len(s.roster.Agents()))
	for _, a := range s.roster.Agents() {
		pattern := ""
		if id, ok := s.agentAssignments[a.ID]; ok && a.Status == fleet.StatusOnStation {
			if s.assignments[id].Target.Humidity > 0.75 {
				pattern = "zigzag"
			} else {
				pattern = "spiral"
			}
		}
		agentRows = append(agentRows, s.agentRow(a, pattern, ts))
	}
	if bw, ok := s.writer.(batchWriter); ok {
		if err := bw.WriteBatch(agentRows); err != nil {
			log.Error("agent batch write failed", "err", err)
		}
	} else {
		for _, row := range agentRows {
			if err := s.writer.Write(row); err != nil {
				log.Error("agent write failed", "err", err)
			}
		}
	}

	targetRows := make([]telemetry.TargetRow, 0, len(targets))
	var capeSum float64
	for _, t := range targets {
		capeSum += t.Cell.CAPE
		g := scoring.SuggestGeometry(t.Cell, s.alignment)
		row := telemetry.TargetRow{
			ClusterID:    s.clusterID,
			CellKey:      t.Cell.Key(),
			Lat:          t.Cell.Lat,
			Lon:          t.Cell.Lon,
			Score:        t.Score,
			CAPE:         t.Cell.CAPE,
			Vorticity:    t.Cell.Vorticity,
			Humidity:     t.Cell.Humidity,
			Focus:        s.scorer.ShouldFocus(t),
			YawOffsetDeg: g.YawOffsetDeg,
			Alignment:    string(g.Alignment),
			Timestamp:    ts,
		}
		if g.DesiredHeadingDeg != nil {
			row.HeadingDeg = *g.DesiredHeadingDeg
		}
		targetRows = append(targetRows, row)
	}
	if s.targetWriter != nil {
		if bw, ok := s.targetWriter.(batchTargetWriter); ok {
			if err := bw.WriteTargets(targetRows); err != nil {
				log.Error("target batch write failed", "err", err)
			}
		} else {
			for _, row := range targetRows {
				if err := s.targetWriter.WriteTarget(row); err != nil {
					log.Error("target write failed", "err", err)
				}
			}
		}
	}

	if ew, ok := s.writer.(EventWriter); ok && len(events) > 0 {
		if bw, ok := s.writer.(batchEventWriter); ok {
			if err := bw.WriteEvents(events); err != nil {
				log.Error("event batch write failed", "err", err)
			}
		} else {
			for _, row := range events {
				if err := ew.WriteEvent(row); err != nil {
					log.Error("event write failed", "err", err)
				}
			}
		}
	}

	if ow, ok := s.writer.(OutcomeWriter); ok && len(outcomes) > 0 {
		if bw, ok := s.writer.(batchOutcomeWriter); ok {
			if err := bw.WriteOutcomes(outcomes); err != nil {
				log.Error("outcome batch write failed", "err", err)
			}
		} else {
			for _, rec := range outcomes {
				if err := ow.WriteOutcome(rec); err != nil {
					log.Error("outcome write failed", "err", err)
				}
			}
		}
	}

	if cw, ok := s.writer.(CycleWriter); ok {
		var avgCAPE float64
		if len(targets) > 0 {
			avgCAPE = capeSum / float64(len(targets))
		}
		active := make([]string, 0, len(s.assignments))
		for _, a := range s.assignments {
			active = append(active, a.AgentID)
		}
		sort.Strings(active)
		w := s.scorer.Weights()
		row := telemetry.CycleRow{
			ClusterID:       s.clusterID,
			Cycle:           s.cycleCount,
			Phase:           string(s.phase),
			ScenarioPhase:   s.scnPhase,
			CellCount:       cellCount,
			TargetCount:     len(targets),
			AssignmentCount: len(s.assignments),
			OutcomeCount:    len(outcomes),
			SkippedCells:    skippedCount,
			AvgCAPE:         avgCAPE,
			ActiveAgents:    active,
			AlignmentMode:   string(s.alignment),
			WeightCAPE:      w.CAPE,
			WeightVorticity: w.Vorticity,
			WeightHumidity:  w.Humidity,
			WeightVertVel:   w.VerticalVelocity,
			WeightAnomaly:   w.Anomaly,
			ChaosMode:       s.chaosMode,
			Timestamp:       ts,
		}
		if bw, ok := s.writer.(batchCycleWriter); ok {
			if err := bw.WriteCycles([]telemetry.CycleRow{row}); err != nil {
				log.Error("cycle batch write failed", "err", err)
			}
		} else if err := cw.WriteCycle(row); err != nil {
			log.Error("cycle write failed", "err", err)
		}
	}
}
