package sim

import (
	"math"
	"time"

	"aethersim/internal/fleet"
)

const (
	// cruiseSpeed is the per-tick travel budget for an en-route agent, in
	// meters.
	cruiseSpeed = 2500.0
	// stationRadius is the arrival distance at which an agent goes on
	// station, in meters.
	stationRadius = 500.0
	// idleJitter is the per-tick random drift for idle agents, in degrees.
	idleJitter = 0.0005
)

// moveAgents advances every agent one tick: en-route agents fly toward their
// assigned cell and go on station on arrival, idle agents drift in place.
// Offline and degraded agents hold position.
func (s *Simulator) moveAgents(ts time.Time) {
	for _, snap := range s.roster.Agents() {
		a := s.roster.Get(snap.ID)
		switch a.Status {
		case fleet.StatusEnRoute:
			id, ok := s.agentAssignments[a.ID]
			if !ok {
				a.Status = fleet.StatusIdle
				a.AssignedCell = ""
				a.UpdatedAt = ts
				continue
			}
			target := s.assignments[id].Target
			dist := s.distance(a.Position.Lat, a.Position.Lon, target.Lat, target.Lon)
			if dist <= stationRadius {
				a.Status = fleet.StatusOnStation
				a.UpdatedAt = ts
				continue
			}
			frac := cruiseSpeed / dist
			if frac > 1 {
				frac = 1
			}
			a.Position.Lat += (target.Lat - a.Position.Lat) * frac
			a.Position.Lon += (target.Lon - a.Position.Lon) * frac
			a.Position.Alt = 300 + 50*math.Sin(float64(s.cycleCount)/10)
			a.UpdatedAt = ts
		case fleet.StatusIdle:
			a.Position.Lat += (s.rand.Float64() - 0.5) * idleJitter
			a.Position.Lon += (s.rand.Float64() - 0.5) * idleJitter
			a.UpdatedAt = ts
		}
	}
}
