package atmosphere

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// System is one simulated convective system drifting through a zone.
type System struct {
	ID        string
	Position  Position
	Intensity float64 // peak CAPE in J/kg at the core
	RadiusKM  float64
	driftLat  float64
	driftLon  float64
	Region    Region
}

// Engine maintains and updates simulated convective systems and samples
// cell readings from them.
type Engine struct {
	regions      []Region
	cellsPerZone int
	rand         *rand.Rand
	now          func() time.Time
	Systems      []*System

	// IntensityScale is adjusted by scenario phases; 1.0 is nominal.
	IntensityScale float64
}

// NewEngine creates an engine with count systems spread across the regions.
// rnd and now may be nil; defaults are used then.
func NewEngine(count, cellsPerZone int, regions []Region, rnd *rand.Rand, now func() time.Time) *Engine {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	if cellsPerZone <= 0 {
		cellsPerZone = 16
	}
	e := &Engine{regions: regions, cellsPerZone: cellsPerZone, rand: rnd, now: now, IntensityScale: 1.0}
	for i := 0; i < count; i++ {
		region := regions[i%len(regions)]
		e.Systems = append(e.Systems, e.spawnSystem(region))
	}
	return e
}

func (e *Engine) spawnSystem(region Region) *System {
	return &System{
		ID:        uuid.New().String(),
		Position:  e.randomPosition(region),
		Intensity: 1500 + e.rand.Float64()*2500,
		RadiusKM:  5 + e.rand.Float64()*15,
		driftLat:  (e.rand.Float64() - 0.5) * 0.002,
		driftLon:  (e.rand.Float64() - 0.5) * 0.002,
		Region:    region,
	}
}

func (e *Engine) randomPosition(region Region) Position {
	angle := e.rand.Float64() * 2 * math.Pi
	r := e.rand.Float64() * region.RadiusKM * 1000
	dLat := (r * math.Cos(angle)) / 111000
	dLon := (r * math.Sin(angle)) / (111000 * math.Cos(region.CenterLat*math.Pi/180))
	return Position{Lat: region.CenterLat + dLat, Lon: region.CenterLon + dLon}
}

// SetSystemCount grows or shrinks the active system population, used by
// scenario phase transitions.
func (e *Engine) SetSystemCount(n int) {
	if n < 0 {
		n = 0
	}
	for len(e.Systems) > n {
		e.Systems = e.Systems[:len(e.Systems)-1]
	}
	for len(e.Systems) < n {
		region := e.regions[e.rand.Intn(len(e.regions))]
		e.Systems = append(e.Systems, e.spawnSystem(region))
	}
}

// Step drifts all systems and keeps them inside their home region.
func (e *Engine) Step() {
	for _, s := range e.Systems {
		s.Position.Lat += s.driftLat + (e.rand.Float64()-0.5)*0.0005
		s.Position.Lon += s.driftLon + (e.rand.Float64()-0.5)*0.0005
		dist := DistanceMeters(s.Position.Lat, s.Position.Lon, s.Region.CenterLat, s.Region.CenterLon)
		if dist > s.Region.RadiusKM*1000 {
			// Bounce the drift back toward the center.
			s.driftLat = -s.driftLat
			s.driftLon = -s.driftLon
		}
	}
}

// Sample produces one cycle of cell readings across all zones. Readings near
// a system core show elevated instability with distance decay; the rest is
// quiet background.
func (e *Engine) Sample() []Cell {
	ts := e.now().UTC()
	var cells []Cell
	for _, region := range e.regions {
		for i := 0; i < e.cellsPerZone; i++ {
			pos := e.randomPosition(region)
			cells = append(cells, e.readingAt(pos, ts))
		}
	}
	return cells
}

func (e *Engine) readingAt(pos Position, ts time.Time) Cell {
	// Background climatology.
	c := Cell{
		Lat:              pos.Lat,
		Lon:              pos.Lon,
		CAPE:             200 + e.rand.Float64()*400,
		Vorticity:        e.rand.Float64() * 0.0003,
		Humidity:         0.4 + e.rand.Float64()*0.3,
		VerticalVelocity: e.rand.Float64() * 0.5,
		Anomaly:          e.rand.Float64() * 0.2,
		WindFromDeg:      e.rand.Float64() * 360,
		WindShear:        e.rand.Float64() * 5,
		Timestamp:        ts,
	}
	for _, s := range e.Systems {
		dist := DistanceMeters(pos.Lat, pos.Lon, s.Position.Lat, s.Position.Lon)
		reach := s.RadiusKM * 1000
		if dist > reach {
			continue
		}
		decay := 1 - dist/reach
		boost := decay * e.IntensityScale
		c.CAPE += s.Intensity * boost
		c.Vorticity += 0.0012 * boost
		c.Humidity = math.Min(1, c.Humidity+0.3*boost)
		c.VerticalVelocity += 2.5 * boost
		c.Anomaly = math.Min(1, c.Anomaly+0.7*boost)
		c.WindShear += 12 * boost
	}
	return c
}
