package atmosphere

import (
	"math/rand"
	"testing"
	"time"
)

func testRegions() []Region {
	return []Region{
		{Name: "alpine-foreland", CenterLat: 47.85, CenterLon: 12.95, RadiusKM: 40},
		{Name: "danube-valley", CenterLat: 48.25, CenterLon: 14.30, RadiusKM: 35},
	}
}

func testEngine(count int) *Engine {
	rnd := rand.New(rand.NewSource(42))
	now := func() time.Time { return time.Unix(1000, 0).UTC() }
	return NewEngine(count, 8, testRegions(), rnd, now)
}

func TestEngineSampleCount(t *testing.T) {
	e := testEngine(3)
	cells := e.Sample()
	if want := 2 * 8; len(cells) != want {
		t.Fatalf("sample returned %d cells, want %d", len(cells), want)
	}
	for _, c := range cells {
		if err := c.Validate(); err != nil {
			t.Fatalf("engine produced invalid cell: %v", err)
		}
		if !c.Timestamp.Equal(time.Unix(1000, 0).UTC()) {
			t.Fatalf("cell timestamp = %v", c.Timestamp)
		}
	}
}

func TestEngineSetSystemCount(t *testing.T) {
	e := testEngine(3)
	e.SetSystemCount(5)
	if len(e.Systems) != 5 {
		t.Fatalf("grew to %d systems, want 5", len(e.Systems))
	}
	e.SetSystemCount(1)
	if len(e.Systems) != 1 {
		t.Fatalf("shrank to %d systems, want 1", len(e.Systems))
	}
	e.SetSystemCount(-1)
	if len(e.Systems) != 0 {
		t.Fatalf("negative count should clear systems, got %d", len(e.Systems))
	}
}

func TestEngineStepKeepsSystemsNearHome(t *testing.T) {
	e := testEngine(4)
	for i := 0; i < 500; i++ {
		e.Step()
	}
	for _, s := range e.Systems {
		dist := DistanceMeters(s.Position.Lat, s.Position.Lon, s.Region.CenterLat, s.Region.CenterLon)
		// Drift bounces at the boundary, so allow a small overshoot.
		if dist > s.Region.RadiusKM*1000*1.5 {
			t.Fatalf("system %s drifted %.0f m from home", s.ID, dist)
		}
	}
}

func TestEngineIntensityScaleBoostsReadings(t *testing.T) {
	e := testEngine(1)
	core := e.Systems[0].Position
	ts := time.Unix(1000, 0).UTC()

	calm := e.readingAt(core, ts)
	e.IntensityScale = 3.0
	hot := e.readingAt(core, ts)

	// At the core the boost dwarfs background noise between the two reads.
	if hot.CAPE <= calm.CAPE {
		t.Fatalf("scaled reading should show higher CAPE: calm=%.0f hot=%.0f", calm.CAPE, hot.CAPE)
	}
}
