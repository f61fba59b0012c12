// Atmospheric cell model and payload ingest
package atmosphere

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Position holds latitude, longitude, and altitude.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Region defines an operational zone.
type Region struct {
	Name      string  `json:"name"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	RadiusKM  float64 `json:"radius_km"`
}

// Cell is one gridded atmospheric reading for a single cycle.
// Immutable once ingested; superseded by the next ingestion cycle.
type Cell struct {
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	CAPE             float64   `json:"cape"`
	Vorticity        float64   `json:"vorticity"`
	Humidity         float64   `json:"humidity"`
	VerticalVelocity float64   `json:"vertical_velocity"`
	Anomaly          float64   `json:"anomaly_score"`
	WindFromDeg      float64   `json:"wind_direction"`
	WindShear        float64   `json:"wind_shear"`
	Timestamp        time.Time `json:"ts"`
}

// Key returns a stable identifier for the cell's grid location.
func (c Cell) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// InvalidInputError reports a malformed or incomplete cell reading.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid cell input: field %s: %s", e.Field, e.Reason)
}

// Validate checks a cell for required fields. Callers skip invalid cells and
// keep the cycle going.
func (c Cell) Validate() error {
	switch {
	case math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90:
		return &InvalidInputError{Field: "lat", Reason: "out of range"}
	case math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180:
		return &InvalidInputError{Field: "lon", Reason: "out of range"}
	case math.IsNaN(c.CAPE) || c.CAPE < 0:
		return &InvalidInputError{Field: "cape", Reason: "negative or missing"}
	case math.IsNaN(c.Vorticity):
		return &InvalidInputError{Field: "vorticity", Reason: "missing"}
	case math.IsNaN(c.Humidity) || c.Humidity < 0 || c.Humidity > 1:
		return &InvalidInputError{Field: "humidity", Reason: "outside [0,1]"}
	case c.Timestamp.IsZero():
		return &InvalidInputError{Field: "ts", Reason: "zero timestamp"}
	}
	return nil
}

// Payload is one cycle's worth of cell readings as received on the wire.
type Payload struct {
	Cells     []Cell    `json:"cells"`
	Timestamp time.Time `json:"ts"`
}

// ParsePayload decodes a cycle payload. Individual cells are not validated
// here; the scorer rejects them one by one so a bad reading never aborts the
// whole cycle.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("parse payload: %w", err)
	}
	if len(p.Cells) == 0 {
		return Payload{}, &InvalidInputError{Field: "cells", Reason: "empty payload"}
	}
	return p, nil
}

// DistanceMeters calculates the haversine distance between two lat/lon points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// EquirectDistanceMeters is a cheaper flat-earth approximation, adequate at
// zone scale.
func EquirectDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Pi / 180 * math.Cos((lat1+lat2)/2*math.Pi/180)
	y := (lat2 - lat1) * math.Pi / 180
	return math.Hypot(x, y) * 6371000.0
}
