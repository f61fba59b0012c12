package atmosphere

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func validCell() Cell {
	return Cell{
		Lat:       47.5,
		Lon:       13.0,
		CAPE:      1200,
		Vorticity: 0.0004,
		Humidity:  0.7,
		Timestamp: time.Unix(1000, 0).UTC(),
	}
}

func TestCellValidate(t *testing.T) {
	if err := validCell().Validate(); err != nil {
		t.Fatalf("valid cell rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Cell)
		field  string
	}{
		{"lat out of range", func(c *Cell) { c.Lat = 91 }, "lat"},
		{"lon out of range", func(c *Cell) { c.Lon = -181 }, "lon"},
		{"negative cape", func(c *Cell) { c.CAPE = -1 }, "cape"},
		{"nan vorticity", func(c *Cell) { c.Vorticity = math.NaN() }, "vorticity"},
		{"humidity above one", func(c *Cell) { c.Humidity = 1.2 }, "humidity"},
		{"zero timestamp", func(c *Cell) { c.Timestamp = time.Time{} }, "ts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCell()
			tc.mutate(&c)
			err := c.Validate()
			var iie *InvalidInputError
			if !errors.As(err, &iie) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
			if iie.Field != tc.field {
				t.Fatalf("field = %s, want %s", iie.Field, tc.field)
			}
		})
	}
}

func TestCellKey(t *testing.T) {
	c := Cell{Lat: 47.123456, Lon: 13.654321}
	if got := c.Key(); got != "47.1235,13.6543" {
		t.Fatalf("key = %s", got)
	}
}

func TestParsePayload(t *testing.T) {
	p := Payload{Cells: []Cell{validCell()}, Timestamp: time.Unix(1000, 0).UTC()}
	data, _ := json.Marshal(p)
	got, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Cells) != 1 || got.Cells[0].CAPE != 1200 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestParsePayloadEmpty(t *testing.T) {
	_, err := ParsePayload([]byte(`{"cells":[],"ts":"2026-01-01T00:00:00Z"}`))
	var iie *InvalidInputError
	if !errors.As(err, &iie) {
		t.Fatalf("expected InvalidInputError for empty payload, got %v", err)
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	if _, err := ParsePayload([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestDistanceMeters(t *testing.T) {
	// Roughly one degree of latitude.
	d := DistanceMeters(47.0, 13.0, 48.0, 13.0)
	if d < 110000 || d > 112000 {
		t.Fatalf("one degree latitude = %.0f m", d)
	}
	if DistanceMeters(47.0, 13.0, 47.0, 13.0) != 0 {
		t.Fatalf("distance to self should be zero")
	}
}

func TestEquirectDistanceClose(t *testing.T) {
	h := DistanceMeters(47.5, 13.0, 47.6, 13.1)
	e := EquirectDistanceMeters(47.5, 13.0, 47.6, 13.1)
	if math.Abs(h-e)/h > 0.01 {
		t.Fatalf("equirect diverges at zone scale: haversine=%.0f equirect=%.0f", h, e)
	}
}
