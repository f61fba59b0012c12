// Instability scoring over atmospheric cells
package scoring

import (
	"math"
	"sort"
	"sync"

	"aethersim/internal/atmosphere"
)

// Normalization caps; a feature at or above its cap contributes its full
// weight.
const (
	capeNorm             = 4000.0
	vorticityNorm        = 0.0015
	humidityNorm         = 1.0
	verticalVelocityNorm = 3.0
	anomalyNorm          = 1.0
)

// Weights is the runtime-adjustable scoring weight vector.
type Weights struct {
	CAPE             float64 `json:"cape" yaml:"cape"`
	Vorticity        float64 `json:"vorticity" yaml:"vorticity"`
	Humidity         float64 `json:"humidity" yaml:"humidity"`
	VerticalVelocity float64 `json:"vertical_velocity" yaml:"vertical_velocity"`
	Anomaly          float64 `json:"anomaly" yaml:"anomaly"`
}

// DefaultWeights returns the baseline weight vector.
func DefaultWeights() Weights {
	return Weights{CAPE: 0.25, Vorticity: 0.25, Humidity: 0.15, VerticalVelocity: 0.15, Anomaly: 0.20}
}

// Features is a cell's normalized feature vector, each component in [0,1].
type Features struct {
	CAPE             float64 `json:"cape"`
	Vorticity        float64 `json:"vorticity"`
	Humidity         float64 `json:"humidity"`
	VerticalVelocity float64 `json:"vertical_velocity"`
	Anomaly          float64 `json:"anomaly"`
}

// Normalize maps a cell's raw readings into [0,1] features.
func Normalize(c atmosphere.Cell) Features {
	return Features{
		CAPE:             clamp01(c.CAPE / capeNorm),
		Vorticity:        clamp01(math.Abs(c.Vorticity) / vorticityNorm),
		Humidity:         clamp01(c.Humidity / humidityNorm),
		VerticalVelocity: clamp01(c.VerticalVelocity / verticalVelocityNorm),
		Anomaly:          clamp01(c.Anomaly / anomalyNorm),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Target pairs a cell with its instability score.
type Target struct {
	Cell     atmosphere.Cell `json:"cell"`
	Score    float64         `json:"score"`
	Features Features        `json:"features"`
}

// Scorer computes instability scores with a bounded, adjustable weight
// vector. Safe for concurrent use.
type Scorer struct {
	mu             sync.RWMutex
	weights        Weights
	weightMin      float64
	weightMax      float64
	focusThreshold float64
}

// NewScorer creates a Scorer. Zero bounds default to [0, 1].
func NewScorer(w Weights, weightMin, weightMax, focusThreshold float64) *Scorer {
	if weightMax <= weightMin {
		weightMin, weightMax = 0, 1
	}
	if focusThreshold <= 0 {
		focusThreshold = 0.65
	}
	s := &Scorer{weightMin: weightMin, weightMax: weightMax, focusThreshold: focusThreshold}
	s.SetWeights(w)
	return s
}

// Score computes the weighted score for a single cell. Invalid cells fail
// with InvalidInputError.
func (s *Scorer) Score(c atmosphere.Cell) (Target, error) {
	if err := c.Validate(); err != nil {
		return Target{}, err
	}
	f := Normalize(c)
	w := s.Weights()
	score := w.CAPE*f.CAPE +
		w.Vorticity*f.Vorticity +
		w.Humidity*f.Humidity +
		w.VerticalVelocity*f.VerticalVelocity +
		w.Anomaly*f.Anomaly
	return Target{Cell: c, Score: score, Features: f}, nil
}

// Rank scores one cycle of cells and returns targets ordered highest score
// first, ties broken by ascending (lat, lon). Invalid cells are skipped and
// returned as errors so the cycle keeps going.
func (s *Scorer) Rank(cells []atmosphere.Cell) ([]Target, []error) {
	var targets []Target
	var errs []error
	for _, c := range cells {
		t, err := s.Score(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		targets = append(targets, t)
	}
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Score != targets[j].Score {
			return targets[i].Score > targets[j].Score
		}
		if targets[i].Cell.Lat != targets[j].Cell.Lat {
			return targets[i].Cell.Lat < targets[j].Cell.Lat
		}
		return targets[i].Cell.Lon < targets[j].Cell.Lon
	})
	return targets, errs
}

// ShouldFocus reports whether a target qualifies for increased attention.
func (s *Scorer) ShouldFocus(t Target) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return t.Score >= s.focusThreshold
}

// Weights returns a copy of the current weight vector.
func (s *Scorer) Weights() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}

// SetWeights installs a new weight vector, clamping every component to the
// configured bounds.
func (s *Scorer) SetWeights(w Weights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = Weights{
		CAPE:             s.clampWeight(w.CAPE),
		Vorticity:        s.clampWeight(w.Vorticity),
		Humidity:         s.clampWeight(w.Humidity),
		VerticalVelocity: s.clampWeight(w.VerticalVelocity),
		Anomaly:          s.clampWeight(w.Anomaly),
	}
}

// Bounds returns the configured weight range.
func (s *Scorer) Bounds() (min, max float64) {
	return s.weightMin, s.weightMax
}

func (s *Scorer) clampWeight(v float64) float64 {
	if v < s.weightMin {
		return s.weightMin
	}
	if v > s.weightMax {
		return s.weightMax
	}
	return v
}
