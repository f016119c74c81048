package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/extract"
)

// Trend is the precomputed glucose trend direction.
type Trend int

const (
	TrendFalling Trend = -1
	TrendStable  Trend = 0
	TrendRising  Trend = 1
)

// ParseTrend accepts falling/stable/rising (and down/flat/up).
func ParseTrend(s string) (Trend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "falling", "down", "-1":
		return TrendFalling, nil
	case "", "stable", "flat", "steady", "0":
		return TrendStable, nil
	case "rising", "up", "1":
		return TrendRising, nil
	default:
		return TrendStable, fmt.Errorf("unknown glucose trend %q", s)
	}
}

func (t Trend) String() string {
	switch t {
	case TrendFalling:
		return "falling"
	case TrendRising:
		return "rising"
	default:
		return "stable"
	}
}

// UserContext is the caller-supplied physiological context for a request.
type UserContext struct {
	GlucoseLevel   float64 `json:"glucose_level"`
	GlucoseAverage float64 `json:"glucose_average"`
	Trend          Trend   `json:"trend"`
	PregnancyWeek  int     `json:"pregnancy_week"`
}

// Feature positions in the scorer input vector.
const (
	FeatureGlucoseLevel = iota
	FeatureGlucoseAverage
	FeatureTrend
	FeaturePregnancyWeek
	FeatureIntensity
	FeatureTimeOfDay
	FeatureGlycemicIndex
	FeatureCarbs
	FeatureSugar
	NumFeatures
)

// Features is the fixed-shape scorer input.
type Features [NumFeatures]float32

// BuildFeatures assembles the vector for food f.
func BuildFeatures(uc UserContext, rec extract.Record, tod extract.TimeOfDay, f catalog.FoodEntity) Features {
	var v Features
	v[FeatureGlucoseLevel] = float32(uc.GlucoseLevel)
	v[FeatureGlucoseAverage] = float32(uc.GlucoseAverage)
	v[FeatureTrend] = float32(uc.Trend)
	v[FeaturePregnancyWeek] = float32(uc.PregnancyWeek)
	v[FeatureIntensity] = float32(rec.Intensity.Code())
	v[FeatureTimeOfDay] = float32(tod.Code())
	v[FeatureGlycemicIndex] = float32(f.GlycemicIndex)
	v[FeatureCarbs] = float32(f.Carbs)
	v[FeatureSugar] = float32(f.Sugar)
	return v
}

// Scorer returns the probability that a food is a safe choice given the
// feature vector.
type Scorer interface {
	Score(ctx context.Context, f Features) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, f Features) (float64, error)

// Score calls fn.
func (fn ScorerFunc) Score(ctx context.Context, f Features) (float64, error) {
	return fn(ctx, f)
}
