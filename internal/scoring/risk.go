// Package scoring provides the safety scorers behind recommend.Scorer: a
// deterministic risk model and an ONNX-backed classifier.
package scoring

import (
	"context"
	"math"

	"github.com/hurttlocker/craving/internal/recommend"
)

// Risk model constants. A food whose risk reaches RiskPivot is even odds.
const (
	RiskPivot = 45.0
	riskScale = 3.0

	sugarWeight      = 1.5
	giReference      = 50.0
	highGlucose      = 160.0
	highGlucoseMul   = 1.5
	risingSugarMul   = 2.0
	nightMul         = 1.4
	latePregnancy    = 24.0
	latePregnancyMul = 1.25
	highAverage      = 120.0
	highAverageMul   = 1.2
	highIntensityMul = 1.1
)

// RiskScorer is the built-in scorer. It estimates the glycemic load a food
// adds in the current context and maps it to a probability of being safe.
type RiskScorer struct{}

// Risk returns the unsquashed risk for a feature vector.
func (RiskScorer) Risk(f recommend.Features) float64 {
	carbs := float64(f[recommend.FeatureCarbs])
	sugar := float64(f[recommend.FeatureSugar])
	gi := float64(f[recommend.FeatureGlycemicIndex])

	risk := (carbs + sugarWeight*sugar) * gi / giReference
	if float64(f[recommend.FeatureGlucoseLevel]) > highGlucose {
		risk *= highGlucoseMul
	}
	if f[recommend.FeatureTrend] > 0 {
		risk += sugar * risingSugarMul
	}
	if f[recommend.FeatureTimeOfDay] == 3 {
		risk *= nightMul
	}
	if float64(f[recommend.FeaturePregnancyWeek]) > latePregnancy {
		risk *= latePregnancyMul
	}
	if float64(f[recommend.FeatureGlucoseAverage]) > highAverage {
		risk *= highAverageMul
	}
	if f[recommend.FeatureIntensity] == 2 {
		risk *= highIntensityMul
	}
	return risk
}

// Score implements recommend.Scorer.
func (s RiskScorer) Score(ctx context.Context, f recommend.Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp((s.Risk(f)-RiskPivot)/riskScale)), nil
}
