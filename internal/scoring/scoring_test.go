package scoring

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hurttlocker/craving/internal/recommend"
)

func features(glucose, avg float64, trend recommend.Trend, week, intensity, tod int, gi, carbs, sugar float64) recommend.Features {
	var f recommend.Features
	f[recommend.FeatureGlucoseLevel] = float32(glucose)
	f[recommend.FeatureGlucoseAverage] = float32(avg)
	f[recommend.FeatureTrend] = float32(trend)
	f[recommend.FeaturePregnancyWeek] = float32(week)
	f[recommend.FeatureIntensity] = float32(intensity)
	f[recommend.FeatureTimeOfDay] = float32(tod)
	f[recommend.FeatureGlycemicIndex] = float32(gi)
	f[recommend.FeatureCarbs] = float32(carbs)
	f[recommend.FeatureSugar] = float32(sugar)
	return f
}

func TestRiskMultipliers(t *testing.T) {
	base := features(100, 100, recommend.TrendStable, 0, 1, 1, 50, 40, 10)
	// (40 + 15) * 50/50
	const want = 55.0

	tests := []struct {
		name string
		f    recommend.Features
		risk float64
	}{
		{"base", base, want},
		{"high glucose", features(170, 100, recommend.TrendStable, 0, 1, 1, 50, 40, 10), want * 1.5},
		{"rising", features(100, 100, recommend.TrendRising, 0, 1, 1, 50, 40, 10), want + 20},
		{"night", features(100, 100, recommend.TrendStable, 0, 1, 3, 50, 40, 10), want * 1.4},
		{"late pregnancy", features(100, 100, recommend.TrendStable, 30, 1, 1, 50, 40, 10), want * 1.25},
		{"high average", features(100, 130, recommend.TrendStable, 0, 1, 1, 50, 40, 10), want * 1.2},
		{"high intensity", features(100, 100, recommend.TrendStable, 0, 2, 1, 50, 40, 10), want * 1.1},
		{"zero gi", features(100, 100, recommend.TrendStable, 0, 1, 1, 0, 40, 10), 0},
	}
	var s RiskScorer
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Risk(tt.f); math.Abs(got-tt.risk) > 1e-3 {
				t.Fatalf("risk = %v, want %v", got, tt.risk)
			}
		})
	}
}

func TestRiskScoreIsProbability(t *testing.T) {
	var s RiskScorer
	ctx := context.Background()

	pivot, err := s.Score(ctx, features(100, 100, 0, 0, 1, 1, 50, 45, 0))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pivot-0.5) > 1e-6 {
		t.Fatalf("risk at pivot should score 0.5, got %v", pivot)
	}

	safe, _ := s.Score(ctx, features(100, 100, 0, 0, 1, 1, 0, 0, 0))
	risky, _ := s.Score(ctx, features(200, 150, 1, 30, 2, 3, 80, 60, 40))
	if !(safe > 0.99 && risky < 0.01) {
		t.Fatalf("expected extremes, got safe=%v risky=%v", safe, risky)
	}

	// Higher glucose never makes a food safer.
	lo, _ := s.Score(ctx, features(120, 100, 0, 0, 1, 1, 50, 30, 5))
	hi, _ := s.Score(ctx, features(190, 100, 0, 0, 1, 1, 50, 30, 5))
	if hi > lo {
		t.Fatalf("score rose with glucose: %v -> %v", lo, hi)
	}
}

func TestRiskScoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (RiskScorer{}).Score(ctx, recommend.Features{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewONNXScorerValidatesModelPath(t *testing.T) {
	if _, err := NewONNXScorer(ONNXConfig{}); !errors.Is(err, ErrModelNotConfigured) {
		t.Fatalf("expected ErrModelNotConfigured, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "model.onnx")
	if _, err := NewONNXScorer(ONNXConfig{ModelPath: missing}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestONNXScorerWithModel(t *testing.T) {
	model := os.Getenv("CRAVING_TEST_ONNX_MODEL")
	if model == "" {
		t.Skip("CRAVING_TEST_ONNX_MODEL not set")
	}
	s, err := NewONNXScorer(ONNXConfig{ModelPath: model, LibraryPath: os.Getenv("CRAVING_TEST_ONNX_LIBRARY")})
	if err != nil {
		t.Fatalf("NewONNXScorer: %v", err)
	}
	defer s.Close()

	p, err := s.Score(context.Background(), features(100, 100, 0, 0, 1, 1, 50, 43, 1))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if p < 0 || p > 1 {
		t.Fatalf("probability out of range: %v", p)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.Score(context.Background(), recommend.Features{}); err == nil {
		t.Fatal("expected error after Close")
	}
}
