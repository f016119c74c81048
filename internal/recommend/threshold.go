package recommend

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidThresholds is returned for a policy that is not monotonic or
// whose values fall outside [0,1].
var ErrInvalidThresholds = errors.New("invalid threshold policy")

// Band applies Threshold to glucose levels strictly below Below.
type Band struct {
	Below     float64 `yaml:"below" json:"below"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// ThresholdPolicy maps the current glucose level to the minimum score a
// food needs to be approved. Higher glucose never lowers the bar.
type ThresholdPolicy struct {
	Bands   []Band  `yaml:"bands" json:"bands"`
	Default float64 `yaml:"default" json:"default"`
}

// DefaultThresholds is the built-in policy.
func DefaultThresholds() ThresholdPolicy {
	return ThresholdPolicy{
		Bands: []Band{
			{Below: 100, Threshold: 0.45},
			{Below: 140, Threshold: 0.55},
			{Below: 180, Threshold: 0.65},
		},
		Default: 0.75,
	}
}

// Validate checks that band limits ascend and thresholds never decrease.
func (p ThresholdPolicy) Validate() error {
	prevBelow := math.Inf(-1)
	prevThr := 0.0
	for i, b := range p.Bands {
		if b.Threshold < 0 || b.Threshold > 1 || math.IsNaN(b.Threshold) {
			return fmt.Errorf("%w: band %d threshold %v outside [0,1]", ErrInvalidThresholds, i, b.Threshold)
		}
		if !(b.Below > prevBelow) {
			return fmt.Errorf("%w: band %d limit %v does not ascend", ErrInvalidThresholds, i, b.Below)
		}
		if b.Threshold < prevThr {
			return fmt.Errorf("%w: band %d threshold %v lower than previous %v", ErrInvalidThresholds, i, b.Threshold, prevThr)
		}
		prevBelow, prevThr = b.Below, b.Threshold
	}
	if p.Default < prevThr || p.Default > 1 || math.IsNaN(p.Default) {
		return fmt.Errorf("%w: default %v must be in [%v,1]", ErrInvalidThresholds, p.Default, prevThr)
	}
	return nil
}

// For returns the approval threshold at glucose level g.
func (p ThresholdPolicy) For(g float64) float64 {
	for _, b := range p.Bands {
		if g < b.Below {
			return b.Threshold
		}
	}
	return p.Default
}
