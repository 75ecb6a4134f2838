package affinity

import (
	"math"
	"testing"
)

// TestNewStats checks the estimators against a hand-computed sample
func TestNewStats(t *testing.T) {
	stats := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if stats.Mean != 5 {
		t.Errorf("mean: got %f, want 5", stats.Mean)
	}
	if stats.StdDeviation != 2 {
		t.Errorf("stddev: got %f, want 2", stats.StdDeviation)
	}
	if stats.Min != 2 || stats.Max != 9 {
		t.Errorf("min/max: got %f/%f, want 2/9", stats.Min, stats.Max)
	}
}

// TestNewStatsEmpty verifies the zero-value behavior on empty input
func TestNewStatsEmpty(t *testing.T) {
	stats := NewStats(nil)
	if stats.Mean != 0 || stats.StdDeviation != 0 {
		t.Errorf("expected zero stats for empty input, got %+v", stats)
	}
}

// TestPlacementQuality verifies that a perfectly even placement scores 1.0
// and that skew lowers the score
func TestPlacementQuality(t *testing.T) {
	even := newPlacementStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1.0 {
		t.Errorf("even placement: got quality %f, want 1.0", even.DistributionQuality)
	}

	skewed := newPlacementStats([]float64{40, 0, 0, 0})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed placement must score below even: %f >= %f",
			skewed.DistributionQuality, even.DistributionQuality)
	}
	if math.IsNaN(skewed.DistributionQuality) {
		t.Error("quality must not be NaN")
	}
}
