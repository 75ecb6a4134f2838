package affinity

import (
	"math"

	"github.com/stromnet/strom/rpc/common"
)

// This file implements placement quality statistics for shard affinity
// resolvers. Given a set of node ids, it reports how evenly a resolver
// spreads their connections over the shards. The perf command uses this to
// surface skewed placement before it shows up as a hot shard in production.

// --------------------------------------------------------------------------
// Basic statistics
// --------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes the standard deviation, minimum, maximum and mean
// from an array of float64 values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	// initialize min and max with the first value
	min := values[0]
	max := values[0]

	// calculate sum for mean
	var sum float64
	for _, v := range values {
		sum += v

		// update min and max while iterating
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	mean := sum / float64(len(values))

	// sum of squared differences from mean
	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	// standard deviation (population formula)
	stdDev := math.Sqrt(sumSquaredDiffs / float64(len(values)))

	var minMaxRatio float64 = 1.0
	if max > 0 {
		minMaxRatio = min / max
	}

	return Stats{
		StdDeviation: stdDev,
		Min:          min,
		Max:          max,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

// --------------------------------------------------------------------------
// Placement statistics
// --------------------------------------------------------------------------

// PlacementStats describes how evenly a resolver distributes nodes over
// shards. DistributionQuality is 1.0 for a perfectly even placement and
// approaches 0 the more skewed the placement becomes.
type PlacementStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewPlacementStats resolves the owning shard of every given node and
// computes quality metrics over the resulting per-shard counts.
func NewPlacementStats(r IResolver, nodes []common.NodeID) PlacementStats {
	counts := make([]float64, r.Shards())
	for _, n := range nodes {
		counts[r.ShardFor(n)]++
	}
	return newPlacementStats(counts)
}

// newPlacementStats computes quality metrics from per-shard counts
func newPlacementStats(shardCounts []float64) PlacementStats {
	stats := NewStats(shardCounts)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	// map cv to a quality score in (0, 1]
	quality := 1.0 / (1.0 + cv)

	return PlacementStats{
		Stats:               stats,
		DistributionQuality: quality,
	}
}
