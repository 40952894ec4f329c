// Package stats computes the derived statistics of a run: percentiles,
// chart windows, anomaly marks, assertions, and cross-run aggregates.
package stats

import (
	"math"
	"sort"

	api "github.com/dgellow/mcp-stress/lib-stress"
)

// Percentile computes the q-th percentile (q in [0,1]) of a pre-sorted
// vector by linear interpolation. An empty vector yields 0.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := q * float64(n-1)
	i := int(math.Floor(idx))
	frac := idx - float64(i)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*frac
}

// FromLatencies summarises a latency vector. The input is not modified.
func FromLatencies(latencies []float64) api.LatencyStats {
	if len(latencies) == 0 {
		return api.LatencyStats{}
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return api.LatencyStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: round2(sum / float64(len(sorted))),
		P50:  round2(Percentile(sorted, 0.50)),
		P95:  round2(Percentile(sorted, 0.95)),
		P99:  round2(Percentile(sorted, 0.99)),
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
