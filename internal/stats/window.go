package stats

import (
	api "github.com/dgellow/mcp-stress/lib-stress"
)

// Window is one fixed-duration bucket of a run, used for charting and the
// live dashboard.
type Window struct {
	// T is the window start in milliseconds since run start.
	T int64 `json:"t"`

	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	Mean   float64 `json:"mean"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`

	// Concurrency is the last observed target concurrency; empty windows
	// carry the previous window's value forward.
	Concurrency int `json:"concurrency,omitempty"`

	// Anomaly marks a window whose p99 spiked against the rolling mean.
	Anomaly bool `json:"anomaly,omitempty"`
}

// WindowSize picks the bucket width for a run of the given duration so that
// charts land at roughly 30-60 bars. The thresholds are frozen so a round
// trip through the file produces identical bucketing.
func WindowSize(durationMs int64) int64 {
	switch {
	case durationMs <= 60_000:
		return 1000
	case durationMs <= 300_000:
		return 5000
	case durationMs <= 600_000:
		return 10000
	default:
		return 30000
	}
}

// Windows buckets request events into uniform windows. Every slot is
// emitted, including empty ones, to keep bar widths uniform.
func Windows(events []api.RequestEvent) []Window {
	if len(events) == 0 {
		return nil
	}

	last := events[len(events)-1].T
	size := WindowSize(last)
	n := int(last/size) + 1

	buckets := make([][]float64, n)
	windows := make([]Window, n)
	for i := range windows {
		windows[i].T = int64(i) * size
	}

	for _, e := range events {
		i := int(e.T / size)
		if i < 0 || i >= n {
			continue
		}
		w := &windows[i]
		w.Count++
		if !e.OK {
			w.Errors++
		}
		if e.Concurrency > 0 {
			w.Concurrency = e.Concurrency
		}
		buckets[i] = append(buckets[i], e.LatencyMs)
	}

	concurrency := 0
	for i := range windows {
		w := &windows[i]
		if w.Concurrency == 0 {
			w.Concurrency = concurrency
		} else {
			concurrency = w.Concurrency
		}

		stats := FromLatencies(buckets[i])
		w.Mean = stats.Mean
		w.P50, w.P95, w.P99 = stats.P50, stats.P95, stats.P99
	}

	markAnomalies(windows)

	return windows
}

// markAnomalies flags windows beyond the 10th whose p99 exceeds three times
// the rolling mean latency of the previous ten windows.
func markAnomalies(windows []Window) {
	for i := 10; i < len(windows); i++ {
		var sum float64
		var count int
		for j := i - 10; j < i; j++ {
			if windows[j].Count > 0 {
				sum += windows[j].Mean
				count++
			}
		}
		if count == 0 {
			continue
		}
		mean := sum / float64(count)
		if mean > 0 && windows[i].P99 > 3*mean {
			windows[i].Anomaly = true
		}
	}
}
