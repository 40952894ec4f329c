package stats

import (
	"math"

	api "github.com/dgellow/mcp-stress/lib-stress"
)

// MeanStddev is a cross-run mean with its sample standard deviation.
type MeanStddev struct {
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

func meanStddev(values []float64) MeanStddev {
	n := len(values)
	if n == 0 {
		return MeanStddev{}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	if n == 1 {
		return MeanStddev{Mean: mean}
	}

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return MeanStddev{Mean: mean, Stddev: math.Sqrt(sq / float64(n-1))}
}

// LatencyAggregate holds the cross-run aggregate of each overall latency
// field.
type LatencyAggregate struct {
	Min  MeanStddev `json:"min"`
	Max  MeanStddev `json:"max"`
	Mean MeanStddev `json:"mean"`
	P50  MeanStddev `json:"p50"`
	P95  MeanStddev `json:"p95"`
	P99  MeanStddev `json:"p99"`
}

// MultiRunAggregate is the cross-run aggregate of repeated runs of the same
// profile.
type MultiRunAggregate struct {
	RunCount          int              `json:"runCount"`
	DurationMs        MeanStddev       `json:"durationMs"`
	TotalRequests     MeanStddev       `json:"totalRequests"`
	RequestsPerSecond MeanStddev       `json:"requestsPerSecond"`
	TotalErrors       MeanStddev       `json:"totalErrors"`
	ErrorRate         MeanStddev       `json:"errorRate"`
	Overall           LatencyAggregate `json:"overall"`
}

// Aggregate computes the cross-run mean and sample standard deviation of the
// given run summaries.
func Aggregate(summaries []*api.SummaryEvent) MultiRunAggregate {
	pick := func(f func(*api.SummaryEvent) float64) MeanStddev {
		values := make([]float64, len(summaries))
		for i, s := range summaries {
			values[i] = f(s)
		}
		return meanStddev(values)
	}

	return MultiRunAggregate{
		RunCount:          len(summaries),
		DurationMs:        pick(func(s *api.SummaryEvent) float64 { return float64(s.DurationMs) }),
		TotalRequests:     pick(func(s *api.SummaryEvent) float64 { return float64(s.TotalRequests) }),
		RequestsPerSecond: pick(func(s *api.SummaryEvent) float64 { return s.RequestsPerSecond }),
		TotalErrors:       pick(func(s *api.SummaryEvent) float64 { return float64(s.TotalErrors) }),
		ErrorRate:         pick(func(s *api.SummaryEvent) float64 { return s.ErrorRate }),
		Overall: LatencyAggregate{
			Min:  pick(func(s *api.SummaryEvent) float64 { return s.Overall.Min }),
			Max:  pick(func(s *api.SummaryEvent) float64 { return s.Overall.Max }),
			Mean: pick(func(s *api.SummaryEvent) float64 { return s.Overall.Mean }),
			P50:  pick(func(s *api.SummaryEvent) float64 { return s.Overall.P50 }),
			P95:  pick(func(s *api.SummaryEvent) float64 { return s.Overall.P95 }),
			P99:  pick(func(s *api.SummaryEvent) float64 { return s.Overall.P99 }),
		},
	}
}

// Summary converts the aggregate into a summary event using the cross-run
// means, with integer rounding for counts.
func (a MultiRunAggregate) Summary() api.SummaryEvent {
	return api.SummaryEvent{
		Type:              "summary",
		DurationMs:        int64(math.Round(a.DurationMs.Mean)),
		TotalRequests:     int(math.Round(a.TotalRequests.Mean)),
		TotalErrors:       int(math.Round(a.TotalErrors.Mean)),
		RequestsPerSecond: a.RequestsPerSecond.Mean,
		ErrorRate:         a.ErrorRate.Mean,
		Overall: api.LatencyStats{
			Min:  a.Overall.Min.Mean,
			Max:  a.Overall.Max.Mean,
			Mean: a.Overall.Mean.Mean,
			P50:  a.Overall.P50.Mean,
			P95:  a.Overall.P95.Mean,
			P99:  a.Overall.P99.Mean,
		},
	}
}

// SummaryFromEvents re-derives a run summary from its request events. It
// follows the file definitions exactly, so re-processing a run file yields
// the same statistics the run reported.
func SummaryFromEvents(events []api.RequestEvent) api.SummaryEvent {
	summary := api.SummaryEvent{
		Type:     "summary",
		ByMethod: make(map[string]api.MethodStats),
	}

	if len(events) == 0 {
		return summary
	}

	latencies := make([]float64, 0, len(events))
	byMethod := make(map[string][]float64)
	methodErrors := make(map[string]int)
	categories := make(map[string]int)

	for _, e := range events {
		summary.TotalRequests++
		latencies = append(latencies, e.LatencyMs)
		byMethod[e.Method] = append(byMethod[e.Method], e.LatencyMs)

		if !e.OK {
			summary.TotalErrors++
			methodErrors[e.Method]++
			if e.ErrorCategory != "" {
				categories[e.ErrorCategory]++
			}
		}
		if e.T > summary.DurationMs {
			summary.DurationMs = e.T
		}
	}

	summary.Overall = FromLatencies(latencies)
	for method, ls := range byMethod {
		summary.ByMethod[method] = api.MethodStats{
			Count:   len(ls),
			Errors:  methodErrors[method],
			Latency: FromLatencies(ls),
		}
	}
	if len(categories) > 0 {
		summary.ErrorCategories = categories
	}

	if summary.DurationMs > 0 {
		summary.RequestsPerSecond = float64(summary.TotalRequests) / float64(summary.DurationMs) * 1000
	}
	if summary.TotalRequests > 0 {
		summary.ErrorRate = float64(summary.TotalErrors) / float64(summary.TotalRequests) * 100
	}

	return summary
}
