package stats

import (
	api "github.com/dgellow/mcp-stress/lib-stress"
)

// Chart is the prepared data a chart renders: the run identity, the
// uniform windows, and the summary. The same structure feeds the static
// chart and the live dashboard's completion event.
type Chart struct {
	Meta    *api.Meta         `json:"meta,omitempty"`
	Windows []Window          `json:"windows"`
	Summary *api.SummaryEvent `json:"summary,omitempty"`
}

// Prepare buckets a run's events into chart data.
func Prepare(meta *api.Meta, events []api.RequestEvent, summary *api.SummaryEvent) Chart {
	return Chart{
		Meta:    meta,
		Windows: Windows(events),
		Summary: summary,
	}
}
