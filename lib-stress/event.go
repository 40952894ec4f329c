package stress

import (
	"time"

	"github.com/goccy/go-json"
)

// LatencyStats summarises a latency distribution. All values are milliseconds.
type LatencyStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

// MethodStats is the per-method slice of a run summary.
type MethodStats struct {
	Count   int          `json:"count"`
	Errors  int          `json:"errors"`
	Latency LatencyStats `json:"latency"`
}

// RunConfig is the run configuration recorded in the meta event.
//
// It carries everything needed to reproduce a run, so the zero value of a
// field means the option was not used.
type RunConfig struct {
	Profile     string            `json:"profile,omitempty"`
	Transport   string            `json:"transport"`
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	DurationSec int               `json:"durationSec,omitempty"`
	Requests    int               `json:"requests,omitempty"`
	Concurrency int               `json:"concurrency"`
	TimeoutMs   int               `json:"timeoutMs"`
	Shape       string            `json:"shape,omitempty"`
	Tool        string            `json:"tool,omitempty"`
	Seed        uint32            `json:"seed,omitempty"`
	FindCeiling bool              `json:"findCeiling,omitempty"`
	Churn       bool              `json:"churn,omitempty"`
}

// Meta is the first line of a run file.
type Meta struct {
	Type      string    `json:"type"`
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
	Version   string    `json:"version,omitempty"`
	Repro     string    `json:"repro,omitempty"`
	Config    RunConfig `json:"config"`
	Aggregate bool      `json:"aggregate,omitempty"`
	RunCount  int       `json:"runCount,omitempty"`
}

// RequestEvent is one request outcome in a run file. Lines of this kind carry
// no "type" field.
type RequestEvent struct {
	// T is milliseconds since the start of the run.
	T int64

	Method    string
	LatencyMs float64
	OK        bool

	// Error fields are only present when OK is false.
	Error         string
	ErrorCategory string
	ErrorCode     int

	// Concurrency is the target concurrency in force when the request was
	// issued; zero when the run did not track one.
	Concurrency int

	// Phase is the find-ceiling phase index, or -1 outside of phased runs.
	Phase int
}

// requestEventWire is the on-disk shape of RequestEvent. Optional fields use
// pointers so that absence survives a round trip.
type requestEventWire struct {
	T             int64    `json:"t"`
	Method        string   `json:"method"`
	LatencyMs     float64  `json:"latencyMs"`
	OK            bool     `json:"ok"`
	Error         *string  `json:"error,omitempty"`
	ErrorCategory *string  `json:"errorCategory,omitempty"`
	ErrorCode     *int     `json:"errorCode,omitempty"`
	Concurrency   *int     `json:"concurrency,omitempty"`
	Phase         *int     `json:"phase,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e RequestEvent) MarshalJSON() ([]byte, error) {
	w := requestEventWire{
		T:         e.T,
		Method:    e.Method,
		LatencyMs: e.LatencyMs,
		OK:        e.OK,
	}
	if !e.OK {
		if e.Error != "" {
			w.Error = &e.Error
		}
		if e.ErrorCategory != "" {
			w.ErrorCategory = &e.ErrorCategory
		}
		w.ErrorCode = &e.ErrorCode
	}
	if e.Concurrency > 0 {
		w.Concurrency = &e.Concurrency
	}
	if e.Phase >= 0 {
		w.Phase = &e.Phase
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *RequestEvent) UnmarshalJSON(data []byte) error {
	var w requestEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = RequestEvent{
		T:         w.T,
		Method:    w.Method,
		LatencyMs: w.LatencyMs,
		OK:        w.OK,
		Phase:     -1,
	}
	if w.Error != nil {
		e.Error = *w.Error
	}
	if w.ErrorCategory != nil {
		e.ErrorCategory = *w.ErrorCategory
	}
	if w.ErrorCode != nil {
		e.ErrorCode = *w.ErrorCode
	}
	if w.Concurrency != nil {
		e.Concurrency = *w.Concurrency
	}
	if w.Phase != nil {
		e.Phase = *w.Phase
	}
	return nil
}

// SummaryEvent is the last line of a completed run file.
type SummaryEvent struct {
	Type              string                 `json:"type"`
	DurationMs        int64                  `json:"durationMs"`
	TotalRequests     int                    `json:"totalRequests"`
	TotalErrors       int                    `json:"totalErrors"`
	RequestsPerSecond float64                `json:"requestsPerSecond"`
	ErrorRate         float64                `json:"errorRate"`
	Overall           LatencyStats           `json:"overall"`
	ByMethod          map[string]MethodStats `json:"byMethod"`
	ErrorCategories   map[string]int         `json:"errorCategories,omitempty"`
}
