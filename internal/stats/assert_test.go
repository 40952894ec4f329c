package stats_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgellow/mcp-stress/internal/stats"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

func TestParseAssertion(t *testing.T) {
	tests := []struct {
		expr string
		want stats.Assertion
	}{
		{"p99 < 500ms", stats.Assertion{Metric: "p99", Op: "<", Value: 500, Unit: "ms"}},
		{"p50 < 2s", stats.Assertion{Metric: "p50", Op: "<", Value: 2000, Unit: "ms"}},
		{"error_rate < 1%", stats.Assertion{Metric: "error_rate", Op: "<", Value: 1, Unit: "%"}},
		{"rps >= 100", stats.Assertion{Metric: "rps", Op: ">=", Value: 100, Unit: ""}},
		{"errors == 0", stats.Assertion{Metric: "errors", Op: "==", Value: 0, Unit: ""}},
		{"requests != 10", stats.Assertion{Metric: "requests", Op: "!=", Value: 10, Unit: ""}},
		{"  mean <= 12.5 ", stats.Assertion{Metric: "mean", Op: "<=", Value: 12.5, Unit: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := stats.ParseAssertion(tt.expr)
			if err != nil {
				t.Fatalf("ParseAssertion(%q): %v", tt.expr, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAssertionErrors(t *testing.T) {
	for _, expr := range []string{"garbage", "p99 < abc", "p99 <", "< 500", "p99 ~ 500"} {
		if _, err := stats.ParseAssertion(expr); err == nil {
			t.Errorf("ParseAssertion(%q) accepted invalid input", expr)
		}
	}
}

func TestAssertionEval(t *testing.T) {
	s := &api.SummaryEvent{
		TotalRequests:     1000,
		TotalErrors:       5,
		RequestsPerSecond: 123.4,
		ErrorRate:         0.5,
		Overall:           api.LatencyStats{Min: 1, Max: 400, Mean: 40, P50: 30, P95: 200, P99: 350},
	}

	tests := []struct {
		expr string
		pass bool
	}{
		{"p99 < 500ms", true},
		{"p99 < 300ms", false},
		{"p50 < 2s", true},
		{"error_rate < 1%", true},
		{"errors == 5", true},
		{"requests >= 1000", true},
		{"rps > 200", false},
		{"max <= 400", true},
		{"min != 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			a, err := stats.ParseAssertion(tt.expr)
			if err != nil {
				t.Fatalf("ParseAssertion: %v", err)
			}
			if _, pass := a.Eval(s); pass != tt.pass {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, pass, tt.pass)
			}
		})
	}
}

// A syntactically valid but unknown metric evaluates to NaN and fails.
func TestAssertionUnknownMetric(t *testing.T) {
	a, err := stats.ParseAssertion("p42 < 100")
	if err != nil {
		t.Fatalf("ParseAssertion: %v", err)
	}
	actual, pass := a.Eval(&api.SummaryEvent{})
	if !math.IsNaN(actual) {
		t.Errorf("actual = %f, want NaN", actual)
	}
	if pass {
		t.Error("unknown metric passed")
	}
}
