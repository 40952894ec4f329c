package stats

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/stresserr"
)

// Assertion is a parsed "<metric> <op> <value>[<unit>]" expression.
type Assertion struct {
	Metric string
	Op     string
	Value  float64
	Unit   string
}

var assertionPattern = regexp.MustCompile(`^\s*([a-z_0-9]+)\s*(<=|>=|==|!=|<|>)\s*([0-9]+(?:\.[0-9]+)?)\s*(ms|s|%)?\s*$`)

var assertionMetrics = map[string]bool{
	"rps": true, "p50": true, "p95": true, "p99": true,
	"min": true, "max": true, "mean": true,
	"error_rate": true, "errors": true, "requests": true,
}

// ParseAssertion parses one assertion expression. The "s" unit converts the
// value to milliseconds.
func ParseAssertion(expr string) (Assertion, error) {
	m := assertionPattern.FindStringSubmatch(expr)
	if m == nil {
		return Assertion{}, stresserr.New(api.ErrInvalidArgumentValue, nil, "invalid assertion %q", expr)
	}

	value, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Assertion{}, stresserr.New(api.ErrInvalidArgumentValue, err, "invalid assertion %q", expr)
	}

	a := Assertion{Metric: m[1], Op: m[2], Value: value, Unit: m[4]}
	if a.Unit == "s" {
		a.Value *= 1000
		a.Unit = "ms"
	}
	return a, nil
}

// Actual extracts the asserted metric from a summary. An unknown metric
// yields NaN, which fails every comparison.
func (a Assertion) Actual(s *api.SummaryEvent) float64 {
	if !assertionMetrics[a.Metric] {
		return math.NaN()
	}
	switch a.Metric {
	case "rps":
		return s.RequestsPerSecond
	case "p50":
		return s.Overall.P50
	case "p95":
		return s.Overall.P95
	case "p99":
		return s.Overall.P99
	case "min":
		return s.Overall.Min
	case "max":
		return s.Overall.Max
	case "mean":
		return s.Overall.Mean
	case "error_rate":
		return s.ErrorRate
	case "errors":
		return float64(s.TotalErrors)
	case "requests":
		return float64(s.TotalRequests)
	}
	return math.NaN()
}

// Eval evaluates the assertion against a summary and returns the observed
// value alongside the verdict.
func (a Assertion) Eval(s *api.SummaryEvent) (actual float64, ok bool) {
	actual = a.Actual(s)
	switch a.Op {
	case "<":
		ok = actual < a.Value
	case ">":
		ok = actual > a.Value
	case "<=":
		ok = actual <= a.Value
	case ">=":
		ok = actual >= a.Value
	case "==":
		ok = actual == a.Value
	case "!=":
		ok = actual != a.Value
	}
	if math.IsNaN(actual) {
		ok = false
	}
	return actual, ok
}

// String renders the assertion back to its canonical text.
func (a Assertion) String() string {
	return fmt.Sprintf("%s %s %g%s", a.Metric, a.Op, a.Value, a.Unit)
}
