package stats_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/dgellow/mcp-stress/internal/stats"
)

func TestPercentileEdges(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{42}, 0.99, 42},
		{"median interpolates", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"q0 is min", []float64{1, 2, 3, 4}, 0, 1},
		{"q1 is max", []float64{1, 2, 3, 4}, 1, 4},
		{"p99 of 1..100", seq(1, 100), 0.99, 99.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stats.Percentile(tt.sorted, tt.q)
			if !close2(got, tt.want) {
				t.Errorf("Percentile(%v, %f) = %f, want %f", tt.sorted, tt.q, got, tt.want)
			}
		})
	}
}

func seq(lo, hi int) []float64 {
	var xs []float64
	for i := lo; i <= hi; i++ {
		xs = append(xs, float64(i))
	}
	return xs
}

func close2(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

// For any sorted vector, p <= q implies percentile(p) <= percentile(q).
func TestPercentileMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(200)
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = rng.Float64() * 1000
		}
		sort.Float64s(xs)

		prev := stats.Percentile(xs, 0)
		for q := 0.01; q <= 1.0; q += 0.01 {
			cur := stats.Percentile(xs, q)
			if cur < prev {
				t.Fatalf("trial %d: percentile decreased at q=%f: %f < %f", trial, q, cur, prev)
			}
			prev = cur
		}
	}
}

func TestFromLatencies(t *testing.T) {
	ls := stats.FromLatencies([]float64{3, 1, 2})
	if ls.Min != 1 || ls.Max != 3 || ls.Mean != 2 || ls.P50 != 2 {
		t.Errorf("FromLatencies = %+v", ls)
	}

	empty := stats.FromLatencies(nil)
	if empty.Min != 0 || empty.P99 != 0 {
		t.Errorf("empty FromLatencies = %+v", empty)
	}
}

// FromLatencies must not reorder its input; the engine hands it live views.
func TestFromLatenciesLeavesInputAlone(t *testing.T) {
	in := []float64{5, 1, 3}
	stats.FromLatencies(in)
	if in[0] != 5 || in[1] != 1 || in[2] != 3 {
		t.Errorf("input mutated: %v", in)
	}
}
