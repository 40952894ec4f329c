package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dgellow/mcp-stress/internal/record"
)

func TestEvaluatePhase(t *testing.T) {
	tests := []struct {
		name    string
		phases  []Phase
		stop    bool
		ceiling int
		reason  string
	}{
		{
			name: "plateau: flat throughput and growing p50 end at the previous concurrency",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 1020, RequestsPerSecond: 102, P50: 13},
			},
			stop:    true,
			ceiling: 10,
			reason:  "plateau at concurrency 10",
		},
		{
			name: "growing throughput is not a plateau even with growing p50",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 1500, RequestsPerSecond: 150, P50: 13},
			},
		},
		{
			name: "flat throughput with flat p50 keeps probing",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 1020, RequestsPerSecond: 102, P50: 10.5},
			},
		},
		{
			name: "degradation: >10% throughput drop ends at the current concurrency",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 800, RequestsPerSecond: 80, P50: 11},
			},
			stop:    true,
			ceiling: 15,
			reason:  "throughput degradation at concurrency 15",
		},
		{
			name: "a 5% dip is not degradation",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 950, RequestsPerSecond: 95, P50: 10},
			},
		},
		{
			name: "error saturation: >10% errors ends at the current concurrency",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 1500, Errors: 200, RequestsPerSecond: 150, P50: 10},
			},
			stop:    true,
			ceiling: 15,
			reason:  "error saturation at concurrency 15",
		},
		{
			name: "error saturation applies from the very first phase",
			phases: []Phase{
				{Concurrency: 1, Requests: 100, Errors: 50, RequestsPerSecond: 10, P50: 10},
			},
			stop:    true,
			ceiling: 1,
			reason:  "error saturation at concurrency 1",
		},
		{
			name: "plateau and degradation never fire on the first phase",
			phases: []Phase{
				{Concurrency: 1, Requests: 100, RequestsPerSecond: 10, P50: 10},
			},
		},
		{
			name: "exactly 10% errors is not saturation",
			phases: []Phase{
				{Concurrency: 1, Requests: 100, Errors: 10, RequestsPerSecond: 10, P50: 10},
			},
		},
		{
			name: "rule order: plateau wins over degradation and saturation",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 500, Errors: 400, RequestsPerSecond: 50, P50: 20},
			},
			stop:    true,
			ceiling: 10,
			reason:  "plateau at concurrency 10",
		},
		{
			name: "rule order: degradation wins over saturation when p50 stayed flat",
			phases: []Phase{
				{Concurrency: 10, Requests: 1000, RequestsPerSecond: 100, P50: 10},
				{Concurrency: 15, Requests: 500, Errors: 400, RequestsPerSecond: 50, P50: 10},
			},
			stop:    true,
			ceiling: 15,
			reason:  "throughput degradation at concurrency 15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := evaluatePhase(tt.phases, 0.05)
			if v.stop != tt.stop {
				t.Fatalf("stop = %v, want %v (verdict %+v)", v.stop, tt.stop, v)
			}
			if !tt.stop {
				return
			}
			if v.ceiling != tt.ceiling {
				t.Errorf("ceiling = %d, want %d", v.ceiling, tt.ceiling)
			}
			if v.reason != tt.reason {
				t.Errorf("reason = %q, want %q", v.reason, tt.reason)
			}
		})
	}
}

// fakeDispatcher builds a dispatcher around a single canned operation.
func fakeDispatcher(rec *record.Recorder, f func() error) *dispatcher {
	id := rec.RegisterMethod("ping")
	return &dispatcher{list: []op{func() (int32, float64, error) {
		time.Sleep(200 * time.Microsecond)
		return id, 0.2, f()
	}}}
}

func withTestPhaseDuration(t *testing.T, d time.Duration) {
	t.Helper()
	testPhaseDuration = d
	t.Cleanup(func() { testPhaseDuration = 0 })
}

func TestRunFindCeilingErrorSaturation(t *testing.T) {
	withTestPhaseDuration(t, 50*time.Millisecond)

	rec := record.NewRecorder(nil)
	defer rec.Complete()
	d := fakeDispatcher(rec, func() error { return errors.New("boom") })

	opts := Options{
		Profile: Profile{
			Name:        "test",
			FindCeiling: &FindCeilingConfig{MaxConcurrency: 5},
		},
	}

	phases, ceiling, reason := runFindCeiling(opts, rec, d)
	if len(phases) != 1 {
		t.Fatalf("got %d phases, want 1: %+v", len(phases), phases)
	}
	if reason != "error saturation at concurrency 1" {
		t.Errorf("reason = %q", reason)
	}
	if ceiling != 1 {
		t.Errorf("ceiling = %d, want 1", ceiling)
	}
	if phases[0].Errors != phases[0].Requests {
		t.Errorf("phase errors = %d of %d, want all", phases[0].Errors, phases[0].Requests)
	}
}

func TestRunFindCeilingNoPlateau(t *testing.T) {
	withTestPhaseDuration(t, 100*time.Millisecond)

	rec := record.NewRecorder(nil)
	defer rec.Complete()
	d := fakeDispatcher(rec, func() error { return nil })

	opts := Options{
		Profile: Profile{
			Name:        "test",
			FindCeiling: &FindCeilingConfig{MaxConcurrency: 3},
		},
	}

	phases, ceiling, reason := runFindCeiling(opts, rec, d)
	if reason != "no plateau detected" {
		t.Fatalf("reason = %q, phases %+v", reason, phases)
	}
	if ceiling != 0 {
		t.Errorf("ceiling = %d, want 0", ceiling)
	}
	if len(phases) != 3 {
		t.Fatalf("got %d phases, want 3", len(phases))
	}

	// The recorded phase list has strictly increasing concurrency, and each
	// phase carries its index.
	for i, p := range phases {
		if p.Index != i {
			t.Errorf("phase %d carries index %d", i, p.Index)
		}
		if i > 0 && p.Concurrency <= phases[i-1].Concurrency {
			t.Errorf("concurrency not strictly increasing: %+v", phases)
		}
		if p.Requests == 0 {
			t.Errorf("phase %d recorded no requests", i)
		}
	}
}
