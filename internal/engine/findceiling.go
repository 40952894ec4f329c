package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgellow/mcp-stress/internal/record"
	"github.com/dgellow/mcp-stress/internal/stats"
)

// testPhaseDuration overrides the probe phase length.
// This variable is for testing purposes.
var testPhaseDuration time.Duration

// nextConcurrency climbs the probe ladder: +1 up to 5, +5 up to 20, then
// +10.
func nextConcurrency(c int) int {
	switch {
	case c < 5:
		return c + 1
	case c < 20:
		return c + 5
	default:
		return c + 10
	}
}

// phaseVerdict is the decision taken after one phase completes.
type phaseVerdict struct {
	stop    bool
	ceiling int
	reason  string
}

// evaluatePhase applies the stop rules, in order: throughput plateau, then
// throughput degradation, then error saturation. The first two compare
// against the previous phase and so need one; error saturation applies from
// the very first phase.
func evaluatePhase(phases []Phase, plateauThreshold float64) phaseVerdict {
	cur := phases[len(phases)-1]

	if len(phases) >= 2 {
		prev := phases[len(phases)-2]

		rpsGain := 1.0
		if prev.RequestsPerSecond > 0 {
			rpsGain = (cur.RequestsPerSecond - prev.RequestsPerSecond) / prev.RequestsPerSecond
		}
		p50Gain := 0.0
		if prev.P50 > 0 {
			p50Gain = (cur.P50 - prev.P50) / prev.P50
		}

		if rpsGain < plateauThreshold && p50Gain > 0.2 {
			return phaseVerdict{
				stop:    true,
				ceiling: prev.Concurrency,
				reason:  fmt.Sprintf("plateau at concurrency %d", prev.Concurrency),
			}
		}
		if cur.RequestsPerSecond < 0.9*prev.RequestsPerSecond {
			return phaseVerdict{
				stop:    true,
				ceiling: cur.Concurrency,
				reason:  fmt.Sprintf("throughput degradation at concurrency %d", cur.Concurrency),
			}
		}
	}

	if cur.Requests > 0 && float64(cur.Errors) > 0.1*float64(cur.Requests) {
		return phaseVerdict{
			stop:    true,
			ceiling: cur.Concurrency,
			reason:  fmt.Sprintf("error saturation at concurrency %d", cur.Concurrency),
		}
	}

	return phaseVerdict{}
}

// runFindCeiling steps concurrency upward phase by phase until throughput
// plateaus, degrades, or errors saturate. It returns the recorded phases,
// the detected ceiling (0 if none), and a human-readable reason.
func runFindCeiling(opts Options, rec *record.Recorder, d *dispatcher) ([]Phase, int, string) {
	cfg := opts.Profile.FindCeiling.withDefaults()

	phaseDurSec := cfg.PhaseDurationSec
	if total := opts.Profile.DurationSec; total > 0 && phaseDurSec > total/5 {
		phaseDurSec = total / 5
	}
	if phaseDurSec < 5 {
		phaseDurSec = 5
	}
	phaseDur := time.Duration(phaseDurSec) * time.Second
	if testPhaseDuration > 0 {
		phaseDur = testPhaseDuration
	}

	var phases []Phase
	concurrency := 1

	for concurrency <= cfg.MaxConcurrency {
		idx := len(phases)
		rec.SetPhase(idx)
		rec.SetConcurrency(concurrency)

		startTotal := rec.Total()
		startErrors := rec.Errors()
		startIdx := rec.LatencyCount()
		startTime := time.Now()
		deadline := startTime.Add(phaseDur)

		var wg sync.WaitGroup
		wg.Add(concurrency)
		for i := 0; i < concurrency; i++ {
			go func() {
				defer wg.Done()
				for time.Now().Before(deadline) {
					d.runOne(rec)
				}
			}()
		}
		wg.Wait()

		elapsed := time.Since(startTime).Seconds()
		phaseTotal := int(rec.Total() - startTotal)
		phaseErrors := int(rec.Errors() - startErrors)

		latencies := append([]float64(nil), rec.LatenciesSince(startIdx)...)
		sort.Float64s(latencies)

		phase := Phase{
			Index:       idx,
			Concurrency: concurrency,
			Requests:    phaseTotal,
			Errors:      phaseErrors,
			P50:         stats.Percentile(latencies, 0.50),
			P99:         stats.Percentile(latencies, 0.99),
		}
		if elapsed > 0 {
			phase.RequestsPerSecond = float64(phaseTotal) / elapsed
		}
		phases = append(phases, phase)

		opts.logf("phase %d: concurrency=%d rps=%.1f p50=%.1fms p99=%.1fms errors=%d",
			idx, concurrency, phase.RequestsPerSecond, phase.P50, phase.P99, phaseErrors)

		if v := evaluatePhase(phases, cfg.PlateauThreshold); v.stop {
			return phases, v.ceiling, v.reason
		}

		concurrency = nextConcurrency(concurrency)
	}

	return phases, 0, "no plateau detected"
}
