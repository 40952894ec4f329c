package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/dgellow/mcp-stress/internal/engine"
	"github.com/dgellow/mcp-stress/internal/stats"
)

// colorize wraps s in an ANSI color when the output is a terminal.
func colorize(w io.Writer, code, s string) string {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "\033[" + code + "m" + s + "\033[0m"
	}
	return s
}

// printSummary renders the console table of one run.
func printSummary(w io.Writer, r *engine.Result) {
	s := r.Summary
	if s == nil {
		return
	}

	fmt.Fprintf(w, "\nrun %s (%s)\n", r.Meta.RunID, r.Meta.Config.Transport)
	fmt.Fprintf(w, "  requests: %s in %s  (%.1f req/s)\n",
		humanize.Comma(int64(s.TotalRequests)),
		humanize.SI(float64(s.DurationMs)/1000, "s"),
		s.RequestsPerSecond)

	errLine := fmt.Sprintf("  errors:   %s (%.2f%%)", humanize.Comma(int64(s.TotalErrors)), s.ErrorRate)
	if s.TotalErrors > 0 {
		errLine = colorize(w, "31", errLine)
	}
	fmt.Fprintln(w, errLine)

	fmt.Fprintf(w, "  latency:  min %.2f  mean %.2f  p50 %.2f  p95 %.2f  p99 %.2f  max %.2f (ms)\n",
		s.Overall.Min, s.Overall.Mean, s.Overall.P50, s.Overall.P95, s.Overall.P99, s.Overall.Max)

	if len(s.ErrorCategories) > 0 {
		fmt.Fprint(w, "  by category:")
		cats := make([]string, 0, len(s.ErrorCategories))
		for c := range s.ErrorCategories {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(w, " %s=%d", c, s.ErrorCategories[c])
		}
		fmt.Fprintln(w)
	}

	if len(s.ByMethod) > 0 {
		methods := make([]string, 0, len(s.ByMethod))
		for m := range s.ByMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		fmt.Fprintf(w, "\n  %-32s %10s %8s %9s %9s %9s\n", "method", "count", "errors", "p50", "p95", "p99")
		for _, m := range methods {
			ms := s.ByMethod[m]
			fmt.Fprintf(w, "  %-32s %10s %8d %8.2f %8.2f %8.2f\n",
				m, humanize.Comma(int64(ms.Count)), ms.Errors,
				ms.Latency.P50, ms.Latency.P95, ms.Latency.P99)
		}
	}

	if len(r.Phases) > 0 {
		fmt.Fprintf(w, "\n  %-7s %12s %10s %9s %9s %8s\n", "phase", "concurrency", "req/s", "p50", "p99", "errors")
		for _, p := range r.Phases {
			fmt.Fprintf(w, "  %-7d %12d %10.1f %8.2f %8.2f %8d\n",
				p.Index, p.Concurrency, p.RequestsPerSecond, p.P50, p.P99, p.Errors)
		}
		if r.Ceiling > 0 {
			fmt.Fprintln(w, colorize(w, "32", "  "+r.CeilingReason))
		} else {
			fmt.Fprintln(w, "  "+r.CeilingReason)
		}
	}
}

// printAggregate renders the cross-run aggregate of a repeated run.
func printAggregate(w io.Writer, agg stats.MultiRunAggregate) {
	fmt.Fprintf(w, "\n=== aggregate over %d runs (mean ± stddev)\n", agg.RunCount)
	fmt.Fprintf(w, "  requests: %.0f ± %.1f\n", agg.TotalRequests.Mean, agg.TotalRequests.Stddev)
	fmt.Fprintf(w, "  req/s:    %.1f ± %.1f\n", agg.RequestsPerSecond.Mean, agg.RequestsPerSecond.Stddev)
	fmt.Fprintf(w, "  errors:   %.0f ± %.1f (%.2f%%)\n", agg.TotalErrors.Mean, agg.TotalErrors.Stddev, agg.ErrorRate.Mean)
	fmt.Fprintf(w, "  p50:      %.2f ± %.2f ms\n", agg.Overall.P50.Mean, agg.Overall.P50.Stddev)
	fmt.Fprintf(w, "  p95:      %.2f ± %.2f ms\n", agg.Overall.P95.Mean, agg.Overall.P95.Stddev)
	fmt.Fprintf(w, "  p99:      %.2f ± %.2f ms\n", agg.Overall.P99.Mean, agg.Overall.P99.Stddev)
}
