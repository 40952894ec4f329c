package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/stats"
)

// MultiObserver extends Observer with the events of a repeated run.
type MultiObserver interface {
	Observer

	OnNewRun(index, total int)
	OnRunComplete(index int, chart stats.Chart)
	OnAllComplete(agg stats.MultiRunAggregate)
}

// repeatOutputPath derives the per-run output path of run i (0-based) from
// the configured path: base.ndjson, base-2.ndjson, base-3.ndjson, ...
func repeatOutputPath(path string, i int) string {
	if path == "" || i == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i+1, ext)
}

// RunRepeat executes the same profile repeat times, each run producing its
// own output file and summary, then computes the cross-run aggregate.
//
// A fatal error in any run aborts the remaining ones.
func RunRepeat(opts Options, repeat int) ([]*Result, *stats.MultiRunAggregate, error) {
	if repeat < 1 {
		repeat = 1
	}

	multi, _ := opts.Observer.(MultiObserver)

	var results []*Result
	for i := 0; i < repeat; i++ {
		if multi != nil {
			multi.OnNewRun(i, repeat)
		}

		runOpts := opts
		runOpts.OutputPath = repeatOutputPath(opts.OutputPath, i)

		result, err := Run(runOpts)
		if err != nil {
			return results, nil, err
		}
		results = append(results, result)

		if multi != nil {
			multi.OnRunComplete(i, result.Chart())
		}
	}

	if repeat == 1 {
		return results, nil, nil
	}

	summaries := make([]*api.SummaryEvent, len(results))
	for i, r := range results {
		summaries[i] = r.Summary
	}
	agg := stats.Aggregate(summaries)

	if multi != nil {
		multi.OnAllComplete(agg)
	}

	return results, &agg, nil
}
