package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/stats"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

type CompareCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultCompareCommand = &CompareCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const CompareHelp = `mcp-stress compare -- Diff two run files

Usage: mcp-stress compare [OPTIONS...] BASELINE CURRENT

Exits with status 1 when the current run regressed against the baseline, or
when an assertion on the current run failed.

Options:
      --threshold  Regression threshold in percent (default 10)
      --assert     Assertion against the current run; repeatable
  -h, --help       Show this help message and exit
`

// loadSummary loads a run file and its summary, deriving one for incomplete
// runs.
func loadSummary(path string) (*api.SummaryEvent, error) {
	run, err := api.LoadRun(path)
	if err != nil {
		return nil, err
	}
	if run.Summary != nil {
		return run.Summary, nil
	}
	if len(run.Events) == 0 {
		return nil, fmt.Errorf("%s contains no request events", path)
	}
	s := stats.SummaryFromEvents(run.Events)
	return &s, nil
}

func (c *CompareCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress compare", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)
	threshold := flags.Float64("threshold", 10, "regression threshold in percent")
	asserts := flags.StringArray("assert", nil, "assertion expression")
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, CompareHelp)
		return 0
	}

	rest := flags.Args()
	if len(rest) != 2 {
		fmt.Fprint(c.ErrStream, CompareHelp)
		return 2
	}

	assertions, err := parseAssertions(*asserts)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 2
	}

	base, err := loadSummary(rest[0])
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	cur, err := loadSummary(rest[1])
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}

	regressed := false
	row := func(name string, baseV, curV float64, higherIsWorse bool) {
		delta := 0.0
		if baseV != 0 {
			delta = (curV - baseV) / baseV * 100
		}
		mark := ""
		worse := delta > *threshold
		if !higherIsWorse {
			worse = delta < -*threshold
		}
		if worse {
			mark = "  <-- regression"
			regressed = true
		}
		fmt.Fprintf(c.OutStream, "  %-12s %12.2f %12.2f %+9.1f%%%s\n", name, baseV, curV, delta, mark)
	}

	fmt.Fprintf(c.OutStream, "  %-12s %12s %12s %10s\n", "metric", "baseline", "current", "delta")
	row("rps", base.RequestsPerSecond, cur.RequestsPerSecond, false)
	row("p50", base.Overall.P50, cur.Overall.P50, true)
	row("p95", base.Overall.P95, cur.Overall.P95, true)
	row("p99", base.Overall.P99, cur.Overall.P99, true)
	row("mean", base.Overall.Mean, cur.Overall.Mean, true)
	row("error_rate", base.ErrorRate, cur.ErrorRate, true)

	exit := 0
	for _, a := range assertions {
		actual, ok := a.Eval(cur)
		verdict := "PASS"
		if !ok {
			verdict = "FAIL"
			exit = 1
		}
		fmt.Fprintf(c.OutStream, "%s  %s (observed %.2f)\n", verdict, a, actual)
	}

	if regressed {
		fmt.Fprintln(c.OutStream, "regression detected")
		return 1
	}
	return exit
}
