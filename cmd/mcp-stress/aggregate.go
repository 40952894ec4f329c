package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/meta"
	"github.com/dgellow/mcp-stress/internal/stats"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

type AggregateCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultAggregateCommand = &AggregateCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const AggregateHelp = `mcp-stress aggregate -- Combine run files into a cross-run aggregate

Usage: mcp-stress aggregate [OPTIONS...] RUN1 RUN2 [RUN...]

Options:
  -o, --output  Write an aggregate run file (NDJSON) to this path
      --json    Print the aggregate object instead of the table
  -h, --help    Show this help message and exit
`

func (c *AggregateCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress aggregate", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)
	output := flags.StringP("output", "o", "", "aggregate output path")
	jsonOut := flags.Bool("json", false, "print the aggregate object")
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, AggregateHelp)
		return 0
	}

	paths := flags.Args()
	if len(paths) < 2 {
		fmt.Fprint(c.ErrStream, AggregateHelp)
		return 2
	}

	var (
		summaries []*api.SummaryEvent
		firstMeta *api.Meta
	)
	for _, path := range paths {
		run, err := api.LoadRun(path)
		if err != nil {
			fmt.Fprintf(c.ErrStream, "error: %s\n", err)
			return 1
		}
		if run.Summary == nil {
			fmt.Fprintf(c.ErrStream, "error: %s has no summary (incomplete run)\n", path)
			return 1
		}
		if firstMeta == nil {
			firstMeta = run.Meta
		}
		summaries = append(summaries, run.Summary)
	}

	agg := stats.Aggregate(summaries)

	if *output != "" {
		if err := writeAggregateFile(*output, firstMeta, agg); err != nil {
			fmt.Fprintf(c.ErrStream, "error: %s\n", err)
			return 1
		}
		fmt.Fprintf(c.OutStream, "wrote %s\n", *output)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(agg, "", "  ")
		if err != nil {
			fmt.Fprintf(c.ErrStream, "error: %s\n", err)
			return 1
		}
		fmt.Fprintln(c.OutStream, string(data))
	} else {
		printAggregate(c.OutStream, agg)
	}
	return 0
}

// writeAggregateFile writes an aggregate run file: a meta line flagged as
// aggregate, then a summary line of cross-run means.
func writeAggregateFile(path string, firstMeta *api.Meta, agg stats.MultiRunAggregate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m := api.Meta{
		Type:      "meta",
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Version:   meta.Version,
		Aggregate: true,
		RunCount:  agg.RunCount,
	}
	if firstMeta != nil {
		m.Config = firstMeta.Config
	}

	for _, v := range []any{m, agg.Summary()} {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}
