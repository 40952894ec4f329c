package main

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/stats"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

//go:embed templates/chart.html
var chartHTMLTemplateStr string

var chartHTMLTemplate = template.Must(template.New("chart.html").Parse(chartHTMLTemplateStr))

type ChartCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultChartCommand = &ChartCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const ChartHelp = `mcp-stress chart -- Render a run file to an HTML chart

Usage: mcp-stress chart [OPTIONS...] INPUT [OUTPUT]

OUTPUT defaults to INPUT with the extension replaced by ".html".

Options:
  -h, --help  Show this help message and exit.
`

func (c *ChartCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress chart", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, ChartHelp)
		return 0
	}

	rest := flags.Args()
	if len(rest) < 1 || len(rest) > 2 {
		fmt.Fprint(c.ErrStream, ChartHelp)
		return 2
	}

	input := rest[0]
	output := chartOutputPath(input)
	if len(rest) == 2 {
		output = rest[1]
	}

	run, err := api.LoadRun(input)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	if len(run.Events) == 0 {
		fmt.Fprintf(c.ErrStream, "error: %s contains no request events\n", input)
		return 1
	}

	summary := run.Summary
	if summary == nil {
		// Incomplete run; derive the summary from the events.
		s := stats.SummaryFromEvents(run.Events)
		summary = &s
	}

	chart := stats.Prepare(run.Meta, run.Events, summary)

	f, err := os.Create(output)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	defer f.Close()

	if err := renderChart(f, chart); err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}

	fmt.Fprintf(c.OutStream, "wrote %s\n", output)
	return 0
}

func chartOutputPath(input string) string {
	if i := strings.LastIndex(input, "."); i > 0 {
		return input[:i] + ".html"
	}
	return input + ".html"
}

func renderChart(w io.Writer, chart stats.Chart) error {
	data, err := json.Marshal(chart)
	if err != nil {
		return err
	}

	title := "mcp-stress run"
	if chart.Meta != nil {
		title = "mcp-stress " + chart.Meta.RunID
	}

	return chartHTMLTemplate.Execute(w, map[string]interface{}{
		"Title": title,
		"Data":  template.JS(data),
	})
}
