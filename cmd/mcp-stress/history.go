package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/history"
	"github.com/dgellow/mcp-stress/internal/jqfilter"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

type HistoryCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultHistoryCommand = &HistoryCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const HistoryHelp = `mcp-stress history -- Manage the named-run library

Usage: mcp-stress history [list]
       mcp-stress history show NAME [--jq EXPR]
       mcp-stress history save NAME FILE
       mcp-stress history rm NAME

Runs are stored under $HOME/.mcp-stress/runs. Names may contain letters,
digits, "_" and "-".

Options:
      --jq    Filter the shown summary through a jq program
  -h, --help  Show this help message and exit
`

func (c *HistoryCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress history", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)
	jqExpr := flags.String("jq", "", "jq filter")
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, HistoryHelp)
		return 0
	}

	rest := flags.Args()
	action := "list"
	if len(rest) > 0 {
		action = rest[0]
	}

	switch action {
	case "list":
		return c.list()

	case "show":
		if len(rest) != 2 {
			fmt.Fprint(c.ErrStream, HistoryHelp)
			return 2
		}
		return c.show(rest[1], *jqExpr)

	case "save":
		if len(rest) != 3 {
			fmt.Fprint(c.ErrStream, HistoryHelp)
			return 2
		}
		return c.save(rest[1], rest[2])

	case "rm":
		if len(rest) != 2 {
			fmt.Fprint(c.ErrStream, HistoryHelp)
			return 2
		}
		return c.rm(rest[1])
	}

	fmt.Fprint(c.ErrStream, HistoryHelp)
	return 2
}

func (c *HistoryCommand) list() int {
	entries, err := history.List()
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.OutStream, "no stored runs")
		return 0
	}
	for _, e := range entries {
		fmt.Fprintf(c.OutStream, "%-30s %10s  %s\n",
			e.Name, humanize.IBytes(uint64(e.Size)), humanize.Time(e.ModTime))
	}
	return 0
}

func (c *HistoryCommand) show(name, jqExpr string) int {
	jq, err := jqfilter.Parse(jqExpr)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: invalid jq program: %s\n", err)
		return 2
	}

	path, err := history.Path(name)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}

	run, err := api.LoadRun(path)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}

	doc := map[string]any{"meta": run.Meta, "summary": run.Summary}
	out, err := applyJQ(jq, doc)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: jq failed: %s\n", err)
		return 1
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	fmt.Fprintln(c.OutStream, string(data))
	return 0
}

func (c *HistoryCommand) save(name, file string) int {
	path, err := history.Save(name, file)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	fmt.Fprintf(c.OutStream, "saved %s\n", path)
	return 0
}

func (c *HistoryCommand) rm(name string) int {
	if err := history.Remove(name); err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	fmt.Fprintf(c.OutStream, "removed %s\n", name)
	return 0
}
