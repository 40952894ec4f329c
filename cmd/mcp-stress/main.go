package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/dgellow/mcp-stress/internal/meta"
)

//go:embed help.txt
var helpText string

func printUsage(w io.Writer) {
	tmpl := template.Must(template.New("help.txt").Parse(helpText))
	tmpl.Execute(w, map[string]interface{}{
		"Version": meta.Version,
	})
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mcp-stress version %s (%s)\n", meta.Version, meta.Commit)
}

func run(args []string) int {
	if len(args) < 2 {
		printUsage(os.Stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return defaultRunCommand.Run(args)
	case "chart":
		return defaultChartCommand.Run(args)
	case "compare":
		return defaultCompareCommand.Run(args)
	case "aggregate":
		return defaultAggregateCommand.Run(args)
	case "diagnose":
		return defaultDiagnoseCommand.Run(args)
	case "discover":
		return defaultDiscoverCommand.Run(args)
	case "history":
		return defaultHistoryCommand.Run(args)
	case "export":
		return defaultExportCommand.Run(args)
	case "profiles":
		return defaultProfilesCommand.Run(args)
	case "shapes":
		return defaultShapesCommand.Run(args)
	case "version", "-v", "--version":
		printVersion(os.Stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return 0
	}

	fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", args[1])
	printUsage(os.Stderr)
	return 2
}

func main() {
	os.Exit(run(os.Args))
}
