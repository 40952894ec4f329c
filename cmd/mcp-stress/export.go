package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/runconv"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

type ExportCommand struct {
	InStream  io.Reader
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultExportCommand = &ExportCommand{
	InStream:  os.Stdin,
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const ExportHelp = `mcp-stress export -- Convert a run file to another format

Usage: mcp-stress export [OPTIONS...] [INPUT]

INPUT defaults to stdin.

Options:
  -o, --output  Output file. (default stdout)

  -c, --csv     Convert to CSV. (default format)
  -j, --json    Convert to a JSON array.
  -x, --xlsx    Convert to XLSX.

  -h, --help    Show this help message and exit.
`

func (c *ExportCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress export", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)

	outputPath := flags.StringP("output", "o", "", "Output file")

	toCsv := flags.BoolP("csv", "c", false, "Convert to CSV")
	toJson := flags.BoolP("json", "j", false, "Convert to JSON")
	toXlsx := flags.BoolP("xlsx", "x", false, "Convert to XLSX")

	help := flags.BoolP("help", "h", false, "Show this message and exit")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		fmt.Fprintf(c.ErrStream, "\nPlease see `%s export -h` for more information.\n", args[0])
		return 2
	}

	if *help {
		fmt.Fprint(c.OutStream, ExportHelp)
		return 0
	}

	count := 0
	for _, b := range []bool{*toCsv, *toJson, *toXlsx} {
		if b {
			count++
		}
	}
	if count > 1 {
		fmt.Fprintln(c.ErrStream, "error: flags for output format can not be used together.")
		return 2
	}

	var scanner *api.RunScanner
	switch rest := flags.Args(); len(rest) {
	case 0:
		scanner = api.NewRunScanner(io.NopCloser(c.InStream))
	case 1:
		if rest[0] == "" || rest[0] == "-" {
			scanner = api.NewRunScanner(io.NopCloser(c.InStream))
		} else {
			f, err := os.Open(rest[0])
			if err != nil {
				fmt.Fprintf(c.ErrStream, "error: failed to open input run file: %s\n", err)
				return 1
			}
			scanner = api.NewRunScanner(f)
		}
	default:
		fmt.Fprint(c.ErrStream, ExportHelp)
		return 2
	}
	defer scanner.Close()

	output := c.OutStream
	if *outputPath != "" && *outputPath != "-" {
		f, err := os.Create(*outputPath)
		if err != nil {
			fmt.Fprintf(c.ErrStream, "error: failed to open output file: %s\n", err)
			return 1
		}
		defer f.Close()
		output = f
	} else if *toXlsx && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())) {
		fmt.Fprintln(c.ErrStream, "error: can not write xlsx format to the terminal. please redirect or use the -o option.")
		return 2
	}

	var err error
	switch {
	case *toJson:
		err = runconv.ToJSON(output, scanner)
	case *toXlsx:
		err = runconv.ToXlsx(output, scanner, time.Now())
	default:
		err = runconv.ToCSV(output, scanner)
	}
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}
	return 0
}
