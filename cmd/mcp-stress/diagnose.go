package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/client"
	"github.com/dgellow/mcp-stress/internal/sampler"
	"github.com/dgellow/mcp-stress/internal/transport"
)

type DiagnoseCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultDiagnoseCommand = &DiagnoseCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const DiagnoseHelp = `mcp-stress diagnose -- Probe an MCP server step by step

Usage: mcp-stress diagnose [OPTIONS...] [--url URL | -- CMD ARGS...]

Each step prints OK, SKIP (the server does not implement the capability), or
FAIL. Exits with status 1 when any step fails.

Options:
      --timeout  Per-request timeout in milliseconds (default 30000)
      --url      Target a streamable HTTP server
      --sse      Use the legacy SSE transport with --url
  -H, --header   Extra HTTP header "Name: value"; repeatable
  -e, --env      Extra environment "NAME=VALUE" for the server command
  -V, --verbose  Show wire-level diagnostics
  -h, --help     Show this help message and exit
`

// methodNotFound reports whether err is the JSON-RPC "method not found"
// reply, which marks an optional capability as unimplemented.
func methodNotFound(err error) bool {
	var te *transport.Error
	return errors.As(err, &te) && te.Code == -32601
}

func (c *DiagnoseCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress diagnose", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)
	timeoutMs := flags.Int("timeout", 30000, "per-request timeout in milliseconds")
	url := flags.String("url", "", "HTTP server URL")
	useSSE := flags.Bool("sse", false, "use the legacy SSE transport")
	rawHeaders := flags.StringArrayP("header", "H", nil, "extra HTTP header")
	rawEnv := flags.StringArrayP("env", "e", nil, "extra environment entry")
	verbose := flags.BoolP("verbose", "V", false, "wire-level diagnostics")
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, DiagnoseHelp)
		return 0
	}

	var command []string
	if i := flags.ArgsLenAtDash(); i >= 0 {
		command = flags.Args()[i:]
	}

	tc, err := resolveTransport(command, *url, *useSSE, *rawHeaders, *rawEnv)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 2
	}

	topts := transport.Options{Timeout: time.Duration(*timeoutMs) * time.Millisecond}
	if *verbose {
		topts.Verbose = func(format string, a ...interface{}) {
			fmt.Fprintf(c.ErrStream, "# "+format+"\n", a...)
		}
	}

	tr, err := tc.New(topts)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 2
	}

	failed := false
	step := func(name string, latency float64, err error, optional bool) bool {
		switch {
		case err == nil:
			fmt.Fprintf(c.OutStream, "OK    %-28s %8.2fms\n", name, latency)
			return true
		case optional && methodNotFound(err):
			fmt.Fprintf(c.OutStream, "SKIP  %-28s not implemented\n", name)
			return false
		default:
			fmt.Fprintf(c.OutStream, "FAIL  %-28s %s\n", name, err)
			failed = true
			return false
		}
	}

	cl := client.New(tr)
	cl.Warn = func(format string, a ...interface{}) {
		fmt.Fprintf(c.ErrStream, "warning: "+format+"\n", a...)
	}

	latency, err := cl.Connect()
	if !step("initialize", latency, err, false) {
		tr.Close()
		return 1
	}
	defer cl.Close()

	fmt.Fprintf(c.OutStream, "      server: %s %s (protocol %s)\n",
		cl.Server.Name, cl.Server.Version, cl.Server.ProtocolVersion)

	latency, err = cl.Ping()
	step("ping", latency, err, true)

	tools, latency, err := cl.ListTools()
	if step("tools/list", latency, err, true) {
		fmt.Fprintf(c.OutStream, "      %d tools\n", len(tools))
		if len(tools) > 0 {
			schema, serr := sampler.ParseSchema(tools[0].InputSchema)
			if serr != nil {
				schema = &sampler.Schema{Type: "object"}
			}
			_, latency, err := cl.CallTool(tools[0].Name, sampler.GenerateArgs(schema))
			step("tools/call:"+tools[0].Name, latency, err, false)
		}
	}

	resources, latency, err := cl.ListResources()
	if step("resources/list", latency, err, true) {
		fmt.Fprintf(c.OutStream, "      %d resources\n", len(resources))
		if len(resources) > 0 {
			_, latency, err := cl.ReadResource(resources[0].URI)
			step("resources/read", latency, err, false)
		}
	}

	templates, latency, err := cl.ListResourceTemplates()
	if step("resources/templates/list", latency, err, true) {
		fmt.Fprintf(c.OutStream, "      %d resource templates\n", len(templates))
	}

	prompts, latency, err := cl.ListPrompts()
	if step("prompts/list", latency, err, true) {
		fmt.Fprintf(c.OutStream, "      %d prompts\n", len(prompts))
	}

	if failed {
		return 1
	}
	return 0
}
