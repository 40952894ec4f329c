package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/client"
	"github.com/dgellow/mcp-stress/internal/jqfilter"
	"github.com/dgellow/mcp-stress/internal/transport"
)

type DiscoverCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultDiscoverCommand = &DiscoverCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const DiscoverHelp = `mcp-stress discover -- Enumerate an MCP server's capabilities

Usage: mcp-stress discover [OPTIONS...] [--url URL | -- CMD ARGS...]

Prints the server's tools, resources, resource templates, and prompts as one
JSON document. Exits with status 1 on connection failure.

Options:
      --jq       Filter the result through a jq program
      --timeout  Per-request timeout in milliseconds (default 30000)
      --url      Target a streamable HTTP server
      --sse      Use the legacy SSE transport with --url
  -H, --header   Extra HTTP header "Name: value"; repeatable
  -e, --env      Extra environment "NAME=VALUE" for the server command
  -h, --help     Show this help message and exit
`

func (c *DiscoverCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress discover", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)
	jqExpr := flags.String("jq", "", "jq filter")
	timeoutMs := flags.Int("timeout", 30000, "per-request timeout in milliseconds")
	url := flags.String("url", "", "HTTP server URL")
	useSSE := flags.Bool("sse", false, "use the legacy SSE transport")
	rawHeaders := flags.StringArrayP("header", "H", nil, "extra HTTP header")
	rawEnv := flags.StringArrayP("env", "e", nil, "extra environment entry")
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, DiscoverHelp)
		return 0
	}

	jq, err := jqfilter.Parse(*jqExpr)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: invalid jq program: %s\n", err)
		return 2
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

	tr, err := tc.New(transport.Options{Timeout: time.Duration(*timeoutMs) * time.Millisecond})
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 2
	}

	cl := client.New(tr)
	if _, err := cl.Connect(); err != nil {
		fmt.Fprintf(c.ErrStream, "error: connection failed: %s\n", err)
		tr.Close()
		return 1
	}
	defer cl.Close()

	result := map[string]any{
		"serverInfo": map[string]string{
			"name":    cl.Server.Name,
			"version": cl.Server.Version,
		},
		"protocolVersion": cl.Server.ProtocolVersion,
	}
	if len(cl.Server.Capabilities) > 0 {
		var caps any
		if err := json.Unmarshal(cl.Server.Capabilities, &caps); err == nil {
			result["capabilities"] = caps
		}
	}

	// Unimplemented capabilities are simply absent from the result.
	if tools, _, err := cl.ListTools(); err == nil {
		result["tools"] = tools
	} else if !methodNotFound(err) {
		fmt.Fprintf(c.ErrStream, "warning: tools/list failed: %s\n", err)
	}
	if resources, _, err := cl.ListResources(); err == nil {
		result["resources"] = resources
	} else if !methodNotFound(err) {
		fmt.Fprintf(c.ErrStream, "warning: resources/list failed: %s\n", err)
	}
	if templates, _, err := cl.ListResourceTemplates(); err == nil {
		result["resourceTemplates"] = templates
	} else if !methodNotFound(err) {
		fmt.Fprintf(c.ErrStream, "warning: resources/templates/list failed: %s\n", err)
	}
	if prompts, _, err := cl.ListPrompts(); err == nil {
		result["prompts"] = prompts
	} else if !methodNotFound(err) {
		fmt.Fprintf(c.ErrStream, "warning: prompts/list failed: %s\n", err)
	}

	out, err := applyJQ(jq, result)
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

// applyJQ round-trips the value through plain JSON types, which is what gojq
// expects, and runs the program.
func applyJQ(jq jqfilter.Query, v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return jq.Run(context.Background(), plain)
}
