package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/dgellow/mcp-stress/internal/dashboard"
	"github.com/dgellow/mcp-stress/internal/engine"
	"github.com/dgellow/mcp-stress/internal/schedule"
	"github.com/dgellow/mcp-stress/internal/stats"
	"github.com/dgellow/mcp-stress/internal/stresserr"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

type RunCommand struct {
	OutStream io.Writer
	ErrStream io.Writer
}

var defaultRunCommand = &RunCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

const RunHelp = `mcp-stress run -- Execute a workload against an MCP server

Usage: mcp-stress run [OPTIONS...] [--url URL | -- CMD ARGS...]

Options:
  -p, --profile      Workload profile (default "baseline"; see 'profiles')
  -d, --duration     Run duration in seconds (overrides the profile)
  -n, --requests     Stop after this many requests instead of a duration
  -c, --concurrency  Peak concurrency (overrides the profile)
      --timeout      Per-request timeout in milliseconds (default 30000)
  -t, --tool         Bind tools/call entries to a single tool
      --shape        Load shape (see 'shapes')
  -o, --output       Write the run file (NDJSON) to this path
      --seed         PRNG seed for generated tool arguments
      --live         Serve a live dashboard while the run executes
      --json         Print the summary object instead of the table
      --assert       Assertion like "p99 < 500ms"; repeatable
      --repeat       Run the workload N times and aggregate (default 1)
      --schedule     Repeat the whole run on a schedule ("5m", cron, "@after 1h")
      --url          Target a streamable HTTP server
      --sse          Use the legacy SSE transport with --url
  -H, --header       Extra HTTP header "Name: value"; repeatable
  -e, --env          Extra environment "NAME=VALUE" for the server command; repeatable
  -V, --verbose      Show wire-level diagnostics
  -h, --help         Show this help message and exit
`

// splitHeaders parses repeated --header flags. Every malformed entry is
// reported, not just the first.
func splitHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	lb := &stresserr.ListBuilder{What: api.ErrInvalidArgumentValue}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			lb.Pushf("invalid header %q (expected \"Name: value\")", h)
			continue
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	if err := lb.Build(); err != nil {
		return nil, err
	}
	return headers, nil
}

// splitEnv parses repeated --env flags. Every malformed entry is reported,
// not just the first.
func splitEnv(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(raw))
	lb := &stresserr.ListBuilder{What: api.ErrInvalidArgumentValue}
	for _, e := range raw {
		name, value, ok := strings.Cut(e, "=")
		if !ok {
			lb.Pushf("invalid environment entry %q (expected NAME=VALUE)", e)
			continue
		}
		env[name] = value
	}
	if err := lb.Build(); err != nil {
		return nil, err
	}
	return env, nil
}

// parseAssertions parses repeated --assert flags, collecting every bad
// expression into one error.
func parseAssertions(exprs []string) ([]stats.Assertion, error) {
	var assertions []stats.Assertion
	lb := &stresserr.ListBuilder{What: api.ErrInvalidArgumentValue}
	for _, expr := range exprs {
		a, err := stats.ParseAssertion(expr)
		if err != nil {
			lb.Push(err)
			continue
		}
		assertions = append(assertions, a)
	}
	if err := lb.Build(); err != nil {
		return nil, err
	}
	return assertions, nil
}

func (c *RunCommand) Run(args []string) int {
	flags := pflag.NewFlagSet("mcp-stress run", pflag.ContinueOnError)
	flags.SetOutput(c.ErrStream)

	profileName := flags.StringP("profile", "p", "baseline", "workload profile")
	duration := flags.IntP("duration", "d", 0, "run duration in seconds")
	requests := flags.IntP("requests", "n", 0, "request cap")
	concurrency := flags.IntP("concurrency", "c", 0, "peak concurrency")
	timeoutMs := flags.Int("timeout", 30000, "per-request timeout in milliseconds")
	tool := flags.StringP("tool", "t", "", "target tool name")
	shapeName := flags.String("shape", "", "load shape")
	output := flags.StringP("output", "o", "", "run file output path")
	seed := flags.Uint32("seed", 0, "PRNG seed")
	live := flags.Bool("live", false, "serve a live dashboard")
	jsonOut := flags.Bool("json", false, "print the summary object verbatim")
	asserts := flags.StringArray("assert", nil, "assertion expression")
	repeat := flags.Int("repeat", 1, "number of runs")
	scheduleSpec := flags.String("schedule", "", "repeat the run on a schedule")
	url := flags.String("url", "", "HTTP server URL")
	useSSE := flags.Bool("sse", false, "use the legacy SSE transport")
	rawHeaders := flags.StringArrayP("header", "H", nil, "extra HTTP header")
	rawEnv := flags.StringArrayP("env", "e", nil, "extra environment entry")
	verbose := flags.BoolP("verbose", "V", false, "wire-level diagnostics")
	help := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[2:]); err != nil {
		fmt.Fprintln(c.ErrStream, err)
		fmt.Fprintf(c.ErrStream, "\nPlease see `%s run -h` for more information.\n", args[0])
		return 2
	}
	if *help {
		fmt.Fprint(c.OutStream, RunHelp)
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

	profile, err := engine.LookupProfile(*profileName)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 2
	}
	applyOverrides(&profile, flags, *duration, *requests, *concurrency, *shapeName, *tool)

	assertions, err := parseAssertions(*asserts)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 2
	}

	opts := engine.Options{
		Profile:    profile,
		Transport:  tc,
		TimeoutMs:  *timeoutMs,
		OutputPath: *output,
		Seed:       *seed,
		Repro:      reproCommand(args),
		Logf: func(format string, a ...interface{}) {
			fmt.Fprintf(c.ErrStream, format+"\n", a...)
		},
	}
	if *verbose {
		opts.Verbose = func(format string, a ...interface{}) {
			fmt.Fprintf(c.ErrStream, "# "+format+"\n", a...)
		}
	}

	var dash *dashboard.Server
	if *live {
		dash = dashboard.New()
		dashURL, err := dash.Start()
		if err != nil {
			fmt.Fprintf(c.ErrStream, "warning: failed to start dashboard: %s\n", err)
			dash = nil
		} else {
			fmt.Fprintf(c.ErrStream, "dashboard: %s\n", dashURL)
			opts.Observer = dash
			defer dash.Shutdown()
		}
	}

	if *scheduleSpec != "" {
		sched, err := schedule.Parse(*scheduleSpec)
		if err != nil {
			fmt.Fprintf(c.ErrStream, "error: invalid schedule: %s\n", err)
			return 2
		}
		return c.runScheduled(opts, sched, *repeat, assertions, *jsonOut)
	}

	return c.runOnce(opts, *repeat, assertions, *jsonOut)
}

func resolveTransport(command []string, url string, useSSE bool, rawHeaders, rawEnv []string) (engine.TransportConfig, error) {
	headers, err := splitHeaders(rawHeaders)
	if err != nil {
		return engine.TransportConfig{}, err
	}
	env, err := splitEnv(rawEnv)
	if err != nil {
		return engine.TransportConfig{}, err
	}

	switch {
	case len(command) > 0 && url != "":
		return engine.TransportConfig{}, fmt.Errorf("choose either --url or a server command after --, not both")
	case len(command) > 0:
		return engine.TransportConfig{Kind: "stdio", Command: command, Env: env}, nil
	case url != "" && useSSE:
		return engine.TransportConfig{Kind: "sse", URL: url, Headers: headers}, nil
	case url != "":
		return engine.TransportConfig{Kind: "streamable-http", URL: url, Headers: headers}, nil
	}
	return engine.TransportConfig{}, fmt.Errorf("a target is required: --url URL or a server command after --")
}

func applyOverrides(profile *engine.Profile, flags *pflag.FlagSet, duration, requests, concurrency int, shape, tool string) {
	if flags.Changed("duration") {
		profile.DurationSec = duration
	}
	if flags.Changed("requests") {
		profile.Requests = requests
		if !flags.Changed("duration") {
			profile.DurationSec = 0
		}
	}
	if flags.Changed("concurrency") {
		profile.Concurrency = concurrency
	}
	if shape != "" {
		profile.Shape = shape
	}
	if tool != "" {
		for i := range profile.Mix {
			if profile.Mix[i].Method == "tools/call" {
				profile.Mix[i].Tool = tool
			}
		}
	}
}

// reproCommand reconstructs the command line for the meta event.
func reproCommand(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts[i] = a
	}
	parts[0] = "mcp-stress"
	return strings.Join(parts, " ")
}

// runOnce executes one run (or one repeat cycle) and reports it.
func (c *RunCommand) runOnce(opts engine.Options, repeat int, assertions []stats.Assertion, jsonOut bool) int {
	results, agg, err := engine.RunRepeat(opts, repeat)
	if err != nil {
		fmt.Fprintf(c.ErrStream, "error: %s\n", err)
		return 1
	}

	last := results[len(results)-1]

	// Assertions run against the aggregate means for repeated runs, against
	// the run summary otherwise.
	target := last.Summary
	if agg != nil {
		s := agg.Summary()
		target = &s
	}

	if jsonOut {
		var v any = target
		if agg != nil {
			v = agg
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(c.ErrStream, "error: %s\n", err)
			return 1
		}
		fmt.Fprintln(c.OutStream, string(data))
	} else {
		for i, r := range results {
			if repeat > 1 {
				fmt.Fprintf(c.OutStream, "\n=== run %d/%d\n", i+1, repeat)
			}
			printSummary(c.OutStream, r)
		}
		if agg != nil {
			printAggregate(c.OutStream, *agg)
		}
	}

	exit := 0
	for _, a := range assertions {
		actual, ok := a.Eval(target)
		verdict := "PASS"
		if !ok {
			verdict = "FAIL"
			exit = 1
		}
		fmt.Fprintf(c.OutStream, "%s  %s (observed %.2f)\n", verdict, a, actual)
	}
	return exit
}

// runScheduled repeats the whole run cycle on the schedule until
// interrupted.
func (c *RunCommand) runScheduled(opts engine.Options, sched schedule.Schedule, repeat int, assertions []stats.Assertion, jsonOut bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exit := 0
	firing := 0
	next := time.Now()
	if !sched.RunsImmediately() {
		next = sched.Next(time.Now())
	}

	for {
		select {
		case <-ctx.Done():
			return exit
		case <-time.After(time.Until(next)):
		}

		runOpts := opts
		runOpts.OutputPath = firingOutputPath(opts.OutputPath, firing)

		fmt.Fprintf(c.ErrStream, "--- scheduled run %d at %s\n", firing+1, time.Now().Format(time.RFC3339))
		if code := c.runOnce(runOpts, repeat, assertions, jsonOut); code != 0 {
			exit = code
		}

		firing++
		prev := next
		next = sched.Next(time.Now())
		if !next.After(prev) || next.Year() > time.Now().Year()+100 {
			// One-shot schedules report a far-future next firing.
			return exit
		}
	}
}

// firingOutputPath suffixes the output path with the firing sequence number.
func firingOutputPath(path string, firing int) string {
	if path == "" || firing == 0 {
		return path
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		return fmt.Sprintf("%s-run%d%s", path[:i], firing+1, path[i:])
	}
	return fmt.Sprintf("%s-run%d", path, firing+1)
}
