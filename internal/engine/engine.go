// Package engine drives a workload against an MCP server: it resolves the
// profile, builds the transport, performs the handshake, and runs the
// operations under the chosen load shape or controller.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/client"
	"github.com/dgellow/mcp-stress/internal/meta"
	"github.com/dgellow/mcp-stress/internal/record"
	"github.com/dgellow/mcp-stress/internal/stats"
	"github.com/dgellow/mcp-stress/internal/stresserr"
	"github.com/dgellow/mcp-stress/internal/transport"
)

// TransportConfig selects and parameterises the transport for a run.
type TransportConfig struct {
	// Kind is "stdio", "sse", or "streamable-http".
	Kind string

	// Command and Env configure the stdio transport.
	Command []string
	Env     map[string]string

	// URL and Headers configure the HTTP transports.
	URL     string
	Headers map[string]string
}

// New constructs a fresh transport for this configuration.
func (tc TransportConfig) New(opts transport.Options) (transport.Transport, error) {
	switch tc.Kind {
	case "stdio":
		return transport.NewStdio(tc.Command, tc.Env, opts), nil
	case "sse":
		return transport.NewSSE(tc.URL, tc.Headers, opts), nil
	case "streamable-http":
		return transport.NewStreamable(tc.URL, tc.Headers, opts), nil
	}
	return nil, stresserr.New(api.ErrInvalidArgumentValue, nil, "unknown transport %q", tc.Kind)
}

// Observer receives live progress while a run executes. Implementations must
// not block; the engine calls them from its timer goroutine.
type Observer interface {
	OnMeta(m api.Meta)
	OnWindow(w stats.Window)
	OnMessage(msg string)
}

// Options configures one run.
type Options struct {
	Profile   Profile
	Transport TransportConfig

	TimeoutMs  int
	OutputPath string
	Seed       uint32

	// Repro is the command line recorded in the meta event.
	Repro string

	Observer Observer

	// Verbose receives wire-level diagnostics; Logf receives run-level
	// notices. Either may be nil.
	Verbose func(format string, args ...interface{})
	Logf    func(format string, args ...interface{})
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
	if o.Observer != nil {
		o.Observer.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (o Options) timeout() time.Duration {
	if o.TimeoutMs <= 0 {
		return transport.DefaultTimeout
	}
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// Phase is one concurrency step of the find-ceiling controller.
type Phase struct {
	Index             int     `json:"index"`
	Concurrency       int     `json:"concurrency"`
	Requests          int     `json:"requests"`
	Errors            int     `json:"errors"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	P50               float64 `json:"p50"`
	P99               float64 `json:"p99"`
}

// Result is the outcome of one run.
type Result struct {
	Meta    api.Meta
	Summary *api.SummaryEvent
	Events  []api.RequestEvent

	// Find-ceiling results.
	Phases        []Phase
	Ceiling       int
	CeilingReason string

	OutputPath string
}

// Chart prepares the run's chart data.
func (r *Result) Chart() stats.Chart {
	return stats.Prepare(&r.Meta, r.Events, r.Summary)
}

// buildMeta assembles the first line of the run file.
func buildMeta(opts Options) api.Meta {
	cfg := api.RunConfig{
		Profile:     opts.Profile.Name,
		Transport:   opts.Transport.Kind,
		Command:     opts.Transport.Command,
		URL:         opts.Transport.URL,
		Headers:     opts.Transport.Headers,
		DurationSec: opts.Profile.DurationSec,
		Requests:    opts.Profile.Requests,
		Concurrency: opts.Profile.Concurrency,
		TimeoutMs:   opts.TimeoutMs,
		Shape:       opts.Profile.Shape,
		Seed:        opts.Seed,
		Churn:       opts.Profile.Churn,
		FindCeiling: opts.Profile.FindCeiling != nil,
	}
	for _, m := range opts.Profile.Mix {
		if m.Method == "tools/call" && m.Tool != "" {
			cfg.Tool = m.Tool
			break
		}
	}

	return api.Meta{
		Type:      "meta",
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Version:   meta.Version,
		Repro:     opts.Repro,
		Config:    cfg,
	}
}

// Run executes one run to completion and returns its result. Per-request
// failures never terminate the run; only configuration, handshake, and
// output I/O errors do.
func Run(opts Options) (*Result, error) {
	if opts.Profile.DurationSec <= 0 && opts.Profile.Requests <= 0 {
		return nil, stresserr.New(api.ErrInvalidArgumentValue, nil, "either a duration or a request cap is required")
	}
	if opts.Profile.Concurrency <= 0 {
		opts.Profile.Concurrency = 1
	}
	if opts.Profile.Shape != "" && opts.Profile.FindCeiling == nil && !opts.Profile.Churn {
		if _, ok := LookupShape(opts.Profile.Shape); !ok {
			return nil, stresserr.New(api.ErrInvalidArgumentValue, nil, "unknown shape %q", opts.Profile.Shape)
		}
	}

	runMeta := buildMeta(opts)
	agg, err := record.NewAggregator(opts.OutputPath, runMeta)
	if err != nil {
		return nil, err
	}
	rec := record.NewRecorder(agg)

	if opts.Observer != nil {
		opts.Observer.OnMeta(runMeta)
	}

	result := &Result{Meta: runMeta, OutputPath: opts.OutputPath}

	if opts.Profile.Churn {
		stop := startWindowTicker(rec, opts.Observer)
		runChurn(opts, rec)
		stop()
	} else {
		if err := runWorkload(opts, rec, result); err != nil {
			rec.Abort()
			agg.Wait()
			return nil, err
		}
	}

	rec.Complete()
	summary, err := agg.Wait()
	if err != nil {
		return nil, err
	}
	result.Summary = summary
	result.Events = agg.Events()
	return result, nil
}

// runWorkload performs the handshake and drives either the shaped loop or
// the find-ceiling controller over a single session.
func runWorkload(opts Options, rec *record.Recorder, result *Result) error {
	tr, err := opts.Transport.New(transport.Options{
		Timeout: opts.timeout(),
		Verbose: opts.Verbose,
	})
	if err != nil {
		return err
	}

	cl := client.New(tr)
	cl.Warn = opts.Logf

	if _, err := cl.Connect(); err != nil {
		tr.Close()
		return stresserr.New(api.ErrCommunicate, err, "handshake failed")
	}
	defer cl.Close()

	d, err := newDispatcher(cl, rec, opts)
	if err != nil {
		return err
	}

	stop := startWindowTicker(rec, opts.Observer)
	defer stop()

	if opts.Profile.FindCeiling != nil {
		phases, ceiling, reason := runFindCeiling(opts, rec, d)
		result.Phases = phases
		result.Ceiling = ceiling
		result.CeilingReason = reason
		return nil
	}

	shape, ok := LookupShape(opts.Profile.Shape)
	if !ok {
		shape = shapeConstant
	}
	runShaped(opts, rec, d, shape)
	return nil
}

// runShaped is the batch-per-tick loop: compute the target concurrency,
// launch exactly that many operations, and wait for all of them before the
// next tick.
func runShaped(opts Options, rec *record.Recorder, d *dispatcher, shape Shape) {
	profile := opts.Profile
	start := time.Now()
	duration := float64(profile.DurationSec)

	for {
		total := int(rec.Total())
		if profile.Requests > 0 && total >= profile.Requests {
			return
		}

		t := time.Since(start).Seconds()
		if profile.DurationSec > 0 && t >= duration {
			return
		}

		target := shape(t, duration, profile.Concurrency)
		if profile.Requests > 0 && profile.Requests-total < target {
			target = profile.Requests - total
		}
		if target < 1 {
			return
		}

		rec.SetConcurrency(target)

		var wg sync.WaitGroup
		wg.Add(target)
		for i := 0; i < target; i++ {
			go func() {
				defer wg.Done()
				d.runOne(rec)
			}()
		}
		wg.Wait()
	}
}

// runChurn opens a fresh session per iteration: connect, record the
// handshake as an initialize outcome, ping once, close.
func runChurn(opts Options, rec *record.Recorder) {
	profile := opts.Profile
	rec.SetConcurrency(profile.Concurrency)

	initID := rec.RegisterMethod("initialize")
	pingID := rec.RegisterMethod("ping")

	deadline := time.Now().Add(time.Duration(profile.DurationSec) * time.Second)

	var wg sync.WaitGroup
	wg.Add(profile.Concurrency)
	for i := 0; i < profile.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				tr, err := opts.Transport.New(transport.Options{
					Timeout: opts.timeout(),
					Verbose: opts.Verbose,
				})
				if err != nil {
					// Construction errors are configuration problems and will
					// not resolve by retrying.
					rec.Error(initID, 0, err)
					return
				}

				cl := client.New(tr)
				latency, err := cl.Connect()
				if err != nil {
					rec.Error(initID, latency, err)
					tr.Close()
					continue
				}
				rec.Success(initID, latency)

				if latency, err := cl.Ping(); err != nil {
					rec.Error(pingID, latency, err)
				} else {
					rec.Success(pingID, latency)
				}

				cl.Close()
			}
		}()
	}
	wg.Wait()
}

// startWindowTicker emits one dashboard window per second. It returns a stop
// function that flushes the final partial window.
func startWindowTicker(rec *record.Recorder, obs Observer) func() {
	if obs == nil {
		return func() {}
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	var lastIdx int
	var lastTotal, lastErrors int64

	emit := func() {
		total := rec.Total()
		errors := rec.Errors()
		view := rec.LatenciesSince(lastIdx)
		lastIdx += len(view)

		ls := stats.FromLatencies(view)
		obs.OnWindow(stats.Window{
			T:           rec.Elapsed().Milliseconds(),
			Count:       int(total - lastTotal),
			Errors:      int(errors - lastErrors),
			Mean:        ls.Mean,
			P50:         ls.P50,
			P95:         ls.P95,
			P99:         ls.P99,
			Concurrency: rec.Concurrency(),
		})
		lastTotal, lastErrors = total, errors
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				emit()
			case <-stop:
				emit()
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}
