package record

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/goccy/go-json"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/stats"
	"github.com/dgellow/mcp-stress/internal/stresserr"
	"github.com/dgellow/mcp-stress/internal/transport"
)

const (
	writerBufSize       = 64 * 1024
	writerFlushInterval = 100 * time.Millisecond
)

// aggregator inbox messages. Malformed inputs are programming errors, so the
// worker panics on anything it does not understand.
type (
	msgMethod struct {
		id   int32
		name string
	}
	msgErrorMsg struct {
		category transport.Category
		code     int32
		msg      string
	}
	msgBatch struct {
		records []Raw
	}
	msgComplete struct{}
	msgAbort    struct{}
)

// Aggregator runs off the hot path. It owns the method-handle map and the
// error-message dictionary, serialises the run file, and derives the final
// summary.
type Aggregator struct {
	inbox chan any
	done  chan struct{}

	path   string
	file   *os.File
	writer *bufio.Writer

	methods map[int32]string
	errMsgs map[errKey]string

	events    []Raw
	total     int
	errors    int
	lastT     int64
	byCat     map[string]int
	completed bool

	summary *api.SummaryEvent
	err     error
}

// NewAggregator starts the aggregation worker. If outputPath is empty, no
// file is written but the summary is still computed. The meta event is
// serialised as the first line.
func NewAggregator(outputPath string, meta api.Meta) (*Aggregator, error) {
	a := &Aggregator{
		inbox:   make(chan any, 256),
		done:    make(chan struct{}),
		path:    outputPath,
		methods: make(map[int32]string),
		errMsgs: make(map[errKey]string),
		byCat:   make(map[string]int),
	}

	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, stresserr.New(api.ErrIO, err, "failed to open output file")
		}
		a.file = f
		a.writer = bufio.NewWriterSize(f, writerBufSize)
	}

	if err := a.writeLine(meta); err != nil {
		if a.file != nil {
			a.file.Close()
		}
		return nil, err
	}

	go a.loop()
	return a, nil
}

func (a *Aggregator) post(msg any) {
	select {
	case <-a.done:
	default:
		a.inbox <- msg
	}
}

func (a *Aggregator) loop() {
	defer close(a.done)

	ticker := time.NewTicker(writerFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flushWriter()

		case msg := <-a.inbox:
			switch m := msg.(type) {
			case msgMethod:
				a.methods[m.id] = m.name

			case msgErrorMsg:
				a.errMsgs[errKey{category: m.category, code: m.code}] = m.msg

			case msgBatch:
				for _, rec := range m.records {
					a.handleRecord(rec)
				}

			case msgComplete:
				a.finish(true)
				return

			case msgAbort:
				a.finish(false)
				return

			default:
				panic(fmt.Sprintf("aggregator: unexpected message %T", msg))
			}
		}
	}
}

// handleRecord appends one record: derived counters first, then the
// serialised line. Records are written in arrival order; the file is never
// re-sorted.
func (a *Aggregator) handleRecord(rec Raw) {
	a.events = append(a.events, rec)
	a.total++
	if !rec.OK {
		a.errors++
		a.byCat[rec.Category.String()]++
	}
	if rec.T > a.lastT {
		a.lastT = rec.T
	}

	a.writeLine(a.toEvent(rec))
}

// toEvent resolves handles into the wire-level event.
func (a *Aggregator) toEvent(rec Raw) api.RequestEvent {
	e := api.RequestEvent{
		T:           rec.T,
		Method:      a.methods[rec.MethodID],
		LatencyMs:   rec.LatencyMs,
		OK:          rec.OK,
		Concurrency: int(rec.Concurrency),
		Phase:       int(rec.Phase),
	}
	if !rec.OK {
		e.ErrorCategory = rec.Category.String()
		e.ErrorCode = int(rec.Code)
		e.Error = a.errMsgs[errKey{category: rec.Category, code: rec.Code}]
	}
	return e
}

func (a *Aggregator) writeLine(v any) error {
	if a.err != nil || a.writer == nil {
		return a.err
	}

	data, err := json.Marshal(v)
	if err != nil {
		a.err = stresserr.New(api.ErrIO, err, "failed to encode event")
		return a.err
	}
	if _, err := a.writer.Write(append(data, '\n')); err != nil {
		a.err = stresserr.New(api.ErrIO, err, "failed to write output file")
		return a.err
	}
	return nil
}

func (a *Aggregator) flushWriter() {
	if a.writer == nil || a.err != nil {
		return
	}
	if err := a.writer.Flush(); err != nil {
		a.err = stresserr.New(api.ErrIO, err, "failed to write output file")
	}
}

// finish computes the summary, appends it when the run completed, and closes
// the file.
func (a *Aggregator) finish(complete bool) {
	if complete {
		s := a.computeSummary()
		a.summary = &s
		a.writeLine(s)
		a.completed = true
	}

	a.flushWriter()
	if a.file != nil {
		if err := a.file.Close(); err != nil && a.err == nil {
			a.err = stresserr.New(api.ErrIO, err, "failed to close output file")
		}
	}
}

func (a *Aggregator) computeSummary() api.SummaryEvent {
	summary := api.SummaryEvent{
		Type:     "summary",
		ByMethod: make(map[string]api.MethodStats),
	}

	if a.total == 0 {
		return summary
	}

	latencies := make([]float64, 0, len(a.events))
	byMethod := make(map[string][]float64)
	methodErrors := make(map[string]int)

	for _, rec := range a.events {
		name := a.methods[rec.MethodID]
		latencies = append(latencies, rec.LatencyMs)
		byMethod[name] = append(byMethod[name], rec.LatencyMs)
		if !rec.OK {
			methodErrors[name]++
		}
	}

	summary.DurationMs = a.lastT
	summary.TotalRequests = a.total
	summary.TotalErrors = a.errors
	summary.Overall = stats.FromLatencies(latencies)
	for name, ls := range byMethod {
		summary.ByMethod[name] = api.MethodStats{
			Count:   len(ls),
			Errors:  methodErrors[name],
			Latency: stats.FromLatencies(ls),
		}
	}
	if len(a.byCat) > 0 {
		summary.ErrorCategories = a.byCat
	}

	// The file definition of throughput: requests over the span of recorded
	// events, not wall-clock elapsed, so round trips are stable.
	if a.lastT > 0 {
		summary.RequestsPerSecond = float64(a.total) / float64(a.lastT) * 1000
	}
	summary.ErrorRate = float64(a.errors) / float64(a.total) * 100

	return summary
}

// Wait blocks until the worker drained its inbox after Complete or Abort,
// and returns the summary (nil for aborted runs) and any fatal write error.
func (a *Aggregator) Wait() (*api.SummaryEvent, error) {
	<-a.done
	return a.summary, a.err
}

// Events resolves the recorded rows into wire-level events. Only valid after
// Wait returned.
func (a *Aggregator) Events() []api.RequestEvent {
	select {
	case <-a.done:
	default:
		return nil
	}
	events := make([]api.RequestEvent, len(a.events))
	for i, rec := range a.events {
		events[i] = a.toEvent(rec)
	}
	return events
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
