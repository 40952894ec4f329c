// Package record implements the per-request accounting path: a Recorder
// that the engine's workers call on the hot path, and an Aggregator worker
// that serialises the run file and derives the summary off the hot path.
package record

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgellow/mcp-stress/internal/transport"
)

// flushInterval is the cadence at which buffered records are handed to the
// aggregator, amortising the cross-goroutine hand-off.
const flushInterval = 50 * time.Millisecond

// Raw is one request outcome as produced on the hot path. It carries the
// interned method handle, never the string.
type Raw struct {
	T           int64
	MethodID    int32
	LatencyMs   float64
	OK          bool
	Category    transport.Category
	Code        int32
	Concurrency int32
	Phase       int32
}

type errKey struct {
	category transport.Category
	code     int32
}

// Recorder buffers request outcomes in memory and dispatches them to the
// Aggregator in batches. All methods are safe for concurrent use.
type Recorder struct {
	agg   *Aggregator
	start time.Time

	mu        sync.Mutex
	methods   map[string]int32
	latencies []float64
	pending   []Raw
	seenErrs  map[errKey]bool

	total  atomic.Int64
	errors atomic.Int64

	concurrency atomic.Int32
	phase       atomic.Int32

	flushStop chan struct{}
	flushDone chan struct{}
	completed atomic.Bool
}

// NewRecorder creates a Recorder feeding the given aggregator and starts the
// batching timer. The aggregator may be nil for runs without output.
func NewRecorder(agg *Aggregator) *Recorder {
	r := &Recorder{
		agg:       agg,
		start:     time.Now(),
		methods:   make(map[string]int32),
		latencies: make([]float64, 0, 16*1024),
		pending:   make([]Raw, 0, 1024),
		seenErrs:  make(map[errKey]bool),
		flushStop: make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	r.phase.Store(-1)
	go r.flushLoop()
	return r
}

func (r *Recorder) flushLoop() {
	defer close(r.flushDone)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.flushStop:
			r.flush()
			return
		}
	}
}

// flush hands the pending batch to the aggregator.
func (r *Recorder) flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.pending
	r.pending = make([]Raw, 0, cap(batch))
	r.mu.Unlock()

	if r.agg != nil {
		r.agg.post(msgBatch{records: batch})
	}
}

// RegisterMethod interns a method name and returns its handle. Idempotent;
// the aggregator learns the name before any record references it.
func (r *Recorder) RegisterMethod(name string) int32 {
	r.mu.Lock()
	id, ok := r.methods[name]
	if !ok {
		id = int32(len(r.methods))
		r.methods[name] = id
		if r.agg != nil {
			r.agg.post(msgMethod{id: id, name: name})
		}
	}
	r.mu.Unlock()
	return id
}

// SetConcurrency publishes the target concurrency in force for subsequent
// records.
func (r *Recorder) SetConcurrency(n int) {
	r.concurrency.Store(int32(n))
}

// SetPhase publishes the find-ceiling phase index for subsequent records;
// -1 means not in a phased run.
func (r *Recorder) SetPhase(i int) {
	r.phase.Store(int32(i))
}

// Success records a successful request.
func (r *Recorder) Success(methodID int32, latencyMs float64) {
	r.record(Raw{
		MethodID:  methodID,
		LatencyMs: round2(latencyMs),
		OK:        true,
	})
	r.total.Add(1)
}

// Error classifies err, records a failure, and the first time a given
// (category, code) pair is seen, forwards its message to the aggregator.
func (r *Recorder) Error(methodID int32, latencyMs float64, err error) {
	e := transport.Classify(err)

	r.mu.Lock()
	key := errKey{category: e.Category, code: int32(e.Code)}
	if !r.seenErrs[key] {
		r.seenErrs[key] = true
		if r.agg != nil {
			r.agg.post(msgErrorMsg{category: e.Category, code: int32(e.Code), msg: e.Message})
		}
	}
	r.mu.Unlock()

	r.record(Raw{
		MethodID:  methodID,
		LatencyMs: round2(latencyMs),
		Category:  e.Category,
		Code:      int32(e.Code),
	})
	r.total.Add(1)
	r.errors.Add(1)
}

// record stamps the row and pushes it onto the pending batch. One wall-clock
// read per record; millisecond resolution is sufficient.
func (r *Recorder) record(raw Raw) {
	raw.T = time.Since(r.start).Milliseconds()
	raw.Concurrency = r.concurrency.Load()
	raw.Phase = r.phase.Load()

	r.mu.Lock()
	r.latencies = append(r.latencies, raw.LatencyMs)
	r.pending = append(r.pending, raw)
	r.mu.Unlock()
}

// LatenciesSince returns a non-copying view of the latency vector from
// startIdx to the current end. The view must not be mutated.
func (r *Recorder) LatenciesSince(startIdx int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if startIdx < 0 || startIdx > len(r.latencies) {
		return nil
	}
	return r.latencies[startIdx:len(r.latencies):len(r.latencies)]
}

// LatencyCount returns the current length of the latency vector.
func (r *Recorder) LatencyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.latencies)
}

// Concurrency returns the last published target concurrency.
func (r *Recorder) Concurrency() int {
	return int(r.concurrency.Load())
}

// Total returns the number of recorded requests.
func (r *Recorder) Total() int64 { return r.total.Load() }

// Errors returns the number of recorded failures.
func (r *Recorder) Errors() int64 { return r.errors.Load() }

// Elapsed returns the time since the recorder was created.
func (r *Recorder) Elapsed() time.Duration { return time.Since(r.start) }

// Complete flushes buffered records and signals the aggregator that the run
// finished. Calling it twice is a no-op.
func (r *Recorder) Complete() {
	if !r.completed.CompareAndSwap(false, true) {
		return
	}
	close(r.flushStop)
	<-r.flushDone
	if r.agg != nil {
		r.agg.post(msgComplete{})
	}
}

// Abort flushes buffered records and tears the aggregator down without a
// summary line, for runs that failed before completing.
func (r *Recorder) Abort() {
	if !r.completed.CompareAndSwap(false, true) {
		return
	}
	close(r.flushStop)
	<-r.flushDone
	if r.agg != nil {
		r.agg.post(msgAbort{})
	}
}
