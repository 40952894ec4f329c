// Package dashboard serves the live view of a run: the HTML page at /, a
// server-sent-event stream at /events, and Prometheus counters at /metrics.
// The server exists for one run and is torn down when the engine completes.
package dashboard

import (
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/dgellow/mcp-stress/lib-stress"
	"github.com/dgellow/mcp-stress/internal/sse"
	"github.com/dgellow/mcp-stress/internal/stats"
)

//go:embed static/dashboard.html
var dashboardHTML []byte

// Server is the live dashboard. It implements engine.MultiObserver.
type Server struct {
	srv *http.Server
	ln  net.Listener

	mu       sync.Mutex
	meta     *api.Meta
	subs     map[chan sse.Event]struct{}
	total    int
	terminal bool

	requests    prometheus.Counter
	errors      prometheus.Counter
	concurrency prometheus.Gauge
	p99         prometheus.Gauge
	registry    *prometheus.Registry
}

// New creates a dashboard server.
func New() *Server {
	s := &Server{
		subs: make(map[chan sse.Event]struct{}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpstress_requests_total",
			Help: "Requests issued by the current run.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpstress_errors_total",
			Help: "Failed requests of the current run.",
		}),
		concurrency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpstress_target_concurrency",
			Help: "Target concurrency currently in force.",
		}),
		p99: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpstress_window_p99_milliseconds",
			Help: "p99 latency of the last one-second window.",
		}),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(s.requests, s.errors, s.concurrency, s.p99)
	return s
}

// Start listens on an ephemeral port and returns the dashboard URL.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	s.ln = ln

	m := http.NewServeMux()
	m.Handle("/", gziphandler.GzipHandler(http.HandlerFunc(s.serveIndex)))
	m.HandleFunc("/events", s.serveEvents)
	m.Handle("/metrics", gziphandler.GzipHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.srv = &http.Server{Handler: m}
	go s.srv.Serve(ln)

	return fmt.Sprintf("http://%s/", ln.Addr()), nil
}

// Shutdown stops the HTTP server and disconnects every subscriber.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.terminal = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.mu.Unlock()

	if s.srv != nil {
		s.srv.Close()
	}
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}

// serveEvents streams dashboard events. The connection ends after the
// terminal event.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan sse.Event, 64)

	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if s.meta != nil {
		if evt, err := makeEvent("meta", s.meta); err == nil {
			ch <- evt
		}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.WriteEvent(w, evt); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		case <-time.After(15 * time.Second):
			// Keep-alive comment so intermediaries do not drop the stream.
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func makeEvent(name string, payload any) (sse.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return sse.Event{}, err
	}
	return sse.Event{Name: name, Data: data}, nil
}

// broadcast fans an event out to every subscriber. Slow subscribers drop
// events rather than blocking the run.
func (s *Server) broadcast(name string, payload any, terminal bool) {
	evt, err := makeEvent(name, payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
		if terminal {
			close(ch)
			delete(s.subs, ch)
		}
	}
	if terminal {
		s.terminal = true
	}
}

// OnMeta implements engine.Observer.
func (s *Server) OnMeta(m api.Meta) {
	s.mu.Lock()
	s.meta = &m
	s.mu.Unlock()
	s.broadcast("meta", m, false)
}

// OnWindow implements engine.Observer.
func (s *Server) OnWindow(w stats.Window) {
	s.requests.Add(float64(w.Count))
	s.errors.Add(float64(w.Errors))
	s.concurrency.Set(float64(w.Concurrency))
	s.p99.Set(w.P99)

	s.broadcast("window", w, false)
}

// OnMessage implements engine.Observer.
func (s *Server) OnMessage(msg string) {
	s.broadcast("message", map[string]string{"text": msg}, false)
}

// OnNewRun implements engine.MultiObserver.
func (s *Server) OnNewRun(index, total int) {
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()

	if total > 1 {
		s.broadcast("new-run", map[string]int{"index": index, "total": total}, false)
	}
}

// OnRunComplete implements engine.MultiObserver. A single run terminates the
// stream with a complete event; repeated runs keep it open until
// all-complete.
func (s *Server) OnRunComplete(index int, chart stats.Chart) {
	s.mu.Lock()
	single := s.total <= 1
	s.mu.Unlock()

	if single {
		s.broadcast("complete", chart, true)
		return
	}
	s.broadcast("run-complete", map[string]any{"index": index, "prepared": chart}, false)
}

// OnAllComplete implements engine.MultiObserver.
func (s *Server) OnAllComplete(agg stats.MultiRunAggregate) {
	s.broadcast("all-complete", map[string]any{"summary": agg}, true)
}
