// Package transport carries JSON-RPC messages to an MCP server over one of
// three framings: a subprocess with line-delimited JSON on stdio, the legacy
// HTTP+SSE pair, or the streamable HTTP transport.
package transport

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/jsonrpc"
)

// DefaultTimeout is the per-request deadline when the run does not set one.
const DefaultTimeout = 30 * time.Second

// NotificationHandler receives server-initiated notifications.
type NotificationHandler func(method string, params json.RawMessage)

// Transport is one MCP session. It is created, connects once, carries many
// requests, and closes once.
type Transport interface {
	// Connect establishes per-session state. It must be called before any
	// request.
	Connect() error

	// Request sends a JSON-RPC request with a fresh id, awaits its matching
	// response, and returns the result and the observed latency in
	// milliseconds. A failure is always a classified *Error.
	Request(method string, params any) (json.RawMessage, float64, error)

	// Notify sends a notification; no response is expected.
	Notify(method string, params any) error

	// OnNotification registers the handler for server-initiated
	// notifications. Only one handler is supported; the last one wins.
	OnNotification(NotificationHandler)

	// Close terminates the session and rejects every pending request.
	// Closing twice is a no-op.
	Close() error

	// Closed reports whether Close was called.
	Closed() bool
}

// Options configures a transport.
type Options struct {
	// Timeout is the per-request deadline, measured from the outbound write.
	Timeout time.Duration

	// Verbose receives diagnostic lines, such as non-JSON output from a
	// subprocess. Nil means silent.
	Verbose func(format string, args ...interface{})
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) verbosef(format string, args ...interface{}) {
	if o.Verbose != nil {
		o.Verbose(format, args...)
	}
}

// round2 rounds a latency to two decimals. Downstream percentile computations
// assume the rounded values are what the run file will contain.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// conn holds the state every transport variant shares: id allocation, the
// pending-request table, notification fan-out, and the closed bit.
type conn struct {
	opts    Options
	pending pendingTable
	nextID  atomic.Int64
	closed  atomic.Bool

	notifyCh  chan notification
	notifyNil chan struct{}

	handlerMu sync.RWMutex
	handler   NotificationHandler
}

type notification struct {
	method string
	params json.RawMessage
}

func newConn(opts Options) *conn {
	c := &conn{
		opts:      opts,
		notifyCh:  make(chan notification, 128),
		notifyNil: make(chan struct{}),
	}
	c.pending.init()
	go c.notifyLoop()
	return c
}

// notifyLoop routes notifications off the reader task so a slow handler never
// blocks response dispatch.
func (c *conn) notifyLoop() {
	for {
		select {
		case n := <-c.notifyCh:
			c.handlerMu.RLock()
			h := c.handler
			c.handlerMu.RUnlock()
			if h != nil {
				h(n.method, n.params)
			}
		case <-c.notifyNil:
			return
		}
	}
}

func (c *conn) OnNotification(h NotificationHandler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

func (c *conn) Closed() bool {
	return c.closed.Load()
}

// dispatch routes one incoming message: responses complete their waiter,
// notifications go to the handler queue, anything else is dropped with a
// verbose note.
func (c *conn) dispatch(msg *jsonrpc.Message) {
	switch {
	case msg.IsResponse():
		if !c.pending.complete(*msg.ID, msg) {
			c.opts.verbosef("dropping response for unknown id %d", *msg.ID)
		}
	case msg.IsNotification():
		select {
		case c.notifyCh <- notification{method: msg.Method, params: msg.Params}:
		default:
			c.opts.verbosef("notification queue full; dropping %s", msg.Method)
		}
	default:
		c.opts.verbosef("dropping unexpected message (server-initiated request?)")
	}
}

// shutdown rejects all pending requests and stops the notification loop.
// It returns false if the connection was already shut down.
func (c *conn) shutdown() bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	c.pending.drain(newError(CategoryClient, -1, "transport closing"))
	close(c.notifyNil)
	return true
}

// call runs the shared request path: allocate an id, register a waiter, hand
// the encoded frame to send, and await the matching response. The latency is
// measured from just before send to the arrival of the response.
func (c *conn) call(method string, params any, send func([]byte, int64) error) (json.RawMessage, float64, error) {
	if c.closed.Load() {
		return nil, 0, newError(CategoryClient, -1, "transport is closed")
	}

	id := c.nextID.Add(1)
	data, err := jsonrpc.NewRequest(id, method, params).Encode()
	if err != nil {
		return nil, 0, Classify(err)
	}

	w, err := c.pending.register(id, c.opts.timeout())
	if err != nil {
		return nil, 0, Classify(err)
	}

	w.start = time.Now()
	if err := send(data, id); err != nil {
		c.pending.remove(id)
		e := Classify(err)
		e.LatencyMs = round2(float64(time.Since(w.start)) / float64(time.Millisecond))
		return nil, e.LatencyMs, e
	}

	res := <-w.ch
	latency := round2(float64(res.at.Sub(w.start)) / float64(time.Millisecond))

	if res.err != nil {
		res.err.LatencyMs = latency
		return nil, latency, res.err
	}
	if res.msg.Error != nil {
		e := &Error{
			Category:  CategoryServer,
			Code:      res.msg.Error.Code,
			Message:   res.msg.Error.Message,
			Data:      res.msg.Error.Data,
			LatencyMs: latency,
		}
		return nil, latency, e
	}
	return res.msg.Result, latency, nil
}

// notifyFrame encodes a notification frame.
func notifyFrame(method string, params any) ([]byte, error) {
	return jsonrpc.NewNotification(method, params).Encode()
}
