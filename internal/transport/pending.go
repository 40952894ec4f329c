package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/dgellow/mcp-stress/internal/jsonrpc"
)

var errTableClosed = errors.New("pending table is closed")

// waiterResult is what a waiter receives: either a response message or a
// classified failure, plus the arrival time used for the latency measurement.
type waiterResult struct {
	msg *jsonrpc.Message
	err *Error
	at  time.Time
}

// waiter is one in-flight request.
type waiter struct {
	ch    chan waiterResult
	timer *time.Timer

	// start is set by the caller immediately before the outbound write.
	start time.Time
}

// pendingTable maps request ids to waiters. It is the only hot shared
// structure per transport; all access is mutex-guarded.
//
// Invariants: a waiter is completed at most once (whoever removes it from the
// table completes it), and after drain the table is empty with every waiter
// rejected.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[int64]*waiter
	closed  bool
}

func (t *pendingTable) init() {
	t.waiters = make(map[int64]*waiter)
}

// register inserts a waiter for id and arms its timeout.
func (t *pendingTable) register(id int64, timeout time.Duration) (*waiter, error) {
	w := &waiter{ch: make(chan waiterResult, 1)}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errTableClosed
	}
	t.waiters[id] = w
	t.mu.Unlock()

	w.timer = time.AfterFunc(timeout, func() {
		t.fail(id, newError(CategoryTimeout, -1, "no response within %s", timeout))
	})
	return w, nil
}

// take removes and returns the waiter for id, cancelling its timer.
func (t *pendingTable) take(id int64) *waiter {
	t.mu.Lock()
	w, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	return w
}

// remove drops the waiter for id without completing it. Used when the
// outbound write itself failed.
func (t *pendingTable) remove(id int64) {
	t.take(id)
}

// complete delivers a response to the waiter for id. It reports whether a
// waiter existed.
func (t *pendingTable) complete(id int64, msg *jsonrpc.Message) bool {
	w := t.take(id)
	if w == nil {
		return false
	}
	w.ch <- waiterResult{msg: msg, at: time.Now()}
	return true
}

// fail rejects the waiter for id with a classified error.
func (t *pendingTable) fail(id int64, e *Error) bool {
	w := t.take(id)
	if w == nil {
		return false
	}
	w.ch <- waiterResult{err: e, at: time.Now()}
	return true
}

// drain rejects every waiter and marks the table closed. Later register calls
// fail.
func (t *pendingTable) drain(e *Error) {
	t.mu.Lock()
	t.closed = true
	waiters := t.waiters
	t.waiters = make(map[int64]*waiter)
	t.mu.Unlock()

	for _, w := range waiters {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.ch <- waiterResult{err: e, at: time.Now()}
	}
}

// size returns the number of in-flight requests.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
