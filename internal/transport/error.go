package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/jsonrpc"
)

// Category classifies a failed request.
type Category int

const (
	CategoryNone Category = iota
	CategoryTimeout
	CategoryProtocol
	CategoryServer
	CategoryNetwork
	CategoryClient
)

var categoryNames = []string{"", "timeout", "protocol", "server", "network", "client"}

// String implements fmt.Stringer.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "client"
	}
	return categoryNames[c]
}

// ParseCategory converts a category name back to its Category. Unknown names
// map to CategoryClient.
func ParseCategory(s string) Category {
	for i, name := range categoryNames[1:] {
		if name == s {
			return Category(i + 1)
		}
	}
	return CategoryClient
}

// CodeParseError is the JSON-RPC code recorded for malformed JSON on the
// receive side.
const CodeParseError = -32700

// Error is a classified request failure.
type Error struct {
	Category Category
	Code     int
	Message  string
	Data     json.RawMessage

	// LatencyMs is whatever latency the transport observed before the
	// failure, or 0.
	LatencyMs float64
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

func newError(category Category, code int, format string, args ...interface{}) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Classify wraps an arbitrary error into a classified Error.
//
// The rules, in order: an already classified error passes through; a
// JSON-RPC error reply becomes "server" with the reply's code; deadline
// and timeout errors become "timeout" with code -1; JSON decode failures
// become "protocol" with code -32700; connect/DNS/TLS/reset failures become
// "network" with code -1; everything else is "client".
func Classify(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}

	var je *jsonrpc.Error
	if errors.As(err, &je) {
		return &Error{Category: CategoryServer, Code: je.Code, Message: je.Message, Data: je.Data}
	}

	if isTimeout(err) {
		return &Error{Category: CategoryTimeout, Code: -1, Message: err.Error()}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Category: CategoryProtocol, Code: CodeParseError, Message: err.Error()}
	}

	if isNetwork(err) {
		return &Error{Category: CategoryNetwork, Code: -1, Message: err.Error()}
	}

	return &Error{Category: CategoryClient, Code: -1, Message: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func isNetwork(err error) bool {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var addrErr *net.AddrError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.As(err, &addrErr) {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"connection refused", "connection reset", "tls", "no such host", "broken pipe", "eof"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
