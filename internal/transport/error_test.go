package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/jsonrpc"
)

func TestClassify(t *testing.T) {
	var parseErr error
	var m map[string]any
	parseErr = json.Unmarshal([]byte(`{broken`), &m)
	if parseErr == nil {
		t.Fatal("expected a parse error to classify")
	}

	tests := []struct {
		name     string
		err      error
		category Category
		code     int
	}{
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			category: CategoryTimeout,
			code:     -1,
		},
		{
			name:     "timeout by name",
			err:      errors.New("TimeoutError: no response"),
			category: CategoryTimeout,
			code:     -1,
		},
		{
			name:     "malformed json",
			err:      parseErr,
			category: CategoryProtocol,
			code:     CodeParseError,
		},
		{
			name:     "server error reply",
			err:      &jsonrpc.Error{Code: -32603, Message: "internal"},
			category: CategoryServer,
			code:     -32603,
		},
		{
			name:     "dial failure",
			err:      &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			category: CategoryNetwork,
			code:     -1,
		},
		{
			name:     "dns failure",
			err:      &net.DNSError{Err: "no such host", Name: "nope.invalid"},
			category: CategoryNetwork,
			code:     -1,
		},
		{
			name:     "anything else",
			err:      errors.New("bad arguments"),
			category: CategoryClient,
			code:     -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify(tt.err)
			if e.Category != tt.category {
				t.Errorf("Category = %s, want %s", e.Category, tt.category)
			}
			if e.Code != tt.code {
				t.Errorf("Code = %d, want %d", e.Code, tt.code)
			}
			if e.Message == "" {
				t.Error("Message is empty")
			}
		})
	}
}

func TestClassifyPassesThrough(t *testing.T) {
	orig := &Error{Category: CategoryServer, Code: -32000, Message: "boom"}
	wrapped := fmt.Errorf("request failed: %w", orig)
	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify did not pass the classified error through: %v", got)
	}
}

func TestCategoryString(t *testing.T) {
	for want, c := range map[string]Category{
		"timeout":  CategoryTimeout,
		"protocol": CategoryProtocol,
		"server":   CategoryServer,
		"network":  CategoryNetwork,
		"client":   CategoryClient,
	} {
		if c.String() != want {
			t.Errorf("%d.String() = %q, want %q", c, c.String(), want)
		}
		if ParseCategory(want) != c {
			t.Errorf("ParseCategory(%q) = %v, want %v", want, ParseCategory(want), c)
		}
	}
}
