package transport_test

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/transport"
)

// TestHelperProcess acts as a line-delimited JSON-RPC server on stdio when
// the test binary is re-executed as a subprocess.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	out := bufio.NewWriter(os.Stdout)
	respond := func(v any) {
		data, _ := json.Marshal(v)
		out.Write(append(data, '\n'))
		out.Flush()
	}

	if os.Getenv("HELPER_BANNER") == "1" {
		fmt.Println("mcp helper server starting up")
	}
	fmt.Fprintln(os.Stderr, "helper: ready")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req struct {
			ID     *int64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}

		switch req.Method {
		case "initialize":
			respond(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"result": map[string]any{
					"protocolVersion": "2025-03-26",
					"capabilities":    map[string]any{},
					"serverInfo":      map[string]any{"name": "helper", "version": "0.0.1"},
				},
			})
			respond(map[string]any{
				"jsonrpc": "2.0", "method": "notifications/message",
				"params": map[string]any{"level": "info", "data": "hello"},
			})
		case "ping":
			respond(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{}})
		case "fail":
			respond(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32603, "message": "internal"},
			})
		case "hang":
			// Never respond; the client's timeout should fire.
		case "notifications/initialized":
			// Notification; nothing to answer.
		}
	}
}

func helperCommand(mode map[string]string) ([]string, map[string]string) {
	env := map[string]string{"GO_WANT_HELPER_PROCESS": "1"}
	for k, v := range mode {
		env[k] = v
	}
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--"}, env
}

func connectStdio(t *testing.T, env map[string]string, opts transport.Options) *transport.Stdio {
	t.Helper()

	command, fullEnv := helperCommand(env)
	s := transport.NewStdio(command, fullEnv, opts)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStdioRequest(t *testing.T) {
	s := connectStdio(t, nil, transport.Options{Timeout: 5 * time.Second})

	result, latency, err := s.Request("initialize", map[string]any{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if latency < 0 {
		t.Errorf("latency = %f, want >= 0", latency)
	}
	if !strings.Contains(string(result), `"helper"`) {
		t.Errorf("unexpected result: %s", result)
	}

	if _, _, err := s.Request("ping", nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestStdioSkipsBanner(t *testing.T) {
	var mu sync.Mutex
	var notes []string
	opts := transport.Options{
		Timeout: 5 * time.Second,
		Verbose: func(format string, args ...interface{}) {
			mu.Lock()
			notes = append(notes, fmt.Sprintf(format, args...))
			mu.Unlock()
		},
	}

	s := connectStdio(t, map[string]string{"HELPER_BANNER": "1"}, opts)

	if _, _, err := s.Request("initialize", map[string]any{}); err != nil {
		t.Fatalf("Request after banner: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, n := range notes {
		if strings.Contains(n, "starting up") {
			found = true
		}
	}
	if !found {
		t.Error("banner line was not surfaced in verbose mode")
	}
}

func TestStdioNotification(t *testing.T) {
	s := connectStdio(t, nil, transport.Options{Timeout: 5 * time.Second})

	got := make(chan string, 1)
	s.OnNotification(func(method string, params json.RawMessage) {
		select {
		case got <- method:
		default:
		}
	})

	if _, _, err := s.Request("initialize", map[string]any{}); err != nil {
		t.Fatalf("Request: %v", err)
	}

	select {
	case method := <-got:
		if method != "notifications/message" {
			t.Errorf("notification method = %q", method)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestStdioServerError(t *testing.T) {
	s := connectStdio(t, nil, transport.Options{Timeout: 5 * time.Second})

	_, _, err := s.Request("fail", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	e := transport.Classify(err)
	if e.Category != transport.CategoryServer {
		t.Errorf("Category = %s, want server", e.Category)
	}
	if e.Code != -32603 {
		t.Errorf("Code = %d, want -32603", e.Code)
	}
}

func TestStdioTimeout(t *testing.T) {
	s := connectStdio(t, nil, transport.Options{Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, _, err := s.Request("hang", nil)
	if err == nil {
		t.Fatal("expected a timeout")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
	e := transport.Classify(err)
	if e.Category != transport.CategoryTimeout {
		t.Errorf("Category = %s, want timeout", e.Category)
	}
}

func TestStdioCloseRejectsPending(t *testing.T) {
	s := connectStdio(t, nil, transport.Options{Timeout: time.Minute})

	errCh := make(chan error, 1)
	go func() {
		_, _, err := s.Request("hang", nil)
		errCh <- err
	}()

	// Give the request a moment to land in the pending table.
	time.Sleep(100 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("pending request resolved without error on close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request leaked across close")
	}

	if !s.Closed() {
		t.Error("Closed() = false after Close")
	}

	// Second close is a no-op.
	s.Close()

	if _, _, err := s.Request("ping", nil); err == nil {
		t.Error("Request succeeded on a closed transport")
	}
}
