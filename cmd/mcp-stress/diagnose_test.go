package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestDiagnoseCommand(t *testing.T) {
	srv := newCLITestServer(t)

	var stdout, stderr bytes.Buffer
	cmd := &DiagnoseCommand{OutStream: &stdout, ErrStream: &stderr}
	code := cmd.Run([]string{"mcp-stress", "diagnose", "--url", srv.URL})
	if code != 0 {
		t.Fatalf("exit code = %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"OK    initialize", "tools/list", "cli-test-server"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnose output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "FAIL") {
		t.Errorf("unexpected FAIL:\n%s", out)
	}
}

func TestDiagnoseConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	cmd := &DiagnoseCommand{OutStream: &stdout, ErrStream: &stderr}
	code := cmd.Run([]string{"mcp-stress", "diagnose", "--timeout", "2000", "--url", srv.URL})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "FAIL") {
		t.Errorf("no FAIL line:\n%s", stdout.String())
	}
}

func TestDiscoverCommand(t *testing.T) {
	srv := newCLITestServer(t)

	var stdout, stderr bytes.Buffer
	cmd := &DiscoverCommand{OutStream: &stdout, ErrStream: &stderr}
	code := cmd.Run([]string{"mcp-stress", "discover", "--url", srv.URL})
	if code != 0 {
		t.Fatalf("exit code = %d: %s", code, stderr.String())
	}

	var result map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	if _, ok := result["serverInfo"]; !ok {
		t.Errorf("missing serverInfo: %v", result)
	}
	if _, ok := result["tools"]; !ok {
		t.Errorf("missing tools: %v", result)
	}
}

func TestDiscoverWithJQ(t *testing.T) {
	srv := newCLITestServer(t)

	var stdout, stderr bytes.Buffer
	cmd := &DiscoverCommand{OutStream: &stdout, ErrStream: &stderr}
	code := cmd.Run([]string{"mcp-stress", "discover", "--jq", ".tools[].name", "--url", srv.URL})
	if code != 0 {
		t.Fatalf("exit code = %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "lookup") {
		t.Errorf("jq output = %q", stdout.String())
	}
}

func TestDiscoverConnectionFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := &DiscoverCommand{OutStream: &stdout, ErrStream: &stderr}
	code := cmd.Run([]string{"mcp-stress", "discover", "--timeout", "1000", "--url", "http://127.0.0.1:1"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
