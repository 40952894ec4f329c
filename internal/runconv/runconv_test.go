package runconv_test

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/runconv"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

const sampleRun = `{"type":"meta","runId":"r1","startedAt":"2025-06-01T12:00:00Z","config":{"transport":"stdio","concurrency":2,"timeoutMs":30000}}
{"t":1,"method":"ping","latencyMs":1.5,"ok":true,"concurrency":2}
{"t":3,"method":"tools/call:echo","latencyMs":20,"ok":false,"error":"internal","errorCategory":"server","errorCode":-32603,"concurrency":2,"phase":1}
{"type":"summary","durationMs":3,"totalRequests":2,"totalErrors":1,"requestsPerSecond":666.67,"errorRate":50,"overall":{"min":1.5,"max":20,"mean":10.75,"p50":10.75,"p95":19.08,"p99":19.82},"byMethod":{}}
`

func scanner(input string) *api.RunScanner {
	return api.NewRunScanner(io.NopCloser(strings.NewReader(input)))
}

func TestToCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := runconv.ToCSV(&buf, scanner(sampleRun)); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (header + 2 events)", len(rows))
	}
	if rows[0][0] != "t" || rows[0][1] != "method" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "ping" || rows[1][3] != "true" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][4] != "server" || rows[2][5] != "-32603" || rows[2][8] != "1" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := runconv.ToJSON(&buf, scanner(sampleRun)); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var events []api.RequestEvent
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Method != "ping" || events[1].ErrorCode != -32603 {
		t.Errorf("events = %+v", events)
	}
}

func TestToXlsx(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := runconv.ToXlsx(&buf, scanner(sampleRun), created); err != nil {
		t.Fatalf("ToXlsx: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("ToXlsx wrote nothing")
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Errorf("output does not look like a spreadsheet: %q", buf.Bytes()[:4])
	}
}

func TestToXlsxEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	meta := `{"type":"meta","runId":"r1","startedAt":"2025-06-01T12:00:00Z","config":{"transport":"stdio","concurrency":1,"timeoutMs":1}}` + "\n"
	if err := runconv.ToXlsx(&buf, scanner(meta), time.Now()); err == nil {
		t.Error("ToXlsx accepted a run without events")
	}
}
