package transport_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/transport"
)

// legacySSEServer implements the two-URL server side: a GET event stream
// that first announces the endpoint, and a POST endpoint whose replies
// travel back on the stream.
type legacySSEServer struct {
	srv      *httptest.Server
	outgoing chan string

	// endpointPath lets tests break the origin check.
	endpointOverride string
}

func newLegacySSEServer(t *testing.T) *legacySSEServer {
	t.Helper()

	s := &legacySSEServer{outgoing: make(chan string, 16)}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		endpoint := "/messages?sessionId=test-session"
		if s.endpointOverride != "" {
			endpoint = s.endpointOverride
		}
		fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
		w.(http.Flusher).Flush()

		for {
			select {
			case msg := <-s.outgoing:
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sessionId") != "test-session" {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)

		var req struct {
			ID     *int64 `json:"id"`
			Method string `json:"method"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		if req.ID != nil {
			switch req.Method {
			case "fail":
				s.outgoing <- fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, *req.ID)
			default:
				s.outgoing <- fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"method":%q}}`, *req.ID, req.Method)
			}
		}
		w.WriteHeader(http.StatusAccepted)
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *legacySSEServer) notify(method string) {
	s.outgoing <- fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":{}}`, method)
}

func TestSSERequestResponse(t *testing.T) {
	srv := newLegacySSEServer(t)

	tr := transport.NewSSE(srv.srv.URL+"/sse", nil, transport.Options{Timeout: 5 * time.Second})
	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	result, latency, err := tr.Request("ping", nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if latency < 0 {
		t.Errorf("latency = %f", latency)
	}
	if !strings.Contains(string(result), `"ping"`) {
		t.Errorf("unexpected result: %s", result)
	}

	// Responses match by id even when several are in flight.
	for i := 0; i < 5; i++ {
		if _, _, err := tr.Request("ping", nil); err != nil {
			t.Fatalf("Request %d: %v", i, err)
		}
	}
}

func TestSSEServerErrorReply(t *testing.T) {
	srv := newLegacySSEServer(t)

	tr := transport.NewSSE(srv.srv.URL+"/sse", nil, transport.Options{Timeout: 5 * time.Second})
	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	_, _, err := tr.Request("fail", nil)
	e := transport.Classify(err)
	if e == nil || e.Category != transport.CategoryServer || e.Code != -32601 {
		t.Errorf("got %v, want server error -32601", err)
	}
}

func TestSSENotification(t *testing.T) {
	srv := newLegacySSEServer(t)

	tr := transport.NewSSE(srv.srv.URL+"/sse", nil, transport.Options{Timeout: 5 * time.Second})
	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	got := make(chan string, 1)
	tr.OnNotification(func(method string, params json.RawMessage) {
		select {
		case got <- method:
		default:
		}
	})

	srv.notify("notifications/resources/updated")

	select {
	case method := <-got:
		if method != "notifications/resources/updated" {
			t.Errorf("method = %q", method)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestSSEOriginMismatch(t *testing.T) {
	srv := newLegacySSEServer(t)
	srv.endpointOverride = "https://evil.example.com/messages"

	tr := transport.NewSSE(srv.srv.URL+"/sse", nil, transport.Options{Timeout: 5 * time.Second})
	err := tr.Connect()
	if err == nil {
		tr.Close()
		t.Fatal("Connect accepted a cross-origin endpoint")
	}
	if !strings.Contains(err.Error(), "origin") {
		t.Errorf("error = %q, want origin mismatch", err)
	}
}

func TestSSEWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "nope")
	}))
	defer srv.Close()

	tr := transport.NewSSE(srv.URL, nil, transport.Options{Timeout: time.Second})
	if err := tr.Connect(); err == nil {
		tr.Close()
		t.Fatal("Connect accepted a non-event-stream response")
	}
}
