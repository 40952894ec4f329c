package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/jsonrpc"
	"github.com/dgellow/mcp-stress/internal/sse"
)

const sessionIDHeader = "Mcp-Session-Id"

// Streamable is the modern HTTP transport (MCP protocol 2025-03-26): each
// POST returns either a JSON body or an inline SSE stream carrying its single
// response.
type Streamable struct {
	*conn

	url     string
	headers map[string]string
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	sessionMu sync.Mutex
	sessionID string

	streams sync.WaitGroup

	closeOnce sync.Once
}

// NewStreamable creates a streamable HTTP transport for the given URL.
func NewStreamable(rawURL string, headers map[string]string, opts Options) *Streamable {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamable{
		conn:    newConn(opts),
		url:     rawURL,
		headers: headers,
		client:  &http.Client{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect implements the Transport interface. The session itself is
// established by the first POST, which returns the Mcp-Session-Id header.
func (s *Streamable) Connect() error {
	if !strings.HasPrefix(s.url, "http://") && !strings.HasPrefix(s.url, "https://") {
		return newError(CategoryClient, -1, "invalid URL %q", s.url)
	}
	return nil
}

func (s *Streamable) session() string {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.sessionID
}

func (s *Streamable) setSession(id string) {
	if id == "" {
		return
	}
	s.sessionMu.Lock()
	if s.sessionID == "" {
		s.sessionID = id
	}
	s.sessionMu.Unlock()
}

// post sends one JSON-RPC body. A JSON response body is dispatched inline; an
// SSE response body is scanned on its own goroutine until the stream ends.
func (s *Streamable) post(data []byte) error {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if id := s.session(); id != "" {
		req.Header.Set(sessionIDHeader, id)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}

	s.setSession(resp.Header.Get(sessionIDHeader))

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return newError(CategoryServer, resp.StatusCode, "server returned status %s", resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		msg, err := jsonrpc.DecodeMessage(body)
		if err != nil {
			return newError(CategoryProtocol, CodeParseError, "malformed response body: %s", err)
		}
		s.dispatch(msg)
		return nil

	case strings.HasPrefix(ct, "text/event-stream"):
		s.streams.Add(1)
		go s.readStream(resp.Body)
		return nil

	default:
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return newError(CategoryProtocol, -1, "unexpected content type %q", ct)
	}
}

// readStream dispatches every message event of one POST response stream. The
// reply for the POSTed request arrives here; everything else is a server
// notification.
func (s *Streamable) readStream(body io.ReadCloser) {
	defer s.streams.Done()
	defer body.Close()

	scanner := sse.NewScanner(body)
	for scanner.Scan() {
		evt := scanner.Event()
		if evt.Name != "" && evt.Name != "message" {
			continue
		}

		msg, err := jsonrpc.DecodeMessage(evt.Data)
		if err != nil {
			s.opts.verbosef("skipping malformed message event: %s", err)
			continue
		}
		s.dispatch(msg)
	}
}

// Request implements the Transport interface.
func (s *Streamable) Request(method string, params any) (json.RawMessage, float64, error) {
	return s.call(method, params, func(data []byte, _ int64) error {
		return s.post(data)
	})
}

// Notify implements the Transport interface.
func (s *Streamable) Notify(method string, params any) error {
	if s.closed.Load() {
		return newError(CategoryClient, -1, "transport is closed")
	}
	data, err := notifyFrame(method, params)
	if err != nil {
		return Classify(err)
	}
	if err := s.post(data); err != nil {
		return Classify(err)
	}
	return nil
}

// Close terminates the session with a DELETE and rejects all pending
// requests. Server rejection of the DELETE is tolerated.
func (s *Streamable) Close() error {
	s.closeOnce.Do(func() {
		s.shutdown()

		if id := s.session(); id != "" {
			req, err := http.NewRequest(http.MethodDelete, s.url, nil)
			if err == nil {
				req.Header.Set(sessionIDHeader, id)
				for k, v := range s.headers {
					req.Header.Set(k, v)
				}
				if resp, err := s.client.Do(req); err == nil {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
			}
		}

		s.cancel()
		s.streams.Wait()
	})
	return nil
}
