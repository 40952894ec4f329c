package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/jsonrpc"
	"github.com/dgellow/mcp-stress/internal/sse"
)

// SSE is the legacy HTTP transport: a long-lived GET stream delivers
// responses to requests POSTed to an endpoint discovered on that stream.
type SSE struct {
	*conn

	url     string
	headers map[string]string
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	endpointMu sync.Mutex
	endpoint   string

	reader sync.WaitGroup

	closeOnce sync.Once
}

// NewSSE creates a legacy SSE transport for the given stream URL.
func NewSSE(rawURL string, headers map[string]string, opts Options) *SSE {
	ctx, cancel := context.WithCancel(context.Background())
	return &SSE{
		conn:    newConn(opts),
		url:     rawURL,
		headers: headers,
		client:  &http.Client{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect performs the two-URL dance: open the event stream, wait for the
// endpoint event, and keep reading messages in the background.
func (s *SSE) Connect() error {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return newError(CategoryClient, -1, "invalid URL: %s", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return newError(CategoryProtocol, -1, "event stream returned status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return newError(CategoryProtocol, -1, "unexpected content type %q on event stream", ct)
	}

	scanner := sse.NewScanner(resp.Body)

	endpoint, err := s.awaitEndpoint(scanner)
	if err != nil {
		resp.Body.Close()
		return err
	}

	s.endpointMu.Lock()
	s.endpoint = endpoint
	s.endpointMu.Unlock()

	s.reader.Add(1)
	go s.readStream(resp.Body, scanner)

	return nil
}

// awaitEndpoint reads events until the endpoint announcement arrives. The
// endpoint may be relative; it is resolved against the stream URL and must
// share its origin.
func (s *SSE) awaitEndpoint(scanner *sse.Scanner) (string, error) {
	deadline := time.AfterFunc(s.opts.timeout(), s.cancel)
	defer deadline.Stop()

	for scanner.Scan() {
		evt := scanner.Event()
		if evt.Name != "endpoint" {
			continue
		}

		base, err := url.Parse(s.url)
		if err != nil {
			return "", newError(CategoryClient, -1, "invalid URL: %s", err)
		}
		endpoint, err := base.Parse(strings.TrimSpace(string(evt.Data)))
		if err != nil {
			return "", newError(CategoryProtocol, -1, "invalid endpoint URL %q: %s", evt.Data, err)
		}
		if endpoint.Scheme != base.Scheme || endpoint.Host != base.Host {
			return "", newError(CategoryProtocol, -1, "endpoint origin %s://%s does not match stream origin %s://%s",
				endpoint.Scheme, endpoint.Host, base.Scheme, base.Host)
		}
		return endpoint.String(), nil
	}

	if err := scanner.Err(); err != nil {
		return "", Classify(err)
	}
	return "", newError(CategoryProtocol, -1, "event stream ended before the endpoint event")
}

// readStream dispatches every message event on the long-lived stream.
func (s *SSE) readStream(body io.Closer, scanner *sse.Scanner) {
	defer s.reader.Done()
	defer body.Close()

	for scanner.Scan() {
		evt := scanner.Event()
		if evt.Name != "message" {
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

// post sends one JSON-RPC body to the endpoint. The response body is drained;
// the actual reply travels back on the event stream.
func (s *SSE) post(data []byte) error {
	s.endpointMu.Lock()
	endpoint := s.endpoint
	s.endpointMu.Unlock()
	if endpoint == "" {
		return fmt.Errorf("not connected")
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %s", resp.Status)
	}
	return nil
}

// Request implements the Transport interface.
func (s *SSE) Request(method string, params any) (json.RawMessage, float64, error) {
	return s.call(method, params, func(data []byte, _ int64) error {
		return s.post(data)
	})
}

// Notify implements the Transport interface.
func (s *SSE) Notify(method string, params any) error {
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

// Close cancels the event stream and rejects all pending requests.
func (s *SSE) Close() error {
	s.closeOnce.Do(func() {
		s.shutdown()
		s.cancel()
		s.reader.Wait()
	})
	return nil
}
