// Package client exposes typed MCP operations on top of a transport.
package client

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/transport"
)

// ProtocolVersion is the MCP protocol revision the driver speaks.
const ProtocolVersion = "2025-03-26"

// clientInfo is sent in the initialize request.
var clientInfo = implementation{Name: "mcp-stress", Version: "0.1.0"}

type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities"`
	ServerInfo      implementation  `json:"serverInfo"`
}

// ServerInfo describes the connected server.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
	Capabilities    json.RawMessage
}

// Tool is one entry of a tools/list result.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource is one entry of a resources/list result.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate is one entry of a resources/templates/list result.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Prompt is one entry of a prompts/list result.
type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type listResourcesResult struct {
	Resources []Resource `json:"resources"`
}

type listResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

type listPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// CallToolResult is the body of a tools/call reply.
type CallToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

// Client is a thin MCP helper over any transport. It performs the handshake
// and exposes the operations the driver exercises.
type Client struct {
	Transport transport.Transport

	// Warn receives non-fatal handshake diagnostics, such as a protocol
	// version mismatch. Nil means silent.
	Warn func(format string, args ...interface{})

	Server ServerInfo
}

// New creates a Client on top of t.
func New(t transport.Transport) *Client {
	return &Client{Transport: t}
}

func (c *Client) warnf(format string, args ...interface{}) {
	if c.Warn != nil {
		c.Warn(format, args...)
	}
}

// Connect establishes the transport session and performs the MCP handshake:
// an initialize request followed by the initialized notification. The
// handshake latency is returned for recording.
func (c *Client) Connect() (float64, error) {
	if err := c.Transport.Connect(); err != nil {
		return 0, err
	}

	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      clientInfo,
	}

	raw, latency, err := c.Transport.Request("initialize", params)
	if err != nil {
		return latency, err
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return latency, &transport.Error{
			Category:  transport.CategoryProtocol,
			Code:      transport.CodeParseError,
			Message:   "malformed initialize result: " + err.Error(),
			LatencyMs: latency,
		}
	}

	c.Server = ServerInfo{
		Name:            result.ServerInfo.Name,
		Version:         result.ServerInfo.Version,
		ProtocolVersion: result.ProtocolVersion,
		Capabilities:    result.Capabilities,
	}

	if result.ProtocolVersion != ProtocolVersion {
		c.warnf("server speaks protocol %s, continuing with %s", result.ProtocolVersion, ProtocolVersion)
	}

	if err := c.Transport.Notify("notifications/initialized", nil); err != nil {
		return latency, err
	}

	return latency, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.Transport.Close()
}

// Ping sends a ping request.
func (c *Client) Ping() (float64, error) {
	_, latency, err := c.Transport.Request("ping", nil)
	return latency, err
}

// ListTools lists the server's tools.
func (c *Client) ListTools() ([]Tool, float64, error) {
	raw, latency, err := c.Transport.Request("tools/list", nil)
	if err != nil {
		return nil, latency, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, latency, parseError(err, latency)
	}
	return result.Tools, latency, nil
}

// CallTool invokes one tool. A result with isError set is returned as a
// classified server error with the latency preserved, so the caller can
// record it as a logical failure.
func (c *Client) CallTool(name string, args any) (*CallToolResult, float64, error) {
	raw, latency, err := c.Transport.Request("tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, latency, err
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, latency, parseError(err, latency)
	}
	if result.IsError {
		return &result, latency, &transport.Error{
			Category:  transport.CategoryServer,
			Code:      -1,
			Message:   toolErrorMessage(&result),
			LatencyMs: latency,
		}
	}
	return &result, latency, nil
}

func toolErrorMessage(r *CallToolResult) string {
	var texts []string
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 {
		return "tool reported an error"
	}
	msg := strings.Join(texts, "; ")
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ListResources lists the server's resources.
func (c *Client) ListResources() ([]Resource, float64, error) {
	raw, latency, err := c.Transport.Request("resources/list", nil)
	if err != nil {
		return nil, latency, err
	}
	var result listResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, latency, parseError(err, latency)
	}
	return result.Resources, latency, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(uri string) (json.RawMessage, float64, error) {
	return c.Transport.Request("resources/read", map[string]any{"uri": uri})
}

// ListResourceTemplates lists the server's resource templates.
func (c *Client) ListResourceTemplates() ([]ResourceTemplate, float64, error) {
	raw, latency, err := c.Transport.Request("resources/templates/list", nil)
	if err != nil {
		return nil, latency, err
	}
	var result listResourceTemplatesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, latency, parseError(err, latency)
	}
	return result.ResourceTemplates, latency, nil
}

// ListPrompts lists the server's prompts.
func (c *Client) ListPrompts() ([]Prompt, float64, error) {
	raw, latency, err := c.Transport.Request("prompts/list", nil)
	if err != nil {
		return nil, latency, err
	}
	var result listPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, latency, parseError(err, latency)
	}
	return result.Prompts, latency, nil
}

// GetPrompt fetches one prompt by name.
func (c *Client) GetPrompt(name string, args map[string]string) (json.RawMessage, float64, error) {
	params := map[string]any{"name": name}
	if len(args) > 0 {
		params["arguments"] = args
	}
	return c.Transport.Request("prompts/get", params)
}

func parseError(err error, latency float64) *transport.Error {
	return &transport.Error{
		Category:  transport.CategoryProtocol,
		Code:      transport.CodeParseError,
		Message:   err.Error(),
		LatencyMs: latency,
	}
}
