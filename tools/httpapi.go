// Package tools provides ready-made tool nodes for agents: an HTTP API
// caller and a calculator. Each constructor returns an agents.Tool wrapping
// a node in the tools group, so tool invocations run under the engine's
// retry, caching and callback machinery like any other node.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/49Simon/dynamiq/agents"
	"github.com/49Simon/dynamiq/internal/utils"
	"github.com/49Simon/dynamiq/nodes"
)

const (
	// DefaultHTTPTimeout is the default per-request timeout.
	DefaultHTTPTimeout = 30 * time.Second
	// MaxBodySize caps the response body read from the remote API (10MB).
	MaxBodySize = 10 * 1024 * 1024
	// DialTimeout is the maximum time to wait for a TCP connection.
	DialTimeout = 10 * time.Second
)

// ResponseType selects how the HTTP tool decodes the response body.
type ResponseType string

const (
	// ResponseText returns the body as a plain string.
	ResponseText ResponseType = "text"

	// ResponseJSON decodes the body as JSON.
	ResponseJSON ResponseType = "json"

	// ResponseMarkdown converts an HTML body to Markdown, which keeps page
	// content readable inside an agent observation.
	ResponseMarkdown ResponseType = "markdown"
)

// HTTPConfig describes one HTTP API endpoint exposed to agents as a tool.
type HTTPConfig struct {
	// Name is the tool name shown to the model.
	Name string

	// Description tells the model what the endpoint does.
	Description string

	// URL is the endpoint. The per-call input may override it under "url".
	URL string

	// Method defaults to GET.
	Method string

	// Headers are sent with every request.
	Headers map[string]string

	// Params are query parameters sent with every request; per-call input
	// under "params" is merged on top.
	Params map[string]string

	// Payload is the base JSON body; per-call input under "payload" is
	// merged on top. Only sent for methods with a body.
	Payload map[string]any

	// ResponseType selects body decoding; defaults to ResponseText.
	ResponseType ResponseType

	// Timeout bounds one request; defaults to DefaultHTTPTimeout.
	Timeout time.Duration

	// SuccessCodes lists acceptable status codes; empty means any 2xx.
	SuccessCodes []int

	// Client overrides the HTTP client, for tests and custom transports.
	Client *http.Client
}

// NewHTTPTool builds a tool node that calls the configured endpoint. Remote
// failures (transport errors, unexpected status codes) are recoverable: they
// come back to the agent as observations rather than aborting the run.
func NewHTTPTool(cfg HTTPConfig) agents.Tool {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.ResponseType == "" {
		cfg.ResponseType = ResponseText
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				ForceAttemptHTTP2:   true,
			},
		}
	}

	executor := nodes.ExecutorFunc(func(ctx context.Context, input map[string]any, _ *nodes.Execution) (any, error) {
		return callEndpoint(ctx, cfg, input)
	})

	node := nodes.New(cfg.Name, executor,
		nodes.WithGroup(nodes.GroupTools),
		nodes.WithTypeName("tools.HTTP"),
	)
	return agents.Tool{Node: node, Description: cfg.Description}
}

func callEndpoint(ctx context.Context, cfg HTTPConfig, input map[string]any) (any, error) {
	// Function-calling dispatch nests the model's arguments under "input".
	if nested, ok := input["input"].(map[string]any); ok {
		merged := make(map[string]any, len(input)+len(nested))
		for key, value := range input {
			merged[key] = value
		}
		for key, value := range nested {
			merged[key] = value
		}
		input = merged
	}

	url := cfg.URL
	if override, ok := input["url"].(string); ok && override != "" {
		url = override
	}
	if url == "" {
		return nil, fmt.Errorf("http tool %s: no url configured", cfg.Name)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	var body io.Reader
	if cfg.Method != http.MethodGet && cfg.Method != http.MethodHead {
		payload := mergedPayload(cfg.Payload, input)
		if len(payload) > 0 {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("http tool %s: payload is not JSON-serializable: %w", cfg.Name, err)
			}
			body = bytes.NewReader(encoded)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, cfg.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("http tool %s: build request: %w", cfg.Name, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range cfg.Headers {
		request.Header.Set(key, value)
	}

	query := request.URL.Query()
	for key, value := range cfg.Params {
		query.Set(key, value)
	}
	if extra, ok := input["params"].(map[string]any); ok {
		for key, value := range extra {
			query.Set(key, utils.Stringify(value))
		}
	}
	request.URL.RawQuery = query.Encode()

	response, err := cfg.Client.Do(request)
	if err != nil {
		return nil, agents.NewRecoverableError("request to %s failed: %v", url, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize))
	if err != nil {
		return nil, agents.NewRecoverableError("reading response from %s failed: %v", url, err)
	}

	if !statusAccepted(cfg.SuccessCodes, response.StatusCode) {
		return nil, agents.NewRecoverableError("request to %s returned status %d: %s",
			url, response.StatusCode, utils.TruncateStringDefault(string(raw)))
	}

	content, err := decodeBody(cfg.ResponseType, raw)
	if err != nil {
		return nil, agents.NewRecoverableError("decoding response from %s failed: %v", url, err)
	}

	return map[string]any{
		"content":     content,
		"status_code": response.StatusCode,
		"url":         response.Request.URL.String(),
	}, nil
}

// mergedPayload overlays the per-call payload (and any leftover scalar
// "input" field from function-calling dispatch) onto the configured base.
func mergedPayload(base map[string]any, input map[string]any) map[string]any {
	payload := make(map[string]any, len(base))
	for key, value := range base {
		payload[key] = value
	}
	if override, ok := input["payload"].(map[string]any); ok {
		for key, value := range override {
			payload[key] = value
		}
	}
	if value, ok := input["input"]; ok {
		if _, isMap := value.(map[string]any); !isMap {
			payload["input"] = value
		}
	}
	return payload
}

func statusAccepted(successCodes []int, status int) bool {
	if len(successCodes) == 0 {
		return status >= 200 && status < 300
	}
	for _, code := range successCodes {
		if status == code {
			return true
		}
	}
	return false
}

func decodeBody(responseType ResponseType, raw []byte) (any, error) {
	switch responseType {
	case ResponseJSON:
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("body is not valid JSON: %w", err)
		}
		return decoded, nil

	case ResponseMarkdown:
		markdown, err := htmltomarkdown.ConvertString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("html to markdown conversion failed: %w", err)
		}
		return markdown, nil

	default:
		return string(raw), nil
	}
}
