// Package backend is the HTTP client for the chat/agent service: POST /chat,
// GET /agents and GET /health. The transport is guarded by a circuit breaker
// so a dead backend fails fast into the mock orchestration path instead of
// burning the full timeout on every query.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	hiveerrors "hive/internal/errors"
	"hive/internal/logging"
	"hive/internal/types"
)

const defaultBodyLimit = 8 << 20 // 8 MiB

// Client talks to the chat backend.
type Client struct {
	baseURL   string
	http      *http.Client
	bodyLimit int64
	logger    logging.Logger
}

// New constructs a client for the given base URL (e.g. "http://localhost:8000").
func New(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: wrapTransportWithCircuitBreaker(
				http.DefaultTransport, "chat-backend", hiveerrors.DefaultCircuitBreakerConfig()),
		},
		bodyLimit: defaultBodyLimit,
		logger:    logging.OrNop(logger),
	}
}

// Chat submits a user message for orchestration.
func (c *Client) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readAllWithLimit(resp.Body, c.bodyLimit)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat request failed: http status %d", resp.StatusCode)
	}

	var out types.ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &out, nil
}

// Agents fetches the remote agent roster.
func (c *Client) Agents(ctx context.Context) ([]types.Agent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agents", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agents request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readAllWithLimit(resp.Body, c.bodyLimit)
	if err != nil {
		return nil, fmt.Errorf("read agents response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agents request failed: http status %d", resp.StatusCode)
	}

	var out types.AgentsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode agents response: %w", err)
	}
	return out.Agents, nil
}

// Healthy reports whether GET /health answers with a 2xx status.
func (c *Client) Healthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("health check failed: %v", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = readAllWithLimit(resp.Body, 1<<10)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
