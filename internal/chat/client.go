// Package chat sends single, non-streaming requests to an OpenAI-compatible
// chat-completions endpoint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chew-z/llm-nodes/internal/api"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request, connect through body read.
const DefaultTimeout = 120 * time.Second

// Target is where a request goes and how it authenticates.
type Target struct {
	BaseURL string
	APIKey  string
}

// Client performs chat completion calls
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client with a 120s timeout
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the chat completions URL for baseURL, ignoring trailing slashes.
func Endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

// Complete sends req and returns choices[0].message.content.
func (c *Client) Complete(ctx context.Context, target Target, req api.ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := Endpoint(target.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", api.TransportFailure(err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Authorization", "Bearer "+target.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	log := c.logger.With("request_id", requestID, "model", req.Model)
	log.Debug("sending chat completion", "url", url, "messages", len(req.Messages), "bytes", len(body))
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug("chat completion transport error", "error", err)
		return "", api.TransportFailure(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", api.TransportFailure(fmt.Errorf("failed to read response: %w", err))
	}

	log.Debug("chat completion finished", "status", resp.StatusCode, "duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", api.HTTPFailure(resp.StatusCode, reasonPhrase(resp), string(respBody))
	}

	return ExtractContent(respBody)
}

// reasonPhrase prefers the reason the server sent over the canonical text.
func reasonPhrase(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if reason, ok := strings.CutPrefix(resp.Status, prefix); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
