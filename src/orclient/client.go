package orclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
)

var _ aisdk.Provider = (*Client)(nil)

// Client is the OpenRouter API client.
type Client struct {
	config     Config
	httpClient *http.Client
	// streamClient has no overall timeout; streams are bounded by the
	// request context instead.
	streamClient *http.Client
	logger       *slog.Logger
	modelCache   *ModelCache
}

// NewClient creates a new OpenRouter API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "openrouter_client")

	client := &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		logger:       logger,
	}
	client.modelCache = NewModelCache(client, config.ModelCacheSize, config.ModelCacheTTL)
	return client
}

// wireRequest is the body sent to /chat/completions.
type wireRequest struct {
	*aisdk.ChatCompletionRequest
	Provider *ProviderPreferences `json:"provider,omitempty"`
}

// prepareRequest copies req into the wire shape. Tool calls replayed from
// history always carry a type and a JSON object for arguments.
func (c *Client) prepareRequest(req *aisdk.ChatCompletionRequest, stream bool) *wireRequest {
	out := *req
	out.Stream = stream
	if stream {
		out.StreamOptions = &aisdk.StreamOptions{IncludeUsage: true}
	} else {
		out.StreamOptions = nil
	}

	out.Messages = make([]*aisdk.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		m := *msg
		if len(m.ToolCalls) > 0 {
			m.ToolCalls = make([]aisdk.ToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				tc.Index = nil
				if tc.Type == "" {
					tc.Type = "function"
				}
				if tc.Function.Arguments == "" {
					tc.Function.Arguments = "{}"
				}
				m.ToolCalls[i] = tc
			}
		}
		out.Messages = append(out.Messages, &m)
	}
	return &wireRequest{ChatCompletionRequest: &out, Provider: c.config.Provider}
}

func (c *Client) encodeRequest(ctx context.Context, logger *slog.Logger, req *wireRequest) ([]byte, error) {
	if c.logger.Enabled(ctx, slog.LevelDebug) {
		if debugBody, err := json.MarshalIndent(req, "", "  "); err == nil {
			logger.Debug("formatted request", "body", string(debugBody))
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// createChatCompletion sends a chat completion request to OpenRouter (internal method).
func (c *Client) createChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	logger := c.logger.With("method", "CreateChatCompletion", "model", req.Model)
	logger.Debug("sending chat completion request")

	body, err := c.encodeRequest(ctx, logger, c.prepareRequest(req, false))
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequestWithRetry(c.httpClient, httpReq)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("received error response", "status_code", resp.StatusCode)
		return nil, c.handleError(resp)
	}

	var result aisdk.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Error("failed to decode response", "error", err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Debug("chat completion successful", "usage_total", result.Usage.TotalTokens)
	return &result, nil
}

// createChatCompletionStream opens a server-sent event stream for req.
func (c *Client) createChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	logger := c.logger.With("method", "CreateChatCompletionStream", "model", req.Model)
	logger.Debug("sending streaming chat completion request")

	body, err := c.encodeRequest(ctx, logger, c.prepareRequest(req, true))
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.doRequestWithRetry(c.streamClient, httpReq)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		logger.Error("received error response", "status_code", resp.StatusCode)
		return nil, c.handleError(resp)
	}
	return newSSEStream(resp.Body), nil
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	url := c.config.BaseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	// Optional headers for ranking
	if c.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.config.SiteURL)
	}
	if c.config.SiteName != "" {
		req.Header.Set("X-Title", c.config.SiteName)
	}

	return req, nil
}

// doRequestWithRetry performs an HTTP request with retry logic. Client
// errors other than rate limits are returned to the caller unretried.
func (c *Client) doRequestWithRetry(httpClient *http.Client, req *http.Request) (*http.Response, error) {
	var lastErr error
	logger := c.logger.With("method", "doRequestWithRetry", "url", req.URL.String())

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	for attempt := 1; attempt <= c.config.RetryCount; attempt++ {
		reqCopy := req.Clone(req.Context())
		if bodyBytes != nil {
			reqCopy.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := httpClient.Do(reqCopy)
		switch {
		case err != nil:
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			lastErr = err
			logger.Debug("request attempt failed", "attempt", attempt, "error", err)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = c.handleError(resp)
			resp.Body.Close()
			logger.Debug("retryable response", "attempt", attempt, "status_code", resp.StatusCode)
		default:
			return resp, nil
		}

		if attempt == c.config.RetryCount {
			break
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(GetRetryDelay(lastErr, attempt, c.config.RetryDelay)):
		}
	}

	logger.Error("request failed after all retries", "retry_count", c.config.RetryCount, "error", lastErr)
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.RetryCount, lastErr)
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Type = errResp.Error.Type
		apiErr.Message = errResp.Error.Message
		apiErr.Code = codeString(errResp.Error.Code)
		apiErr.Param = errResp.Error.Param
		apiErr.Details = errResp.Error.Metadata
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if apiErr.Details == nil {
				apiErr.Details = make(map[string]interface{})
			}
			apiErr.Details["retry_after"] = retryAfter
		}
	}

	return apiErr
}

// GetModels lists the models served by the provider.
func (c *Client) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	return c.ListModels(ctx)
}
