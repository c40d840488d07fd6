package toolsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Package-level logger for tools
var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

// SetLogger allows setting a custom logger for the tools package
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger
func GetLogger() *slog.Logger {
	return logger
}

var (
	ErrUpstream      = errors.New("upstream request failed")
	ErrInvalidParams = errors.New("invalid parameters")
	ErrUnauthorized  = errors.New("unauthorized")
)

// ToolError represents an error with additional context
type ToolError struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError creates a new tool error with context
func NewToolError(errorType, message, code string, cause error) *ToolError {
	return &ToolError{
		Type:    errorType,
		Message: message,
		Code:    code,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// DefaultHTTPClient is used by tools that are not given a client.
var DefaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// MaxResponseSize caps how much of an upstream body tools read.
const MaxResponseSize = 5 * 1024 * 1024

// GetJSON performs a GET and decodes a JSON body into out. Non-2xx statuses
// are returned as a ToolError wrapping ErrUpstream.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return DoJSON(client, req, out)
}

// DoJSON sends req and decodes a JSON body into out.
func DoJSON(client *http.Client, req *http.Request, out any) error {
	if client == nil {
		client = DefaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return NewToolError("upstream", err.Error(), "request_failed", fmt.Errorf("%w: %w", ErrUpstream, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := NewToolError("upstream", fmt.Sprintf("%s returned %s", req.URL.Host, resp.Status), "bad_status", ErrUpstream)
		te.Details["status"] = resp.StatusCode
		return te
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
