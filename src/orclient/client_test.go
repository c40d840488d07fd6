package orclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RetryCount: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestCreateChatCompletionSendsProviderPreferences(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"id":"gen","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	})
	fallbacks := false
	client.config.Provider = &ProviderPreferences{Order: []string{"openai"}, AllowFallbacks: &fallbacks}

	resp, err := client.UncheckedModel("openai/gpt-4o").CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{
		Messages: []*aisdk.Message{
			{Role: aisdk.RoleUser, Content: "hello"},
			{Role: aisdk.RoleAssistant, ToolCalls: []aisdk.ToolCall{{ID: "c1", Function: aisdk.FunctionCall{Name: "x"}}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, 2, resp.Usage.TotalTokens)

	assert.Equal(t, "openai/gpt-4o", body["model"])
	provider := body["provider"].(map[string]any)
	assert.Equal(t, []any{"openai"}, provider["order"])
	assert.Equal(t, false, provider["allow_fallbacks"])

	msgs := body["messages"].([]any)
	call := msgs[1].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, "function", call["type"])
	assert.Equal(t, "{}", call["function"].(map[string]any)["arguments"])
}

func TestRetriesServerErrorsButNotClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})
	_, err := client.UncheckedModel("m").CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model","code":400}}`)
	})
	_, err = client.UncheckedModel("m").CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad model", apiErr.Message)
	assert.Equal(t, "400", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStreamingCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": OPENROUTER PROCESSING\n\n")
		io.WriteString(w, `data: {"id":"g","choices":[{"delta":{"content":"Hel"}}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})

	stream, err := client.UncheckedModel("m").CreateChatCompletionStream(context.Background(), &aisdk.ChatCompletionRequest{})
	require.NoError(t, err)
	resp, err := aisdk.AggregateStream(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)

	_, err = stream.Read()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamErrorChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `data: {"error":{"message":"upstream died","code":"server_error"}}`+"\n\n")
	})
	stream, err := client.UncheckedModel("m").CreateChatCompletionStream(context.Background(), &aisdk.ChatCompletionRequest{})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Read()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream died", apiErr.Message)
	assert.True(t, apiErr.IsRetryable())
}

func TestModelLookupIsCached(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":"openai/gpt-4o","name":"GPT-4o","context_length":128000}]}`)
	})

	mc, err := client.Model(context.Background(), "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 128000, mc.GetModelInfo().ContextLength)

	_, err = client.Model(context.Background(), "openai/gpt-4o")
	require.NoError(t, err)
	_, err = client.Model(context.Background(), "nope/model")
	assert.ErrorIs(t, err, ErrModelNotFound)

	found, err := client.FindModelByName(context.Background(), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", found.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.UncheckedModel("m").CreateChatCompletion(context.Background(), &aisdk.ChatCompletionRequest{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
