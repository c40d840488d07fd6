package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/elee1766/dextra/src/aisdk/aisdktest"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/metrics"
	"github.com/elee1766/dextra/src/runner"
	"github.com/elee1766/dextra/src/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTicker struct {
	ticks int
	err   error
}

func (s *stubTicker) Tick(ctx context.Context) (*runner.TickReport, error) {
	s.ticks++
	if s.err != nil {
		return nil, s.err
	}
	return &runner.TickReport{}, nil
}

type harness struct {
	db     *storage.DB
	model  *aisdktest.Model
	ticker *stubTicker
	srv    *Server
	alice  *storage.User
	bob    *storage.User
}

func newHarness(t *testing.T, replies ...aisdktest.Reply) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{db: db, model: aisdktest.New(replies...), ticker: &stubTicker{}}
	h.alice = &storage.User{APIToken: "alice-token", PublicKey: "A1iceWa11et"}
	h.bob = &storage.User{APIToken: "bob-token"}
	require.NoError(t, db.CreateUser(ctx, h.alice))
	require.NoError(t, db.CreateUser(ctx, h.bob))

	cat, err := catalog.New(catalog.Group{Name: "coreTools", Description: "core"})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)
	svc, err := executor.NewService(executor.ServiceConfig{
		Model:        h.model,
		Store:        db,
		Catalog:      cat,
		SystemPrompt: "You are a test agent.",
		Env:          catalog.MapEnv{},
		Logger:       slog.New(slog.DiscardHandler),
		Metrics:      m,
	})
	require.NoError(t, err)

	h.srv, err = New(Config{
		Store:      db,
		Turns:      svc,
		Ticker:     h.ticker,
		CronSecret: "cron-secret",
		Gatherer:   reg,
		Logger:     slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) (T, APIResponse) {
	t.Helper()
	var env struct {
		APIResponse
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data, env.APIResponse
}

// sseEvents returns the event names of an SSE body in order.
func sseEvents(body string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			names = append(names, strings.TrimSpace(name))
		}
	}
	return names
}

func TestChatRequiresIdentity(t *testing.T) {
	h := newHarness(t)
	msg := map[string]any{"id": "c1", "message": map[string]any{"role": "user", "content": "hi"}}

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/chat", "", msg).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/chat", "nobody", msg).Code)
	assert.Equal(t, 0, h.model.Calls())
}

func TestChatRejectsBadRequests(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		token string
		body  any
		code  int
	}{
		{"no message", h.alice.APIToken, map[string]any{"id": "c1"}, http.StatusBadRequest},
		{"empty message", h.alice.APIToken, map[string]any{"id": "c1", "message": map[string]any{"content": "  "}}, http.StatusBadRequest},
		{"bad role", h.alice.APIToken, map[string]any{"id": "c1", "message": map[string]any{"role": "system", "content": "x"}}, http.StatusBadRequest},
		{"no wallet", h.bob.APIToken, map[string]any{"id": "c1", "message": map[string]any{"content": "hi"}}, http.StatusBadRequest},
		{"assistant first", h.alice.APIToken, map[string]any{"id": "c1", "message": map[string]any{"role": "assistant", "content": "hi"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/chat", tt.token, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			_, env := decode[any](t, w)
			assert.False(t, env.Success)
		})
	}
	assert.Equal(t, 0, h.model.Calls())
}

func TestChatStreamsAndPersists(t *testing.T) {
	h := newHarness(t, aisdktest.Text("SOL is trading at $150 right now."))

	w := h.do(t, http.MethodPost, "/api/chat", h.alice.APIToken,
		map[string]any{"id": "conv-1", "message": map[string]any{"role": "user", "content": "What is the SOL price?"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := sseEvents(w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, string(executor.EventTextDelta), events[0])
	assert.Equal(t, string(executor.EventFinish), events[len(events)-1])
	assert.NotContains(t, events, string(executor.EventError))

	convs, env := decode[[]storage.Conversation](t, h.do(t, http.MethodGet, "/api/conversations", h.alice.APIToken, nil))
	require.True(t, env.Success)
	require.Len(t, convs, 1)
	assert.Equal(t, "conv-1", convs[0].ID)
	assert.Equal(t, "What is the SOL price?", convs[0].Title)
	assert.Nil(t, convs[0].LastReadAt)

	msgs, _ := decode[[]storage.Message](t, h.do(t, http.MethodGet, "/api/conversations/conv-1/messages", h.alice.APIToken, nil))
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "SOL is trading at $150 right now.", msgs[1].Content)

	conv, err := h.db.ConversationForUser(context.Background(), "conv-1", h.alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, conv.LastReadAt)

	// other users cannot see it
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/conversations/conv-1/messages", h.bob.APIToken, nil).Code)
	bobConvs, _ := decode[[]storage.Conversation](t, h.do(t, http.MethodGet, "/api/conversations", h.bob.APIToken, nil))
	assert.Empty(t, bobConvs)
}

func TestChatForeignConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.CreateConversation(ctx, &storage.Conversation{ID: "bobs", UserID: h.bob.ID, Title: "mine"}))

	w := h.do(t, http.MethodPost, "/api/chat", h.alice.APIToken,
		map[string]any{"id": "bobs", "message": map[string]any{"content": "hi"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, h.model.Calls())
}

func TestModelFailureIsAnErrorEvent(t *testing.T) {
	h := newHarness(t, aisdktest.Reply{Err: io.ErrUnexpectedEOF})

	w := h.do(t, http.MethodPost, "/api/chat", h.alice.APIToken,
		map[string]any{"id": "conv-err", "message": map[string]any{"content": "hi"}})
	require.Equal(t, http.StatusOK, w.Code)
	events := sseEvents(w.Body.String())
	assert.Contains(t, events, string(executor.EventError))
	assert.NotContains(t, w.Body.String(), io.ErrUnexpectedEOF.Error())
}

func TestDeleteChat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := &storage.Conversation{ID: "c-del", UserID: h.alice.ID, Title: "t"}
	require.NoError(t, h.db.CreateConversation(ctx, conv))
	require.NoError(t, h.db.CreateAction(ctx, &storage.Action{
		UserID: h.alice.ID, ConversationID: conv.ID, Name: "a", Description: "d", Frequency: ptr(int64(3600)), Triggered: true,
	}))

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/chat", h.bob.APIToken, map[string]any{"id": "c-del"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodDelete, "/api/chat", h.alice.APIToken, map[string]any{}).Code)

	w := h.do(t, http.MethodDelete, "/api/chat", h.alice.APIToken, map[string]any{"id": "c-del"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err := h.db.ConversationForUser(ctx, "c-del", h.alice.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	actions, err := h.db.Actions(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, actions)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/chat", h.alice.APIToken, map[string]any{"id": "c-del"}).Code)
}

func TestCronMinute(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/cron/minute", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/cron/minute", "wrong", nil).Code)
	assert.Equal(t, 0, h.ticker.ticks)

	w := h.do(t, http.MethodGet, "/api/cron/minute", "cron-secret", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, 1, h.ticker.ticks)
}

func TestCronMinuteWithoutSecret(t *testing.T) {
	h := newHarness(t)
	h.srv.cronSecret = ""
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/cron/minute", "", nil).Code)
	assert.Equal(t, 0, h.ticker.ticks)
}

func ptr[T any](v T) *T { return &v }

func TestActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := &storage.Conversation{UserID: h.alice.ID, Title: "alerts"}
	require.NoError(t, h.db.CreateConversation(ctx, conv))
	action := &storage.Action{
		UserID:         h.alice.ID,
		ConversationID: conv.ID,
		Name:           "SOL alert",
		Description:    "Check SOL (Does not require confirmation)",
		Frequency:      ptr(int64(86400)),
		MaxExecutions:  ptr(int64(10)),
		Triggered:      true,
	}
	require.NoError(t, h.db.CreateAction(ctx, action))

	type view struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Description    string `json:"description"`
		Frequency      *int64 `json:"frequency"`
		MaxExecutions  *int64 `json:"maxExecutions"`
		FrequencyLabel string `json:"frequencyLabel"`
	}

	list, env := decode[[]view](t, h.do(t, http.MethodGet, "/api/actions", h.alice.APIToken, nil))
	require.True(t, env.Success)
	require.Len(t, list, 1)
	assert.Equal(t, "Check SOL", list[0].Description)
	assert.Equal(t, "Daily", list[0].FrequencyLabel)

	bobList, _ := decode[[]view](t, h.do(t, http.MethodGet, "/api/actions", h.bob.APIToken, nil))
	assert.Empty(t, bobList)

	path := "/api/actions/" + action.ID
	w := h.do(t, http.MethodPatch, path, h.alice.APIToken, map[string]any{"name": "SOL watch", "description": "Check SOL and BONK", "maxExecutions": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, _ := decode[view](t, w)
	assert.Equal(t, "SOL watch", got.Name)
	assert.Equal(t, "Check SOL and BONK", got.Description)
	assert.Nil(t, got.MaxExecutions)
	require.NotNil(t, got.Frequency)
	assert.Equal(t, int64(86400), *got.Frequency)

	stored, err := h.db.ActionForUser(ctx, action.ID, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Check SOL and BONK (Does not require confirmation)", stored.Description)

	tests := []struct {
		name  string
		token string
		path  string
		body  any
		code  int
	}{
		{"empty patch", h.alice.APIToken, path, map[string]any{}, http.StatusBadRequest},
		{"too frequent", h.alice.APIToken, path, map[string]any{"frequency": 30}, http.StatusBadRequest},
		{"negative", h.alice.APIToken, path, map[string]any{"maxExecutions": -1}, http.StatusBadRequest},
		{"someone else's", h.bob.APIToken, path, map[string]any{"name": "mine"}, http.StatusNotFound},
		{"unknown", h.alice.APIToken, "/api/actions/missing", map[string]any{"name": "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, h.do(t, http.MethodPatch, tt.path, tt.token, tt.body).Code)
		})
	}

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, path, h.bob.APIToken, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, path, h.alice.APIToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, path, h.alice.APIToken, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	h.srv.now = func() time.Time { return h.srv.started.Add(90 * time.Second) }

	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1m30s", health.Uptime)

	w = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dextra_runner_tick_duration_seconds")
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrStoreRequired)
}
