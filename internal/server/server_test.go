// ABOUTME: Tests for the REST transport adapter and server lifecycle
// ABOUTME: Exercises route handling, error mapping, and server id persistence

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/claudebot/internal/config"
	"github.com/openclaw/claudebot/internal/provider"
	"github.com/openclaw/claudebot/internal/relay"
	"github.com/openclaw/claudebot/internal/store"
)

// fakeProvider returns a canned reply, or a canned error when set.
type fakeProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Complete(ctx context.Context, messages []provider.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("reply %d", f.calls), nil
}

type testEnv struct {
	server   *httptest.Server
	store    store.Store
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fp := &fakeProvider{}
	logger := slog.New(slog.DiscardHandler)
	rl := relay.New(st, fp, 0, logger)

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"

	srv, err := New(context.Background(), cfg, st, rl, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, provider: fp}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) createConversation(t *testing.T, title string) ConversationResponse {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/conversations", CreateConversationRequest{Title: title})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[ConversationResponse](t, resp)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["server_id"])
}

func TestServerIDPersistsAcrossRestarts(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	logger := slog.New(slog.DiscardHandler)
	rl := relay.New(st, &fakeProvider{}, 0, logger)
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"

	first, err := New(context.Background(), cfg, st, rl, logger)
	require.NoError(t, err)

	second, err := New(context.Background(), cfg, st, rl, logger)
	require.NoError(t, err)

	assert.NotEmpty(t, first.serverID)
	assert.Equal(t, first.serverID, second.serverID)
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(t)

	conv := env.createConversation(t, "Project planning")
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Project planning", conv.Title)
	assert.NotEmpty(t, conv.CreatedAt)
}

func TestCreateConversation_DefaultTitle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conv := decodeJSON[ConversationResponse](t, resp)
	assert.Equal(t, store.DefaultTitle, conv.Title)
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	env := newTestEnv(t)

	first := env.createConversation(t, "first")
	second := env.createConversation(t, "second")

	// Activity in the first conversation moves it back to the top.
	resp := env.request(t, http.MethodPost, "/api/conversations/"+first.ID+"/messages",
		PostMessageRequest{Content: "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeJSON[[]ConversationResponse](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestGetConversation_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/conversations/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRenameConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "old title")

	resp := env.request(t, http.MethodPatch, "/api/conversations/"+conv.ID,
		RenameConversationRequest{Title: "new title"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	renamed := decodeJSON[ConversationResponse](t, resp)
	assert.Equal(t, "new title", renamed.Title)
}

func TestRenameConversation_EmptyTitle(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "keep me")

	resp := env.request(t, http.MethodPatch, "/api/conversations/"+conv.ID,
		RenameConversationRequest{Title: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRenameConversation_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPatch, "/api/conversations/no-such-id",
		RenameConversationRequest{Title: "whatever"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "doomed")

	resp := env.request(t, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteConversation_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodDelete, "/api/conversations/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostMessage_RunsTurn(t *testing.T) {
	env := newTestEnv(t)
	env.provider.reply = "Hi there!"
	conv := env.createConversation(t, "chat")

	resp := env.request(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages",
		PostMessageRequest{Content: "Hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assistant := decodeJSON[MessageResponse](t, resp)
	assert.Equal(t, store.RoleAssistant, assistant.Role)
	assert.Equal(t, "Hi there!", assistant.Content)
	assert.Equal(t, conv.ID, assistant.ConversationID)

	// Both sides of the turn are persisted in order.
	resp = env.request(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	messages := decodeJSON[[]MessageResponse](t, resp)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
}

func TestPostMessage_EmptyContent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "chat")

	resp := env.request(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages",
		PostMessageRequest{Content: "   \n\t "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.provider.calls)
}

func TestPostMessage_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/conversations/no-such-id/messages",
		PostMessageRequest{Content: "hello"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostMessage_ProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = &provider.APIError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
	conv := env.createConversation(t, "chat")

	resp := env.request(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages",
		PostMessageRequest{Content: "hello"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decodeJSON[map[string]string](t, resp)
	assert.NotEmpty(t, body["user_message_id"])

	// The user message survives the failed turn.
	resp = env.request(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	messages := decodeJSON[[]MessageResponse](t, resp)
	require.Len(t, messages, 1)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, body["user_message_id"], messages[0].ID)
}

// blockingProvider signals when a completion starts and holds it until
// released, so tests can disconnect the client mid-turn.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Complete(ctx context.Context, _ []provider.ChatMessage) (string, error) {
	close(p.started)
	select {
	case <-p.release:
		return "late reply", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPostMessage_ClientDisconnectDoesNotAbortTurn(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	bp := &blockingProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	logger := slog.New(slog.DiscardHandler)
	rl := relay.New(st, bp, 0, logger)
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"

	srv, err := New(context.Background(), cfg, st, rl, logger)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	conv := &store.Conversation{ID: uuid.New().String()}
	require.NoError(t, st.CreateConversation(context.Background(), conv))

	reqCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		ts.URL+"/api/conversations/"+conv.ID+"/messages",
		bytes.NewReader([]byte(`{"content":"hello"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	// Disconnect while the provider call is in flight, then let it finish
	<-bp.started
	cancel()
	<-requestDone
	close(bp.release)

	// The turn completes server-side; both sides of it land in the store
	require.Eventually(t, func() bool {
		messages, err := st.GetMessages(context.Background(), conv.ID)
		return err == nil && len(messages) == 2
	}, 5*time.Second, 10*time.Millisecond)

	messages, err := st.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, "late reply", messages[1].Content)
}

func TestGetMessages_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/conversations/no-such-id/messages", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetMessages_EmptyConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "quiet")

	resp := env.request(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	messages := decodeJSON[[]MessageResponse](t, resp)
	assert.Empty(t, messages)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPut, "/api/conversations", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
