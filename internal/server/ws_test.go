// ABOUTME: Tests for the WebSocket transport adapter
// ABOUTME: Verifies message frames, error frames, and multi-turn sessions

package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/claudebot/internal/provider"
	"github.com/openclaw/claudebot/internal/store"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(env.server.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsOutbound {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame wsOutbound
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func TestWebSocket_Turn(t *testing.T) {
	env := newTestEnv(t)
	env.provider.reply = "Hello from the other side"
	conv := env.createConversation(t, "ws chat")

	conn := dialWS(t, env)

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{
		ConversationID: conv.ID,
		Content:        "Hello",
	}))

	userFrame := readFrame(t, conn)
	require.Equal(t, "message", userFrame.Type)
	require.NotNil(t, userFrame.Data)
	assert.Equal(t, store.RoleUser, userFrame.Data.Role)
	assert.Equal(t, "Hello", userFrame.Data.Content)

	assistantFrame := readFrame(t, conn)
	require.Equal(t, "message", assistantFrame.Type)
	require.NotNil(t, assistantFrame.Data)
	assert.Equal(t, store.RoleAssistant, assistantFrame.Data.Role)
	assert.Equal(t, "Hello from the other side", assistantFrame.Data.Content)
}

func TestWebSocket_MultipleTurns(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "ws chat")
	conn := dialWS(t, env)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, wsjson.Write(ctx, conn, wsInbound{
			ConversationID: conv.ID,
			Content:        "ping",
		}))

		userFrame := readFrame(t, conn)
		assert.Equal(t, store.RoleUser, userFrame.Data.Role)
		assistantFrame := readFrame(t, conn)
		assert.Equal(t, store.RoleAssistant, assistantFrame.Data.Role)
	}

	// All six messages landed in the store in order.
	resp := env.request(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := decodeJSON[[]MessageResponse](t, resp)
	require.Len(t, messages, 6)
	for i, msg := range messages {
		if i%2 == 0 {
			assert.Equal(t, store.RoleUser, msg.Role)
		} else {
			assert.Equal(t, store.RoleAssistant, msg.Role)
		}
	}
}

func TestWebSocket_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{
		ConversationID: "no-such-id",
		Content:        "hello",
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Message, "not found")
}

func TestWebSocket_EmptyContent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "ws chat")
	conn := dialWS(t, env)

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{
		ConversationID: conv.ID,
		Content:        "  ",
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Message, "content")
}

func TestWebSocket_ProviderFailureKeepsUserMessage(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = &provider.APIError{StatusCode: 529, Type: "overloaded_error", Message: "overloaded"}
	conv := env.createConversation(t, "ws chat")
	conn := dialWS(t, env)

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{
		ConversationID: conv.ID,
		Content:        "hello",
	}))

	// The persisted user message is echoed before the error frame.
	userFrame := readFrame(t, conn)
	require.Equal(t, "message", userFrame.Type)
	assert.Equal(t, store.RoleUser, userFrame.Data.Role)

	errFrame := readFrame(t, conn)
	assert.Equal(t, "error", errFrame.Type)
	assert.Contains(t, errFrame.Message, "saved")
}
