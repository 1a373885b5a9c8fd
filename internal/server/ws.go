// ABOUTME: WebSocket transport adapter for interactive chat clients
// ABOUTME: Accepts connections on /ws and relays message turns as JSON frames

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/openclaw/claudebot/internal/provider"
	"github.com/openclaw/claudebot/internal/relay"
	"github.com/openclaw/claudebot/internal/store"
)

// wsInbound is a client request frame: one user message for one conversation.
type wsInbound struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// wsOutbound is a server frame. Type is "message" with a persisted message
// in Data, or "error" with Message set.
type wsOutbound struct {
	Type    string           `json:"type"`
	Data    *MessageResponse `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
}

// handleWebSocket upgrades the connection and serves turns until the
// client disconnects. Each inbound frame runs one relay turn; the
// persisted user message is echoed back before the assistant reply so
// the client sees its own message confirmed even if the provider fails.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	s.logger.Info("websocket client connected", "remote_addr", r.RemoteAddr)

	ctx := r.Context()
	for {
		var in wsInbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Info("websocket client disconnected", "remote_addr", r.RemoteAddr)
			} else if ctx.Err() == nil {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		if err := s.serveTurn(ctx, conn, in); err != nil {
			return
		}
	}
}

// serveTurn runs one relay turn and writes the resulting frames.
// Returns an error only when the connection itself is unusable.
func (s *Server) serveTurn(ctx context.Context, conn *websocket.Conn, in wsInbound) error {
	// A dropped connection must not abort the turn; it runs to completion
	// and only the delivery is lost.
	result, turnErr := s.relay.Turn(context.WithoutCancel(ctx), in.ConversationID, in.Content)

	if result != nil && result.UserMessage != nil {
		userFrame := messageToResponse(result.UserMessage)
		if err := wsjson.Write(ctx, conn, wsOutbound{Type: "message", Data: &userFrame}); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return err
		}
	}

	if turnErr != nil {
		frame := wsOutbound{Type: "error", Message: turnErrorMessage(turnErr)}
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return err
		}
		return nil
	}

	assistantFrame := messageToResponse(result.AssistantMessage)
	if err := wsjson.Write(ctx, conn, wsOutbound{Type: "message", Data: &assistantFrame}); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
		return err
	}
	return nil
}

// turnErrorMessage renders a turn failure for the client without leaking
// internal detail.
func turnErrorMessage(err error) string {
	var apiErr *provider.APIError
	switch {
	case errors.Is(err, relay.ErrEmptyContent):
		return "content is required"
	case errors.Is(err, store.ErrNotFound):
		return "conversation not found"
	case errors.As(err, &apiErr):
		return "completion provider failed; your message was saved"
	default:
		return "internal server error"
	}
}
