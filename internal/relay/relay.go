// ABOUTME: Message relay orchestrating a single user-in, assistant-out turn
// ABOUTME: Persists both sides of the exchange and serializes turns per conversation

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/claudebot/internal/provider"
	"github.com/openclaw/claudebot/internal/store"
)

// ErrEmptyContent is returned when a turn is submitted with no content.
// Validation happens before any write.
var ErrEmptyContent = errors.New("message content is empty")

// Relay mediates between transports and the completion provider.
// Key principle: record first, then act. The user message is persisted
// BEFORE the provider call, so the user's input survives a failed reply.
type Relay struct {
	store      store.Store
	provider   provider.Provider
	maxHistory int
	logger     *slog.Logger

	// mu guards locks; each conversation gets its own mutex so turns on
	// one conversation are serialized while others run in parallel
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a relay. maxHistory caps how many persisted messages are
// forwarded to the provider per turn; 0 means no cap. The persisted
// history itself is never trimmed.
func New(st store.Store, p provider.Provider, maxHistory int, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		store:      st,
		provider:   p,
		maxHistory: maxHistory,
		logger:     logger.With("component", "relay"),
		locks:      make(map[string]*sync.Mutex),
	}
}

// TurnResult carries both persisted sides of a turn. On provider failure
// UserMessage is set and AssistantMessage is nil, so callers can tell
// "saved but unanswered" from "nothing happened".
type TurnResult struct {
	UserMessage      *store.Message
	AssistantMessage *store.Message
}

// Turn runs one request/response cycle for an existing conversation:
// persist the user message, load the ordered history, ask the provider,
// persist and return the reply.
//
// A turn against an unknown conversation fails with store.ErrNotFound
// and writes nothing. Turns against the same conversation are serialized;
// each provider call sees a complete history of fully preceding turns.
func (r *Relay) Turn(ctx context.Context, conversationID, content string) (*TurnResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	lock := r.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	// Reject unknown conversations before any write; the relay never
	// creates conversations implicitly
	if _, err := r.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	r.logger.Debug("user message recorded",
		"conversation_id", conversationID,
		"message_id", userMsg.ID)

	history, err := r.store.GetMessages(ctx, conversationID)
	if err != nil {
		return &TurnResult{UserMessage: userMsg}, fmt.Errorf("loading history: %w", err)
	}

	reply, err := r.provider.Complete(ctx, r.providerHistory(history))
	if err != nil {
		// User message stays persisted; no assistant message is written
		return &TurnResult{UserMessage: userMsg}, fmt.Errorf("completion failed: %w", err)
	}

	assistantMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Content:        reply,
		CreatedAt:      time.Now().UTC(),
	}
	if assistantMsg.CreatedAt.Before(userMsg.CreatedAt) {
		assistantMsg.CreatedAt = userMsg.CreatedAt
	}
	if err := r.store.CreateMessage(ctx, assistantMsg); err != nil {
		return &TurnResult{UserMessage: userMsg}, fmt.Errorf("recording assistant message: %w", err)
	}

	r.logger.Debug("turn completed",
		"conversation_id", conversationID,
		"user_message_id", userMsg.ID,
		"assistant_message_id", assistantMsg.ID)

	return &TurnResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// providerHistory maps persisted messages to the provider's shape.
// System rows are excluded; system context reaches the provider only
// through its configured system prompt. The window cap keeps the most
// recent maxHistory entries.
func (r *Relay) providerHistory(history []*store.Message) []provider.ChatMessage {
	messages := make([]provider.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == store.RoleSystem {
			continue
		}
		messages = append(messages, provider.ChatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	if r.maxHistory > 0 && len(messages) > r.maxHistory {
		messages = messages[len(messages)-r.maxHistory:]
	}
	return messages
}

// conversationLock returns the mutex for a conversation id, creating it
// on first use. Locks are never removed; a conversation id is a small
// key and turn traffic reuses them.
func (r *Relay) conversationLock(conversationID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[conversationID] = lock
	}
	return lock
}
