// ABOUTME: REST API handlers for conversation CRUD and message turns
// ABOUTME: Maps relay and store errors onto HTTP status codes

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/claudebot/internal/provider"
	"github.com/openclaw/claudebot/internal/relay"
	"github.com/openclaw/claudebot/internal/store"
)

// ConversationResponse is the JSON shape for a conversation.
type ConversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageResponse is the JSON shape for a message.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// RenameConversationRequest is the JSON request body for PATCH /api/conversations/{id}.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// PostMessageRequest is the JSON request body for POST /api/conversations/{id}/messages.
type PostMessageRequest struct {
	Content string `json:"content"`
}

func conversationToResponse(conv *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func messageToResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339Nano),
	}
}

// handleConversations routes /api/conversations by HTTP method.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListConversations(w, r)
	case http.MethodPost:
		s.handleCreateConversation(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleListConversations handles GET /api/conversations.
// Conversations are ordered by most recent activity first.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(r.Context(), 0)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		response = append(response, conversationToResponse(conv))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCreateConversation handles POST /api/conversations.
// The title is optional; an empty body or empty title gets the default.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv := &store.Conversation{
		ID:    uuid.New().String(),
		Title: req.Title,
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.logger.Error("failed to create conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conversationToResponse(conv))
}

// handleConversationRoutes dispatches /api/conversations/{id} and
// /api/conversations/{id}/messages.
func (s *Server) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	if rest == "" {
		s.sendJSONError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/messages"); ok {
		s.handleMessages(w, r, id)
		return
	}

	if strings.Contains(rest, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetConversation(w, r, rest)
	case http.MethodPatch:
		s.handleRenameConversation(w, r, rest)
	case http.MethodDelete:
		s.handleDeleteConversation(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleGetConversation handles GET /api/conversations/{id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, id string) {
	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversationToResponse(conv))
}

// handleRenameConversation handles PATCH /api/conversations/{id}.
func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request, id string) {
	var req RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.sendJSONError(w, http.StatusBadRequest, "title is required")
		return
	}

	err := s.store.RenameConversation(r.Context(), id, req.Title)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to rename conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to reload conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversationToResponse(conv))
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
// The delete cascades to the conversation's messages.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, id string) {
	err := s.store.DeleteConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMessages routes /api/conversations/{id}/messages by HTTP method.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetMessages(w, r, id)
	case http.MethodPost:
		s.handlePostMessage(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleGetMessages handles GET /api/conversations/{id}/messages.
// Unknown conversations get 404 rather than an empty array, so callers
// can tell "no messages yet" from "no such conversation".
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("failed to get conversation", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get messages", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messageToResponse(msg))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handlePostMessage handles POST /api/conversations/{id}/messages.
// Runs one relay turn and returns the persisted assistant message.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, id string) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// The turn must outlive the request: a client disconnect neither
	// aborts the in-flight provider call nor the pending writes, it only
	// makes the result undeliverable.
	result, err := s.relay.Turn(context.WithoutCancel(r.Context()), id, req.Content)
	if err != nil {
		s.writeTurnError(w, result, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(messageToResponse(result.AssistantMessage))
}

// writeTurnError maps a failed turn onto an HTTP response.
// Provider failures are distinguishable from storage failures, and the
// response says whether the user message survived.
func (s *Server) writeTurnError(w http.ResponseWriter, result *relay.TurnResult, err error) {
	switch {
	case errors.Is(err, relay.ErrEmptyContent):
		s.sendJSONError(w, http.StatusBadRequest, "content is required")

	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")

	default:
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) {
			s.logger.Warn("provider failed during turn", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			body := map[string]string{
				"error": "completion provider failed; your message was saved",
			}
			if result != nil && result.UserMessage != nil {
				body["user_message_id"] = result.UserMessage.ID
			}
			json.NewEncoder(w).Encode(body)
			return
		}

		s.logger.Error("turn failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
