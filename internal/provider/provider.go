// ABOUTME: Completion provider interface and error types for claudebot
// ABOUTME: Defines the opaque collaborator that turns history into a reply

package provider

import (
	"context"
	"fmt"
)

// ChatMessage is one entry of the ordered history sent to the provider.
// Role is restricted to "user" and "assistant"; system context travels
// separately as the provider's system prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider converts an ordered conversation history into a single reply.
// Implementations may be slow and may fail; callers must not assume any
// internal retry behavior.
type Provider interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// APIError is returned when the provider rejects a request or fails
// upstream. It is distinguishable from storage errors via errors.As.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}
