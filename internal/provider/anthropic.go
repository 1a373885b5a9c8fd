// ABOUTME: Anthropic Messages API client implementing the Provider interface
// ABOUTME: Plain net/http JSON client with configurable model and timeouts

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	defaultTimeout   = 2 * time.Minute
	apiVersion       = "2023-06-01"
)

// AnthropicConfig holds the settings for the Anthropic client.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	BaseURL      string
	Timeout      time.Duration
}

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	cfg    AnthropicConfig
	client *http.Client
	logger *slog.Logger
}

// NewAnthropicClient creates a client with defaults filled in.
// An API key is required.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &AnthropicClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: slog.Default().With("component", "provider"),
	}, nil
}

// messagesRequest is the JSON body for POST /v1/messages.
type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
}

// messagesResponse is the JSON body of a successful completion.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// errorResponse is the JSON body of a failed request.
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the ordered history and returns the assistant's reply text.
// Non-2xx responses come back as *APIError; transport failures are wrapped.
func (c *AnthropicClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to complete")
	}

	body, err := json.Marshal(messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      c.cfg.SystemPrompt,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completion provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil {
			apiErr.Type = errResp.Error.Type
			apiErr.Message = errResp.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("provider request failed",
			"status", resp.StatusCode,
			"type", apiErr.Type,
			"elapsed", time.Since(start))
		return "", apiErr
	}

	var result messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Type:       "malformed_response",
			Message:    err.Error(),
		}
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Type:       "malformed_response",
			Message:    "response contained no text content",
		}
	}

	c.logger.Debug("completion finished",
		"model", c.cfg.Model,
		"messages", len(messages),
		"elapsed", time.Since(start))
	return text.String(), nil
}

// Ensure AnthropicClient implements Provider
var _ Provider = (*AnthropicClient)(nil)
