// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

provider:
  api_key: "sk-test"
  model: "claude-sonnet-4-5-20250929"
  max_tokens: 2048
  temperature: 0.7
  system_prompt: "You are a helpful assistant."
  timeout: "90s"

chat:
  max_history_messages: 40

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("Provider.APIKey = %q, want %q", cfg.Provider.APIKey, "sk-test")
	}
	if cfg.Provider.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("Provider.Model = %q", cfg.Provider.Model)
	}
	if cfg.Provider.MaxTokens != 2048 {
		t.Errorf("Provider.MaxTokens = %d, want 2048", cfg.Provider.MaxTokens)
	}
	if cfg.Provider.Timeout != 90*time.Second {
		t.Errorf("Provider.Timeout = %v, want 90s", cfg.Provider.Timeout)
	}
	if cfg.Chat.MaxHistoryMessages != 40 {
		t.Errorf("Chat.MaxHistoryMessages = %d, want 40", cfg.Chat.MaxHistoryMessages)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CLAUDEBOT_KEY", "sk-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
provider:
  api_key: "${TEST_CLAUDEBOT_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("Provider.APIKey = %q, want %q", cfg.Provider.APIKey, "sk-from-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
provider:
  api_key: "sk-test"
  timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error should mention timeout, got: %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing http_addr",
			cfg: Config{
				Database: DatabaseConfig{Path: "./test.db"},
				Provider: ProviderConfig{APIKey: "k"},
			},
			want: "server.http_addr",
		},
		{
			name: "missing database path",
			cfg: Config{
				Server:   ServerConfig{HTTPAddr: ":8080"},
				Provider: ProviderConfig{APIKey: "k"},
			},
			want: "database.path",
		},
		{
			name: "missing api key",
			cfg: Config{
				Server:   ServerConfig{HTTPAddr: ":8080"},
				Database: DatabaseConfig{Path: "./test.db"},
			},
			want: "provider.api_key",
		},
		{
			name: "negative history window",
			cfg: Config{
				Server:   ServerConfig{HTTPAddr: ":8080"},
				Database: DatabaseConfig{Path: "./test.db"},
				Provider: ProviderConfig{APIKey: "k"},
				Chat:     ChatConfig{MaxHistoryMessages: -1},
			},
			want: "max_history_messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}
