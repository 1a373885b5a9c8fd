// Package config loads and validates claudebot configuration.
//
// Configuration is YAML with ${VAR} environment expansion applied to the
// raw file before parsing, so secrets like the provider API key can live
// in the environment:
//
//	server:
//	  http_addr: ":8080"
//	database:
//	  path: "~/.local/share/claudebot/claudebot.db"
//	provider:
//	  api_key: "${ANTHROPIC_API_KEY}"
//	  model: "claude-sonnet-4-5-20250929"
//	  timeout: "2m"
//	chat:
//	  max_history_messages: 40
//	logging:
//	  level: "info"
//	  format: "text"
//
// Duration fields are written as Go duration strings and parsed at load
// time. Load fails fast on missing required fields.
package config
