// Package server hosts claudebot's network transport adapters.
//
// A single HTTP server carries both adapters: a JSON REST API under
// /api/conversations for conversation management and single-turn
// messaging, and a WebSocket endpoint at /ws for interactive clients.
// Both adapters are thin: they translate between wire formats and the
// relay, and own no conversation logic themselves.
//
// Error mapping is uniform across transports. Unknown conversations are
// 404, empty content is 400, provider failures are 502 with the saved
// user message id, and storage failures are 500.
package server
