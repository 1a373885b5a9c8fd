// Package store provides persistent storage for claudebot using SQLite.
//
// # Data Models
//
//   - Conversation: A chat conversation; updated_at tracks the most recent
//     message append and drives the listing order.
//   - Message: A single turn entry with role "user", "assistant", or
//     "system". Content is immutable once written.
//   - ConfigEntry: Key/value configuration with atomic upsert semantics.
//
// # Invariants
//
// The SQLite implementation enforces the core data invariants:
//
//   - Every message belongs to a conversation that exists at write time.
//     CreateMessage runs the insert and the parent updated_at bump in one
//     transaction and fails with ErrNotFound if the parent is gone.
//   - Messages within a conversation are totally ordered by created_at.
//     Timestamps are stored as fixed-width UTC strings so lexicographic
//     order equals chronological order at nanosecond resolution.
//   - DeleteConversation removes the messages and the conversation row in
//     one transaction; no orphan messages can survive.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrInvalidRole: Message role outside {user, assistant, system}
//
// All methods accept context.Context for cancellation support.
package store
