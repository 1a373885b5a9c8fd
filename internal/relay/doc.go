// Package relay orchestrates a single conversation turn.
//
// A turn is: persist the inbound user message, reconstruct the ordered
// history, forward it to the completion provider, persist the reply,
// return both persisted messages to the caller.
//
// # Failure Contract
//
// The relay never partially commits a reply. If the provider call fails,
// the user message from the first step stays persisted and the caller
// gets an error wrapping *provider.APIError; no assistant row is written.
// A turn against an unknown conversation fails with store.ErrNotFound
// before anything is written.
//
// # Serialization
//
// Turns against the same conversation are serialized with a per-id
// mutex so interleaved history reads cannot feed the provider an
// incomplete or duplicated history. Turns against different
// conversations run fully in parallel.
package relay
