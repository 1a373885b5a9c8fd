// Package provider defines the external completion provider boundary.
//
// The relay treats the provider as an opaque, possibly slow, possibly
// failing collaborator: ordered {role, content} history in, one reply
// text out. AnthropicClient is the production implementation, talking
// to the Messages API over plain HTTP.
//
// Failures surface as *APIError so transports can map provider errors
// to a different status than storage errors. The client never retries;
// retry policy, if any, belongs to the caller.
package provider
