// Package session provides session persistence for authgate: the [Store]
// contract, an in-memory [MemoryStore], a Redis-backed [RedisStore], and the
// signed cookie codec that carries session ids to clients.
//
// # Binary encoding
//
// Redis values use a compact versioned binary format ([Encode]/[Decode]).
// The session id is the key and is not part of the blob.
//
// # Invariants
//
//   - Sessions are written once with every field set; there are no partial updates.
//   - A session never outlives the access token it was created from.
//   - Session ids are 256-bit random values.
//
// # What this package must NOT do
//
//   - Import authgate, jwt, or oauth (no upward imports).
//   - Make authorization decisions.
package session
