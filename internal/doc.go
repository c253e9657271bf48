// Package internal contains helpers private to authgate: random session ids,
// OAuth state values and key hashing.
//
// # Sub-packages
//
//   - rate: Redis-backed fixed-window counters for failed callbacks
//   - testidp: in-process identity provider for tests and examples
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
