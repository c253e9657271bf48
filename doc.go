// Package authgate is an access-control gateway for a resource API. It signs
// browsers in through an OAuth2 authorization-code flow, verifies the
// provider's RS256 access token, keeps the verified identity in a
// server-side session, and answers a per-request authorization question for
// collaborator handlers.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// [Decision] and the pure [Decide] policy. Token verification lives in jwt,
// key retrieval in keys, session persistence in session, and the redirect
// flow in oauth. Those packages never import authgate.
//
// # Authorization policy
//
//	no session / unauthenticated  -> deny 401
//	admin                         -> allow any method
//	user                          -> allow GET, deny 403 otherwise
//
// Store failures deny with 500. Nothing in this package grants access on an
// error path.
package authgate
