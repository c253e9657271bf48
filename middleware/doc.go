// Package middleware exposes HTTP adapters that put authgate.Engine in front
// of collaborator handlers.
//
// # Guards
//
//   - [Guard]: session cookie, role policy from authgate.Decide.
//   - [RequireAdmin]: like Guard, but only admin sessions pass.
//   - [RequireBearer]: Authorization: Bearer access token, no session store.
//
// Guards write only http.StatusText bodies on deny and inject the session into
// the request context on allow.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authorization logic itself.
package middleware
