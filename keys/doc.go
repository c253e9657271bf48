// Package keys retrieves the identity provider's signing public key.
//
// [HTTPFetcher] performs one GET per call against the provider's key
// endpoint and understands PEM as well as JWK / JWK Set bodies. [Cache]
// layers a bounded freshness window on top so provider-side rotation is
// observed within TTL, with a single in-flight refresh per stale key.
//
// # What this package must NOT do
//
//   - Verify tokens or interpret claims.
//   - Retry failed fetches on its own.
package keys
