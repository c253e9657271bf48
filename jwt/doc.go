// Package jwt verifies provider-issued RS256 access tokens and decodes them
// into [identity.Claims].
//
// Every failure is a [*VerifyError] carrying a [Kind], so callers can tell an
// expired token from a bad signature or an unreachable key endpoint. The HTTP
// layer collapses all of them into a uniform 401 (502 for key fetch).
package jwt
