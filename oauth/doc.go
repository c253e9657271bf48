// Package oauth runs the authorization-code flow against the identity
// provider: it redirects browsers to the provider login, exchanges the
// returned code for an access token, verifies that token, and records the
// resulting identity in a session.
//
// # Flow states
//
//	Unauthenticated --Initiate--> AwaitingCallback --Callback--> Authenticated
//	Authenticated --Logout--> Unauthenticated
//
// Initiate keeps no server-side state. With StateCheck enabled the random
// state value travels in a short-lived signed cookie.
//
// # Failure reporting
//
// Every callback failure aborts without creating a session. Responses carry
// only the status text from [StatusFor]; the specific reason goes to logs
// and hooks.
package oauth
