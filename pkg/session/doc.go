// Package session defines the authenticated session value and the dual-tier
// cache that lets it survive application restarts.
//
// A Session is either live (established by the authentication provider in
// this process) or restored (synthesized from the durable backup written by
// a previous process). The two are interchangeable on read paths; anything
// that mutates provider-side identity requires a live provider account, so a
// restored session cannot silently swallow writes the way a stubbed-out
// provider user would.
//
// The durable backup intentionally has no expiry: once a user signs in with
// remember-me enabled, auto sign-in stays valid until an explicit sign-out
// clears the backup.
package session
