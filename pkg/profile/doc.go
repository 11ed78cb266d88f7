// Package profile owns the user profile record and its reconciler.
//
// Profiles are written by concurrent registration and verification flows and
// can end up partially written: a missing username, a display name that is
// really an e-mail address, a club account typed as a student. The
// reconciler reads the raw document, runs an ordered list of independent
// repair rules that each propose a minimal correction, drops any proposal a
// concurrent writer beat it to (optimistic re-check, not locking), and
// commits the rest as a merge write. Repair is opportunistic and idempotent:
// it runs on every fetch until nothing is left to fix.
package profile
