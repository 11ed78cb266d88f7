// Package scratch provides short-TTL scratch storage.
//
// Its one real job in this module is the pending-profile snapshot: a record
// written just before an account-creation call so that the profile
// reconciler, running concurrently on first sign-in, can tell "this field is
// empty because registration has not finished writing it" apart from "this
// field is empty because the record is corrupt". See PendingProfile for the
// typed accessors.
package scratch
