// Package reservation implements the atomic check-then-claim primitive for
// globally unique handles (usernames and e-mail addresses).
//
// A reservation is a document in a per-kind collection whose identifier is
// the lowercased handle and whose body binds it to exactly one account id.
// Claims run inside a document-store transaction, so the store itself,
// not application code, serializes concurrent claims on the same key.
package reservation
