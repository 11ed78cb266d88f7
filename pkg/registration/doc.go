// Package registration creates accounts together with their profile
// documents and unique-handle reservations.
//
// The flow is compensating rather than transactional end to end, because
// the authentication provider and the document store cannot share a
// transaction. The Coordinator orders the steps so every failure mode
// cleans up after itself:
//
//  1. snapshot the submitted form as a pending profile (scratch cache)
//  2. create the provider account
//  3. claim the username reservation; a conflict deletes the account and
//     fails with ErrUsernameTaken
//  4. in one store transaction, claim the e-mail reservation and write the
//     initial profile document; a conflict releases the username, deletes
//     the account, and fails with ErrEmailTaken
//  5. clear the pending snapshot and send the verification mail
//
// Two concurrent registrations for the same handle therefore end with
// exactly one account: the loser's provider account is deleted again.
package registration
