// Package idp abstracts the authentication provider the identity core
// delegates credential checks to.
//
// The provider is an opaque collaborator: this package fixes the operations
// and the error codes the core depends on, not a wire format. MemoryProvider
// is a full in-process implementation (bcrypt password hashing, current-user
// tracking, auth-state listeners) usable both as a test double and as a
// development backend.
package idp
