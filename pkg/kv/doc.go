// Package kv provides the durable key-value store used for the cross-restart
// session backup.
//
// The store may be globally unavailable (a device without working local
// storage, Redis down); callers are expected to treat any error as "the
// store is empty" and continue, logging the failure. Nothing in this package
// enforces that policy, it only keeps the contract small enough to make it
// easy to honor.
package kv
