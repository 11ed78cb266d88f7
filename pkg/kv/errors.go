package kv

import "errors"

var (
	// ErrNotFound is returned when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrFailedToConnect is returned when the backing server cannot be
	// reached during construction.
	ErrFailedToConnect = errors.New("failed to connect to key-value store")

	// ErrHealthcheckFailed is returned by the readiness probe.
	ErrHealthcheckFailed = errors.New("key-value store healthcheck failed")
)
