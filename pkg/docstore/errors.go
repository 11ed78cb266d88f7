package docstore

import "errors"

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrTxAborted wraps the cause a transaction callback returned.
	ErrTxAborted = errors.New("transaction aborted")

	// ErrUnsupportedOperator is returned by QueryWhere for operators the
	// store does not implement.
	ErrUnsupportedOperator = errors.New("unsupported query operator")

	// ErrFailedToConnect is returned when the backing server cannot be
	// reached during construction.
	ErrFailedToConnect = errors.New("failed to connect to document store")

	// ErrHealthcheckFailed is returned by the readiness probe.
	ErrHealthcheckFailed = errors.New("document store healthcheck failed")
)
