// Package logger is a thin factory around log/slog with functional options,
// per-environment presets, and context attribute injection.
//
// Every service in this module takes an injected *slog.Logger; this package
// is where the one logger they share gets built:
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "identity"),
//		logger.WithContextValue("request_id", ctxKeyRequestID),
//	)
//	logger.SetAsDefault(log)
//
// Attribute helpers (Error, UID, Username, Component, ...) keep key naming
// consistent across packages; the nil-tolerant ones return an empty Attr so
// call sites never need a conditional.
package logger
