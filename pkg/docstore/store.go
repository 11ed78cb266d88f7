package docstore

import (
	"context"
	"maps"
	"time"
)

// Document is a schemaless record. Values are plain Go types (string, bool,
// float64/int64, time.Time, []any, map[string]any) so that documents survive
// a round trip through either implementation unchanged.
type Document = map[string]any

// Entry pairs a document with its identifier, for query results where the
// identifier itself carries meaning (for example reservation collections
// keyed by the reserved handle).
type Entry struct {
	ID  string
	Doc Document
}

// Tx is the view of the store inside a transaction. Reads observe the state
// the transaction started from plus the transaction's own writes; writes are
// applied atomically when the callback returns nil and discarded otherwise.
type Tx interface {
	Get(collection, id string) (Document, error)
	Set(collection, id string, data Document, merge bool)
	Delete(collection, id string)
}

// Store is the document store contract consumed by the identity core.
type Store interface {
	// GetDocument returns the document or ErrNotFound.
	GetDocument(ctx context.Context, collection, id string) (Document, error)

	// SetDocument writes the document. With merge set, only the provided
	// fields are updated and the rest of an existing document is kept.
	SetDocument(ctx context.Context, collection, id string, data Document, merge bool) error

	// DeleteDocument removes the document. Deleting an absent document is
	// not an error.
	DeleteDocument(ctx context.Context, collection, id string) error

	// RunTransaction executes fn atomically. The error returned by fn is
	// propagated to the caller wrapped in ErrTxAborted.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// QueryWhere returns the documents in collection whose field compares
	// to value under op. Only the "==" operator is required.
	QueryWhere(ctx context.Context, collection, field, op string, value any) ([]Entry, error)
}

// CloneDocument returns a shallow-plus-slices copy of doc so callers can
// mutate query results without aliasing stored state.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	maps.Copy(out, doc)
	for k, v := range out {
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			copy(cp, s)
			out[k] = cp
		}
	}
	return out
}

// AsTime coerces the createdAt-style values either implementation may hand
// back (time.Time from Memory, primitive datetimes decoded as time.Time from
// Mongo, RFC 3339 strings from JSON fixtures) into a time.Time.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	case int64:
		return time.UnixMilli(t), true
	case float64:
		return time.UnixMilli(int64(t)), true
	}
	return time.Time{}, false
}
