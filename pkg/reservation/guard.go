package reservation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/sanitizer"
)

// Kind selects the reservation namespace.
type Kind string

const (
	// KindUsername reserves user-chosen handles.
	KindUsername Kind = "usernames"
	// KindEmail reserves e-mail addresses.
	KindEmail Kind = "emails"
)

// ErrConflict is returned when the key is already bound to a different
// account.
var ErrConflict = errors.New("handle already reserved")

// Guard claims unique handles against the document store.
type Guard struct {
	store  docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardLogger configures the logger.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardClock overrides the time source.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard creates a reservation guard over the given store.
func NewGuard(store docstore.Store, opts ...GuardOption) *Guard {
	g := &Guard{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Claim binds key to uid in the kind namespace. It is idempotent for the
// same uid and returns ErrConflict (wrapped with kind and key) when the key
// belongs to someone else. The read and the write happen in one
// transaction.
func (g *Guard) Claim(ctx context.Context, kind Kind, key, uid string) error {
	key = sanitizer.TrimLower(key)
	if key == "" {
		return fmt.Errorf("claim %s: empty key", kind)
	}

	err := g.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		return g.ClaimTx(tx, kind, key, uid)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("%w: %s %q", ErrConflict, kind, key)
		}
		return fmt.Errorf("claim %s %q: %w", kind, key, err)
	}

	g.logger.DebugContext(ctx, "handle claimed", "kind", string(kind), "key", key, "uid", uid)
	return nil
}

// ClaimTx is Claim inside a caller-owned transaction, for flows that bind a
// handle and write dependent documents atomically. The key must already be
// normalized.
func (g *Guard) ClaimTx(tx docstore.Tx, kind Kind, key, uid string) error {
	key = sanitizer.TrimLower(key)
	doc, err := tx.Get(string(kind), key)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	if doc != nil {
		if owner, _ := doc["userId"].(string); owner != uid {
			return fmt.Errorf("%w: %s %q", ErrConflict, kind, key)
		}
		// Re-claim by the same account is a no-op.
		return nil
	}
	tx.Set(string(kind), key, docstore.Document{
		"userId":    uid,
		"createdAt": g.now(),
	}, false)
	return nil
}

// FindByUID reverse-looks-up the handle bound to uid in the kind namespace.
// Returns docstore.ErrNotFound when the account holds no reservation.
func (g *Guard) FindByUID(ctx context.Context, kind Kind, uid string) (string, error) {
	entries, err := g.store.QueryWhere(ctx, string(kind), "userId", "==", uid)
	if err != nil {
		return "", fmt.Errorf("lookup %s by uid: %w", kind, err)
	}
	if len(entries) == 0 {
		return "", docstore.ErrNotFound
	}
	return entries[0].ID, nil
}

// Release removes the binding, but only when it belongs to uid.
func (g *Guard) Release(ctx context.Context, kind Kind, key, uid string) error {
	key = sanitizer.TrimLower(key)
	return g.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(string(kind), key)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			return err
		}
		if owner, _ := doc["userId"].(string); owner != uid {
			return fmt.Errorf("%w: %s %q", ErrConflict, kind, key)
		}
		tx.Delete(string(kind), key)
		return nil
	})
}
