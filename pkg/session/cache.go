package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/campushub/identity/pkg/kv"
)

// BackupKey is the durable-tier key the session backup is stored under.
const BackupKey = "auth_state_backup"

// Cache is the dual-tier session cache: a memory tier for fast synchronous
// access within the process and a durable key-value tier for the
// remember-me backup. Durable-tier failures are logged and swallowed; the
// cache then behaves as if the durable tier were simply empty.
type Cache struct {
	mu      sync.RWMutex
	current *Session

	durable kv.Store
	logger  *slog.Logger
}

// CacheOption configures a Cache during construction.
type CacheOption func(*Cache)

// WithCacheLogger configures the logger for durable-tier failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a session cache over the given durable store.
func NewCache(durable kv.Store, opts ...CacheOption) *Cache {
	c := &Cache{
		durable: durable,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the memory-tier session, or nil when signed out.
func (c *Cache) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Save writes the session to the memory tier and, best-effort, to the
// durable tier. A durable-tier failure is never propagated.
func (c *Cache) Save(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	cp := *s

	c.mu.Lock()
	c.current = &cp
	c.mu.Unlock()

	data, err := json.Marshal(cp)
	if err != nil {
		c.logger.ErrorContext(ctx, "encode session backup", "error", err)
		return
	}
	if err := c.durable.SetItem(ctx, BackupKey, data); err != nil {
		c.logger.WarnContext(ctx, "durable session backup unavailable, continuing without it",
			"error", err)
	}
}

// Clear removes both tiers. Durable-tier failures are swallowed.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if err := c.durable.RemoveItem(ctx, BackupKey); err != nil && !errors.Is(err, kv.ErrNotFound) {
		c.logger.WarnContext(ctx, "clear durable session backup failed", "error", err)
	}
}

// Invalidate drops the memory tier only. The durable backup survives, so a
// remember-me restore stays possible after a provider-initiated sign-out.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// LoadDurable reads the durable-tier backup. It returns nil when the backup
// is absent, unreadable, or was written without remember-me; in the last
// case the stale backup is cleared as well.
func (c *Cache) LoadDurable(ctx context.Context) *Session {
	data, err := c.durable.GetItem(ctx, BackupKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger.WarnContext(ctx, "durable session backup unreadable, treating as empty",
				"error", err)
		}
		return nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.WarnContext(ctx, "corrupt session backup, discarding", "error", err)
		c.Clear(ctx)
		return nil
	}

	if !s.RememberMe {
		c.logger.InfoContext(ctx, "session backup without remember-me, clearing", "uid", s.UID)
		c.Clear(ctx)
		return nil
	}
	return &s
}
