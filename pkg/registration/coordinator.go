package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/campushub/identity/pkg/auth"
	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/idp"
	"github.com/campushub/identity/pkg/profile"
	"github.com/campushub/identity/pkg/reservation"
	"github.com/campushub/identity/pkg/scratch"
	"github.com/campushub/identity/pkg/session"
)

// Coordinator runs the registration flow: pending snapshot, account
// creation, handle claims, profile write, and the compensating cleanup when
// any uniqueness check loses.
type Coordinator struct {
	provider idp.Provider
	guard    *reservation.Guard
	store    docstore.Store
	pending  scratch.Cache
	sessions *session.Cache

	logger *slog.Logger
	now    func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger configures the logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoordinatorClock overrides the time source.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator wires the registration flow. The pending cache is
// optional; pass nil to skip intent snapshots.
func NewCoordinator(provider idp.Provider, guard *reservation.Guard, store docstore.Store, pending scratch.Cache, sessions *session.Cache, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		provider: provider,
		guard:    guard,
		store:    store,
		pending:  pending,
		sessions: sessions,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates the account and its profile. Uniqueness losses surface
// as ErrUsernameTaken / ErrEmailTaken, and every failure after the provider
// account exists deletes it again, so a failed registration leaves no
// half-created identity behind.
func (c *Coordinator) Register(ctx context.Context, form Form) (*auth.Result, error) {
	form.normalize()
	if err := form.validate(); err != nil {
		return nil, err
	}

	// Snapshot the intent first: a reconciliation racing this flow reads
	// the submitted values instead of guessing.
	if c.pending != nil {
		if err := scratch.SavePendingProfile(ctx, c.pending, form.pendingProfile(), scratch.DefaultPendingTTL); err != nil {
			c.logger.WarnContext(ctx, "pending snapshot unavailable, registering without it", "error", err)
		}
	}

	acct, err := c.provider.CreateAccount(ctx, form.Email, form.Password)
	if err != nil {
		if idp.CodeOf(err) == idp.CodeEmailAlreadyInUse {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := c.guard.Claim(ctx, reservation.KindUsername, form.Username, acct.UID); err != nil {
		c.compensate(ctx, acct.UID, "")
		if errors.Is(err, reservation.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("claim username: %w", err)
	}

	p := form.newProfile(acct.UID, c.now())
	err = c.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := c.guard.ClaimTx(tx, reservation.KindEmail, form.Email, acct.UID); err != nil {
			return err
		}
		tx.Set(profile.UsersCollection, acct.UID, p.Document(), false)
		return nil
	})
	if err != nil {
		c.compensate(ctx, acct.UID, form.Username)
		if errors.Is(err, reservation.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("write profile: %w", err)
	}

	if c.pending != nil {
		if err := scratch.ClearPendingProfile(ctx, c.pending); err != nil {
			c.logger.WarnContext(ctx, "clear pending snapshot failed", "error", err)
		}
	}

	// Post-commit niceties: the registration already succeeded, so these
	// only get logged.
	if err := c.provider.UpdateProfile(ctx, form.DisplayName, ""); err != nil {
		c.logger.WarnContext(ctx, "set provider display name failed", "uid", acct.UID, "error", err)
	}
	if err := c.provider.SendVerificationEmail(ctx); err != nil {
		c.logger.WarnContext(ctx, "send verification email failed", "uid", acct.UID, "error", err)
	}

	sess := &session.Session{
		UID:         acct.UID,
		Email:       acct.Email,
		DisplayName: form.DisplayName,
		UserType:    form.UserType,
		SavedAt:     c.now(),
		RememberMe:  form.RememberMe,
		AutoSignIn:  form.RememberMe,
		Origin:      session.OriginLive,
	}
	c.sessions.Save(ctx, sess)

	c.logger.InfoContext(ctx, "account registered",
		"uid", acct.UID, "username", form.Username, "user_type", form.UserType)
	return &auth.Result{Session: sess, Profile: p}, nil
}

// compensate undoes a partial registration: release the username claim when
// one was made, then delete the provider account. Cleanup failures are
// logged, never returned; the caller's error explains the registration
// failure.
func (c *Coordinator) compensate(ctx context.Context, uid, claimedUsername string) {
	if claimedUsername != "" {
		if err := c.guard.Release(ctx, reservation.KindUsername, claimedUsername, uid); err != nil {
			c.logger.ErrorContext(ctx, "release username after failed registration",
				"uid", uid, "username", claimedUsername, "error", err)
		}
	}
	if err := c.provider.DeleteAccount(ctx, uid); err != nil {
		c.logger.ErrorContext(ctx, "delete account after failed registration",
			"uid", uid, "error", err)
	}
}
