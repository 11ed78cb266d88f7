package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/idp"
	"github.com/campushub/identity/pkg/profile"
	"github.com/campushub/identity/pkg/sanitizer"
	"github.com/campushub/identity/pkg/session"
)

// DefaultVerificationCooldown is the minimum interval between verification
// mails for the same process.
const DefaultVerificationCooldown = 60 * time.Second

// MinPasswordLength is the provider-side minimum, checked locally to avoid
// a round trip on obviously bad input.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Result is what a successful sign-in or restore yields. Profile is nil
// when the profile store was unreachable; the session is still valid.
type Result struct {
	Session *session.Session
	Profile *profile.Profile
}

// Service drives the session lifecycle: credential sign-in, restore from
// the durable backup, verification state, and sign-out.
type Service struct {
	provider idp.Provider
	sessions *session.Cache
	profiles *profile.Reconciler
	store    docstore.Store

	logger *slog.Logger
	now    func() time.Time

	cooldownMu       sync.Mutex
	cooldown         time.Duration
	lastVerification time.Time
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithServiceLogger configures the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceClock overrides the time source.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVerificationCooldown overrides the interval between verification
// mails.
func WithVerificationCooldown(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// NewService wires the session service and subscribes it to provider
// auth-state transitions: a provider-side sign-out invalidates the memory
// tier while the remember-me backup stays intact.
func NewService(provider idp.Provider, sessions *session.Cache, profiles *profile.Reconciler, store docstore.Store, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		sessions: sessions,
		profiles: profiles,
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		cooldown: DefaultVerificationCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}

	provider.OnAuthStateChanged(func(acct *idp.Account) {
		if acct == nil {
			s.sessions.Invalidate()
		}
	})
	return s
}

// SignIn authenticates the credentials and establishes a live session.
// Provider failures come back as *SignInError; local validation failures as
// ErrInvalidEmail / ErrPasswordTooShort before any provider call.
func (s *Service) SignIn(ctx context.Context, email, password string, rememberMe bool) (*Result, error) {
	email = sanitizer.NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	acct, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, newSignInError(err)
	}

	sess := s.sessionFromAccount(acct, rememberMe)
	s.sessions.Save(ctx, sess)

	p := s.repairProfile(ctx, acct.UID)
	if p != nil && p.UserType != "" && p.UserType != sess.UserType {
		sess.UserType = p.UserType
		s.sessions.Save(ctx, sess)
	}

	s.logger.InfoContext(ctx, "signed in", "uid", acct.UID, "remember_me", rememberMe)
	return &Result{Session: sess, Profile: p}, nil
}

// RestoreSession re-establishes a session on process start. A live provider
// account wins; otherwise the durable remember-me backup is promoted to a
// restored session if it opted into auto sign-in. ErrNoSession means there
// is nothing to restore.
func (s *Service) RestoreSession(ctx context.Context) (*Result, error) {
	acct, err := s.provider.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("query current account: %w", err)
	}
	if acct != nil {
		rememberMe := false
		if prev := s.sessions.Current(); prev != nil && prev.UID == acct.UID {
			rememberMe = prev.RememberMe
		} else if backup := s.sessions.LoadDurable(ctx); backup != nil && backup.UID == acct.UID {
			rememberMe = backup.RememberMe
		}
		sess := s.sessionFromAccount(acct, rememberMe)
		s.sessions.Save(ctx, sess)

		p := s.repairProfile(ctx, acct.UID)
		s.logger.InfoContext(ctx, "restored live session", "uid", acct.UID)
		return &Result{Session: sess, Profile: p}, nil
	}

	backup := s.sessions.LoadDurable(ctx)
	if backup == nil || !backup.AutoSignIn {
		return nil, ErrNoSession
	}

	restored := *backup
	restored.Origin = session.OriginRestored
	s.sessions.Save(ctx, &restored)

	p := s.repairProfile(ctx, restored.UID)
	s.logger.InfoContext(ctx, "restored session from backup",
		"uid", restored.UID, "saved_at", restored.SavedAt)
	return &Result{Session: &restored, Profile: p}, nil
}

// SignOut ends the session. The local caches are cleared before the
// provider call so a provider failure can never leave a signed-out account
// with a live-looking local session.
func (s *Service) SignOut(ctx context.Context) error {
	s.sessions.Clear(ctx)
	if err := s.provider.SignOut(ctx); err != nil {
		s.sessions.Clear(ctx)
		return fmt.Errorf("provider sign out: %w", err)
	}
	return nil
}

// CheckEmailVerification reloads provider state and reports whether the
// address is verified. The first observation of the verified flag also
// records it on the profile document and re-runs reconciliation so the
// handle backfill happens right away.
func (s *Service) CheckEmailVerification(ctx context.Context) (bool, error) {
	acct, err := s.provider.CurrentUser(ctx)
	if err != nil {
		return false, fmt.Errorf("query current account: %w", err)
	}
	if acct == nil {
		return false, ErrNotSignedIn
	}
	if err := s.provider.Reload(ctx); err != nil {
		return false, fmt.Errorf("reload account: %w", err)
	}
	acct, err = s.provider.CurrentUser(ctx)
	if err != nil {
		return false, fmt.Errorf("query current account: %w", err)
	}
	if !acct.EmailVerified {
		return false, nil
	}

	update := docstore.Document{
		"emailVerified": true,
		"verifiedAt":    s.now(),
	}
	if err := s.store.SetDocument(ctx, profile.UsersCollection, acct.UID, update, true); err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return true, fmt.Errorf("record verification: %w", err)
		}
	}
	s.repairProfile(ctx, acct.UID)

	if sess := s.sessions.Current(); sess != nil && sess.UID == acct.UID && !sess.EmailVerified {
		cp := *sess
		cp.EmailVerified = true
		s.sessions.Save(ctx, &cp)
	}
	return true, nil
}

// SendEmailVerification asks the provider for a verification mail, at most
// once per cooldown interval. A throttled request fails with
// *VerificationThrottledError carrying the remaining wait.
func (s *Service) SendEmailVerification(ctx context.Context) error {
	s.cooldownMu.Lock()
	elapsed := s.now().Sub(s.lastVerification)
	if !s.lastVerification.IsZero() && elapsed < s.cooldown {
		remaining := s.cooldown - elapsed
		s.cooldownMu.Unlock()
		return &VerificationThrottledError{Remaining: remaining}
	}
	s.cooldownMu.Unlock()

	if err := s.provider.SendVerificationEmail(ctx); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}

	s.cooldownMu.Lock()
	s.lastVerification = s.now()
	s.cooldownMu.Unlock()
	return nil
}

// CheckEmailExists reports whether any profile document carries the
// address. Used for pre-registration checks and the password-reset gate.
func (s *Service) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	email = sanitizer.NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return false, ErrInvalidEmail
	}
	entries, err := s.store.QueryWhere(ctx, profile.UsersCollection, "email", "==", email)
	if err != nil {
		return false, fmt.Errorf("query email: %w", err)
	}
	return len(entries) > 0, nil
}

// ResetPassword sends a password-reset mail, but only for addresses that
// have a profile; unknown addresses fail with ErrEmailNotRegistered instead
// of leaking a provider mail attempt.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	exists, err := s.CheckEmailExists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return ErrEmailNotRegistered
	}
	if err := s.provider.SendPasswordResetEmail(ctx, sanitizer.NormalizeEmail(email)); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}

func (s *Service) sessionFromAccount(acct *idp.Account, rememberMe bool) *session.Session {
	return &session.Session{
		UID:           acct.UID,
		Email:         acct.Email,
		EmailVerified: acct.EmailVerified,
		DisplayName:   acct.DisplayName,
		PhotoRef:      acct.PhotoURL,
		SavedAt:       s.now(),
		RememberMe:    rememberMe,
		AutoSignIn:    rememberMe,
		Origin:        session.OriginLive,
	}
}

// repairProfile runs reconciliation and absorbs its failure: the session is
// usable without a profile, so a store outage must not fail the sign-in.
func (s *Service) repairProfile(ctx context.Context, uid string) *profile.Profile {
	p, err := s.profiles.FetchAndRepair(ctx, uid)
	if err != nil {
		s.logger.WarnContext(ctx, "profile unavailable, continuing with session only",
			"uid", uid, "error", err)
		return nil
	}
	return p
}
