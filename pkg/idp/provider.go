package idp

import (
	"context"
	"time"
)

// Account represents a provider-side user account.
type Account struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	CreatedAt     time.Time
	LastSignInAt  time.Time
}

// Provider is the authentication provider contract.
type Provider interface {
	// CreateAccount registers a new account and signs it in.
	CreateAccount(ctx context.Context, email, password string) (*Account, error)

	// SignIn checks the credentials and makes the account current.
	SignIn(ctx context.Context, email, password string) (*Account, error)

	// SignOut clears the current account.
	SignOut(ctx context.Context) error

	// CurrentUser returns the signed-in account, or nil when there is none.
	CurrentUser(ctx context.Context) (*Account, error)

	// Reload refreshes the current account's server-side state (most
	// importantly the email-verification flag).
	Reload(ctx context.Context) error

	// SendVerificationEmail triggers a verification mail for the current
	// account.
	SendVerificationEmail(ctx context.Context) error

	// SendPasswordResetEmail triggers a password-reset mail.
	SendPasswordResetEmail(ctx context.Context, email string) error

	// DeleteAccount removes the account. Used as the compensating action
	// when registration fails after the account was created.
	DeleteAccount(ctx context.Context, uid string) error

	// UpdateProfile sets display-name/photo attributes on the current
	// account.
	UpdateProfile(ctx context.Context, displayName, photoURL string) error

	// OnAuthStateChanged registers a listener invoked with the new current
	// account (nil on sign-out) after every auth-state transition.
	OnAuthStateChanged(fn func(*Account))
}
