package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/campushub/identity/pkg/idp"
)

// Input validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
)

// Session errors
var (
	ErrNoSession      = errors.New("no session to restore")
	ErrNotSignedIn    = errors.New("no signed-in account")
	ErrSessionExpired = errors.New("restored session cannot perform this operation")
)

// Password reset errors
var (
	ErrEmailNotRegistered = errors.New("email is not registered")
)

// Category groups provider failures into the classes the caller reacts to.
type Category string

const (
	// CategoryBadCredentials covers unknown accounts and wrong passwords.
	CategoryBadCredentials Category = "bad_credentials"
	// CategoryAccountDisabled marks administratively disabled accounts.
	CategoryAccountDisabled Category = "account_disabled"
	// CategoryThrottled marks provider-side rate limiting.
	CategoryThrottled Category = "throttled"
	// CategoryNetworkUnavailable marks transport failures worth retrying.
	CategoryNetworkUnavailable Category = "network_unavailable"
	// CategoryUnknown covers everything else.
	CategoryUnknown Category = "unknown"
)

// SignInError wraps a provider failure with its category so callers branch
// on the class instead of provider-specific codes.
type SignInError struct {
	Category Category
	Code     string
	Err      error
}

func (e *SignInError) Error() string {
	return fmt.Sprintf("sign in failed (%s): %v", e.Category, e.Err)
}

func (e *SignInError) Unwrap() error { return e.Err }

// Categorize maps a provider error code onto its category.
func Categorize(code string) Category {
	switch code {
	case idp.CodeUserNotFound, idp.CodeWrongPassword, idp.CodeInvalidCredential, idp.CodeInvalidEmail:
		return CategoryBadCredentials
	case idp.CodeUserDisabled:
		return CategoryAccountDisabled
	case idp.CodeTooManyRequests:
		return CategoryThrottled
	case idp.CodeNetworkFailed:
		return CategoryNetworkUnavailable
	default:
		return CategoryUnknown
	}
}

func newSignInError(err error) *SignInError {
	code := idp.CodeOf(err)
	return &SignInError{Category: Categorize(code), Code: code, Err: err}
}

// VerificationThrottledError reports how long the caller must wait before
// requesting another verification mail.
type VerificationThrottledError struct {
	Remaining time.Duration
}

func (e *VerificationThrottledError) Error() string {
	return fmt.Sprintf("verification email throttled, retry in %s", e.Remaining.Round(time.Second))
}
