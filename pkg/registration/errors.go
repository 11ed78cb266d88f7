package registration

import "errors"

// Form validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrInvalidUsername  = errors.New("username must be 3-20 characters of a-z, 0-9, dot or underscore")
	ErrMissingFullName  = errors.New("full name is required")
	ErrMissingClubName  = errors.New("club name is required for club accounts")
)

// Uniqueness errors
var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)
