package idp

import (
	"errors"
	"fmt"
)

// Provider error codes. The set mirrors what hosted authentication services
// report; unknown codes are legal and map to a generic category downstream.
const (
	CodeUserNotFound        = "user-not-found"
	CodeWrongPassword       = "wrong-password"
	CodeInvalidCredential   = "invalid-credential"
	CodeInvalidEmail        = "invalid-email"
	CodeUserDisabled        = "user-disabled"
	CodeTooManyRequests     = "too-many-requests"
	CodeNetworkFailed       = "network-request-failed"
	CodeEmailAlreadyInUse   = "email-already-in-use"
	CodeOperationNotAllowed = "operation-not-allowed"
	CodeNoCurrentUser       = "no-current-user"
)

// Error is a provider failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth provider: %s", e.Code)
	}
	return fmt.Sprintf("auth provider: %s: %s", e.Code, e.Message)
}

// NewError creates a provider error with the given code.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the provider error code, or "" when err is not a provider
// error.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
