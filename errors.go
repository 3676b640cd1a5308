package xaytheon

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, UI-facing classification of an auth failure.
// Codes survive wrapping, so callers switch on CodeOf(err) rather than
// matching error strings or HTTP statuses.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserExists         ErrorCode = "USER_EXISTS"
	ErrCodeTooManyAttempts    ErrorCode = "TOO_MANY_ATTEMPTS"
	ErrCodeServerError        ErrorCode = "SERVER_ERROR"
	ErrCodeAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrCodeInvalidResponse    ErrorCode = "INVALID_RESPONSE"
	ErrCodeNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
)

// AuthError carries an ErrorCode alongside an optional underlying cause.
type AuthError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewAuthError creates an AuthError with the given code and message.
func NewAuthError(code ErrorCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// WrapAuthError creates an AuthError that classifies an underlying error.
func WrapAuthError(code ErrorCode, message string, err error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried anywhere in err's chain, or ""
// when err is not an auth failure.
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

var errorMessages = map[ErrorCode]string{
	ErrCodeInvalidCredentials: "Invalid email or password.",
	ErrCodeUserExists:         "An account with this email already exists.",
	ErrCodeInvalidInput:       "Please enter valid email and password.",
	ErrCodeNetworkError:       "Network error. Please check your connection.",
	ErrCodeSessionExpired:     "Your session has expired. Please login again.",
	ErrCodeUnauthorized:       "You are not authorized. Please login.",
	ErrCodeTooManyAttempts:    "Too many attempts. Please wait and try again.",
	ErrCodeServerError:        "Server error. Please try again later.",
	ErrCodeTimeout:            "Request timed out. Please try again.",
	ErrCodeInvalidResponse:    "Unexpected response from server. Please try again.",
}

// MessageFor maps a code to a display string for the UI. Unknown codes
// (including AUTH_FAILED) fall back to a generic message.
func MessageFor(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Authentication failed. Please try again."
}
