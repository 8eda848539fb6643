// Package service implements the authentication core: credentials,
// sessions, the password-reset flow and the bot-verification gate wiring.
// Handlers translate the errors below into HTTP responses.
package service

import "errors"

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrBotCheckFailed means the bot-verification token was missing,
	// rejected, or could not be checked.
	ErrBotCheckFailed = errors.New("bot verification failed")
	ErrEmailTaken     = errors.New("email already registered")
	ErrUsernameTaken  = errors.New("username already taken")
	// ErrInvalidCredentials never says whether the identifier or the
	// password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetCode covers unknown, used and expired codes alike.
	ErrInvalidResetCode = errors.New("invalid or expired code")
	ErrInvalidSession   = errors.New("invalid or expired session")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }
