package identity

import "errors"

// Sentinel kinds. Their messages are surfaced to API clients as-is.
var (
	ErrUserExists         = errors.New("User already exists")
	ErrWeakPassword       = errors.New("Password did not conform with policy: Password not long enough or too easy to guess")
	ErrUserNotFound       = errors.New("Username/client id combination not found.")
	ErrCodeMismatch       = errors.New("Invalid verification code provided, please try again.")
	ErrCodeExpired        = errors.New("Invalid code provided, please request a code again.")
	ErrAlreadyConfirmed   = errors.New("User cannot be confirmed. Current status is CONFIRMED")
	ErrInvalidCredentials = errors.New("Incorrect username or password.")
	ErrUserNotConfirmed   = errors.New("UserNotConfirmedException")
	ErrInvalidToken       = errors.New("Invalid token")
	ErrInvalidInput       = errors.New("invalid input")
)
