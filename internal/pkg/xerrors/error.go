package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrAuth           = errors.New("authentication failed")
	ErrConnection     = errors.New("live channel connection failed")
	ErrConfig         = errors.New("missing required configuration")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrTokenRevoked   = errors.New("token has been revoked")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
