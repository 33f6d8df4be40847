package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of these so the
// transport layer can map it to a status code without knowing the specific cause.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// One-time code failures.
var (
	ErrCodeNotFound = fmt.Errorf("no pending code: %w", ErrNotFound)
	ErrCodeExpired  = fmt.Errorf("code expired: %w", ErrExpired)
	ErrInvalidCode  = fmt.Errorf("invalid code: %w", ErrInvalidInput)
)

// Verification flow failures.
var (
	ErrWeakPassword       = fmt.Errorf("password must be at least 8 characters: %w", ErrInvalidInput)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most 72 bytes: %w", ErrInvalidInput)
	ErrInvalidRole        = fmt.Errorf("role must be teacher or student: %w", ErrInvalidInput)
	ErrDuplicateIdentity  = fmt.Errorf("an account with this email already exists: %w", ErrConflict)
	ErrAlreadyVerified    = fmt.Errorf("email already verified: %w", ErrConflict)
	ErrNoPendingRequest   = fmt.Errorf("no pending verification for this email: %w", ErrNotFound)
	ErrIdentityNotFound   = fmt.Errorf("account not found: %w", ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
)

// Attendance session failures.
var (
	ErrNoActiveSession = fmt.Errorf("no active session: %w", ErrNotFound)
	ErrNotEnrolled     = fmt.Errorf("student not actively enrolled in this class: %w", ErrInvalidInput)
	ErrNotClassOwner   = fmt.Errorf("class does not belong to caller: %w", ErrUnauthorized)
	ErrClassNotFound   = fmt.Errorf("class not found: %w", ErrNotFound)
	ErrNotStudent      = fmt.Errorf("only students can scan: %w", ErrUnauthorized)
)

// Internal wraps a collaborator failure (store, cache, mailer) as ErrInternal while
// keeping the cause in the message.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrInternal, err)
}
