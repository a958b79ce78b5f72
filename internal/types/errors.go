package types

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for the four error kinds mutations and reads can fail
// with. Mutation services and repositories wrap not-found and validation
// failures against these so callers can branch with errors.Is/errors.As
// instead of string matching; other database failures keep their original
// error chain and wrap none of these sentinels.
var (
	// ErrNotFound indicates a referenced id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a precondition violation: inactive target,
	// self-reference, cycle, missing link on remove, positioning conflict.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a replay step targeted a row whose current
	// state didn't match old_data/new_data (0-row update); recorded as a
	// warning, never aborts the transaction.
	ErrConflict = errors.New("conflict")

	// ErrInternal wraps any other database or system failure.
	ErrInternal = errors.New("internal error")
)

// Wrap attaches op context to err and converts sql.ErrNoRows to ErrNotFound.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Wrapf is Wrap with a formatted op.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(fmt.Sprintf(format, args...), err)
}

// NotFoundf builds an ErrNotFound-wrapping error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Validationf builds an ErrValidation-wrapping error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
