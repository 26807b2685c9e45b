package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrAlreadyExists       = errors.New("record already exists")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConnectionFailed    = errors.New("database connection failed")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	classConnection          = "08"
	classOperatorIntervene   = "57"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsNotFoundError reports a missing row.
func IsNotFoundError(err error) bool {
	return err != nil && (errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound))
}

// IsConstraintViolationError reports a unique, check or not-null violation.
func IsConstraintViolationError(err error) bool {
	if err == nil {
		return false
	}
	switch sqlState(err) {
	case codeUniqueViolation, codeCheckViolation, codeNotNullViolation:
		return true
	}
	return errors.Is(err, ErrConstraintViolation) || errors.Is(err, ErrAlreadyExists)
}

// IsConnectionError reports a lost or refused connection, including a server
// shutting down underneath the pool.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if code := sqlState(err); len(code) >= 2 {
		if class := code[:2]; class == classConnection || class == classOperatorIntervene {
			return true
		}
	}
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr) || errors.Is(err, ErrConnectionFailed)
}

// IsRetryableError reports whether a statement may succeed when repeated.
func IsRetryableError(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return IsConnectionError(err)
}

// WrapError maps a driver error onto the package sentinels, prefixed with the
// failed operation.
func WrapError(err error, operation string) error {
	switch {
	case err == nil:
		return nil
	case IsNotFoundError(err):
		return fmt.Errorf("%s failed: %w", operation, ErrNotFound)
	case sqlState(err) == codeUniqueViolation:
		return fmt.Errorf("%s failed: %w", operation, ErrAlreadyExists)
	case IsConstraintViolationError(err):
		return fmt.Errorf("%s failed: %w", operation, ErrConstraintViolation)
	case IsConnectionError(err):
		return fmt.Errorf("%s failed: %w: %w", operation, ErrConnectionFailed, err)
	default:
		return fmt.Errorf("%s failed: %w", operation, err)
	}
}
