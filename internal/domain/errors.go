package domain

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Escrow / settlement errors
var (
	// ErrValidation is returned for missing or malformed caller input. Use
	// NewValidationError to attach the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrEscrowNotFound is returned when no escrow matches the given id.
	ErrEscrowNotFound = errors.New("escrow not found")

	// ErrInvalidTransition is returned when an operation would move an escrow
	// out of a terminal status or skip a step (e.g. re-funding, releasing an
	// unfunded escrow, releasing twice).
	ErrInvalidTransition = errors.New("illegal escrow status transition")

	// ErrComplianceBlocked is returned when the AML gate refuses the money
	// movement. The concrete error is *ComplianceBlockedError.
	ErrComplianceBlocked = errors.New("blocked by AML compliance check")

	// ErrStorage wraps any persistence failure. Nothing has been committed
	// when it is returned, so the whole operation may be retried.
	ErrStorage = errors.New("storage failure")

	// ErrTimeout is returned when the settlement deadline expires before
	// commit. State is unchanged.
	ErrTimeout = errors.New("operation timed out")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// NewValidationError wraps ErrValidation with a human-readable message.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ComplianceBlockedError carries the persisted AML check that refused the
// operation so callers can explain the rejection.
type ComplianceBlockedError struct {
	Op    SettlementOp
	Check *AMLCheck
}

func (e *ComplianceBlockedError) Error() string {
	return fmt.Sprintf("%s refused: %s (check %s, score %d)",
		e.Op, e.Check.Reason, e.Check.ID, e.Check.RiskScore)
}

// Unwrap lets errors.Is(err, ErrComplianceBlocked) match.
func (e *ComplianceBlockedError) Unwrap() error { return ErrComplianceBlocked }

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err (or any error in its chain) is a domain
// "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEscrowNotFound)
}

// IsConflict returns true for errors that represent a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsValidation returns true for caller-input errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// AsComplianceBlocked extracts the compliance refusal from err, if any.
func AsComplianceBlocked(err error) (*ComplianceBlockedError, bool) {
	var cb *ComplianceBlockedError
	if errors.As(err, &cb) {
		return cb, true
	}
	return nil, false
}
