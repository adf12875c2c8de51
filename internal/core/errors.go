package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. They are wrapped with context where raised,
// so callers match them with errors.Is.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrNoParticipants     = errors.New("no participants")
	ErrDuplicateUser      = errors.New("duplicate user in split set")
	ErrNegativeShare      = errors.New("negative share")
	ErrAllocationMismatch = errors.New("allocation does not sum to expense amount")
	ErrConservation       = errors.New("conservation violation")
	ErrUnknownUser        = errors.New("unknown user")
	ErrUserNotFound       = errors.New("user not found")
	ErrExpenseNotFound    = errors.New("expense not found")
)

// ValidationKind classifies a ValidationError so transport layers can map it
// without string matching.
type ValidationKind string

const (
	KindAmount       ValidationKind = "amount"
	KindParticipants ValidationKind = "participants"
	KindMethod       ValidationKind = "method"
	KindAllocation   ValidationKind = "allocation"
	KindPercentage   ValidationKind = "percentage"
)

// ValidationError reports malformed or inconsistent split input. It is the
// caller's fault and recoverable by re-prompting.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
	Err    error // optional sentinel for errors.Is matching
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError with a formatted detail.
func NewValidationError(kind ValidationKind, sentinel error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}
