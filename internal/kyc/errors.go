package kyc

import (
	"errors"
	"fmt"
)

// Rejection kinds. They are mutually exclusive and each maps to a different
// response so a client can tell "not allowed" apart from "explain why".
var (
	ErrRecordLocked         = errors.New("kyc record is finalized")
	ErrTransitionNotAllowed = errors.New("kyc transition not allowed")
	ErrReasonRequired       = errors.New("kyc transition requires a reason")
)

// TransitionError carries the failing kind plus the statuses involved.
type TransitionError struct {
	Kind error
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	switch e.Kind {
	case ErrRecordLocked:
		return fmt.Sprintf("kyc record is finalized (%s)", e.From)
	case ErrTransitionNotAllowed:
		return fmt.Sprintf("cannot move kyc record from %s to %s", e.From, e.To)
	case ErrReasonRequired:
		return fmt.Sprintf("a reason is required to move kyc record to %s", e.To)
	default:
		return fmt.Sprintf("kyc transition %s -> %s failed: %v", e.From, e.To, e.Kind)
	}
}

// Unwrap exposes the kind to errors.Is.
func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// Code is the stable machine-readable identifier of the rejection kind.
func (e *TransitionError) Code() string {
	switch e.Kind {
	case ErrRecordLocked:
		return "record_locked"
	case ErrTransitionNotAllowed:
		return "transition_not_allowed"
	case ErrReasonRequired:
		return "reason_required"
	default:
		return "transition_failed"
	}
}
