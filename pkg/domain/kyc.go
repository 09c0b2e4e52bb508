// Package domain defines the core business entities for the vendor and admin portal.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// ENUMS & STATUS TYPES
// ==============================================================================

// KYCStatus is the lifecycle state of an organization's KYC record.
type KYCStatus string

const (
	KYCStatusNotSubmitted  KYCStatus = "not_submitted"
	KYCStatusPending       KYCStatus = "pending"
	KYCStatusSubmitted     KYCStatus = "submitted"
	KYCStatusInReview      KYCStatus = "in_review"
	KYCStatusNeedsMoreInfo KYCStatus = "needs_more_info"
	KYCStatusReviewed      KYCStatus = "reviewed"
	KYCStatusApproved      KYCStatus = "approved"
	KYCStatusRejected      KYCStatus = "rejected"
)

// TransitionOutcome classifies a recorded KYC transition attempt.
type TransitionOutcome string

const (
	TransitionOutcomeAccepted       TransitionOutcome = "accepted"
	TransitionOutcomeLocked         TransitionOutcome = "record_locked"
	TransitionOutcomeNotAllowed     TransitionOutcome = "transition_not_allowed"
	TransitionOutcomeReasonRequired TransitionOutcome = "reason_required"
	TransitionOutcomeBackendFailed  TransitionOutcome = "backend_failed"
)

// ==============================================================================
// KYC ENTITIES
// ==============================================================================

// KYCRecord mirrors the backend's KYC document for one organization.
// The backend owns persistence; the portal only reads it and proposes transitions.
type KYCRecord struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   uuid.UUID  `json:"organization_id"`
	OrganizationName string     `json:"organization_name,omitempty"`
	Status           KYCStatus  `json:"status"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy       *uuid.UUID `json:"reviewed_by,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// KYCStatusUpdate is the body of the backend's unified status update endpoint.
type KYCStatusUpdate struct {
	Status          KYCStatus `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// KYCPage is one page of KYC records returned by the backend listing endpoints.
type KYCPage struct {
	Items  []*KYCRecord `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// KYCStatistics holds per-status counts from the backend plus portal-derived rates.
type KYCStatistics struct {
	Total         int               `json:"total"`
	ByStatus      map[KYCStatus]int `json:"by_status"`
	ApprovalRate  decimal.Decimal   `json:"approval_rate"`
	RejectionRate decimal.Decimal   `json:"rejection_rate"`
	PendingReview int               `json:"pending_review"`
	GeneratedAt   time.Time         `json:"generated_at"`

	// AttemptOutcomes tallies recorded transition attempts; absent without an audit store.
	AttemptOutcomes map[TransitionOutcome]int `json:"attempt_outcomes,omitempty"`
}

// TransitionAttempt is an audit row for a proposed KYC status change, accepted or not.
type TransitionAttempt struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	OrganizationID uuid.UUID         `json:"organization_id" db:"organization_id"`
	ActorID        uuid.UUID         `json:"actor_id" db:"actor_id"`
	FromStatus     KYCStatus         `json:"from_status" db:"from_status"`
	ToStatus       KYCStatus         `json:"to_status" db:"to_status"`
	Privileged     bool              `json:"privileged" db:"privileged"`
	Outcome        TransitionOutcome `json:"outcome" db:"outcome"`
	Reason         *string           `json:"reason,omitempty" db:"reason"`
	RequestID      *string           `json:"request_id,omitempty" db:"request_id"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}
