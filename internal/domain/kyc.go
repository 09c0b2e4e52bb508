// Package domain re-exports KYC domain types from pkg/domain.
// internal/domain/kyc.go
package domain

import pkg "portal/pkg/domain"

// KYCStatus represents the KYC lifecycle state.
type KYCStatus = pkg.KYCStatus

const (
	KYCStatusNotSubmitted  = pkg.KYCStatusNotSubmitted
	KYCStatusPending       = pkg.KYCStatusPending
	KYCStatusSubmitted     = pkg.KYCStatusSubmitted
	KYCStatusInReview      = pkg.KYCStatusInReview
	KYCStatusNeedsMoreInfo = pkg.KYCStatusNeedsMoreInfo
	KYCStatusReviewed      = pkg.KYCStatusReviewed
	KYCStatusApproved      = pkg.KYCStatusApproved
	KYCStatusRejected      = pkg.KYCStatusRejected
)

// TransitionOutcome classifies a recorded transition attempt.
type TransitionOutcome = pkg.TransitionOutcome

const (
	TransitionOutcomeAccepted       = pkg.TransitionOutcomeAccepted
	TransitionOutcomeLocked         = pkg.TransitionOutcomeLocked
	TransitionOutcomeNotAllowed     = pkg.TransitionOutcomeNotAllowed
	TransitionOutcomeReasonRequired = pkg.TransitionOutcomeReasonRequired
	TransitionOutcomeBackendFailed  = pkg.TransitionOutcomeBackendFailed
)

// KYCRecord mirrors the backend's KYC document for an organization.
type KYCRecord = pkg.KYCRecord

// KYCStatusUpdate is the unified status update payload.
type KYCStatusUpdate = pkg.KYCStatusUpdate

// KYCPage is a page of KYC records.
type KYCPage = pkg.KYCPage

// KYCStatistics holds KYC counts and derived rates.
type KYCStatistics = pkg.KYCStatistics

// TransitionAttempt is an audit row for a proposed status change.
type TransitionAttempt = pkg.TransitionAttempt
