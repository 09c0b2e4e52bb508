// ==============================================================================
// KYC STATUS REGISTRY - internal/kyc/status.go
// ==============================================================================
// The closed set of KYC lifecycle states and their display metadata
// ==============================================================================

package kyc

import (
	"errors"
	"fmt"
	"strings"

	"portal/internal/domain"
)

// Status is the KYC lifecycle state handled by this package.
type Status = domain.KYCStatus

const (
	StatusNotSubmitted  = domain.KYCStatusNotSubmitted
	StatusPending       = domain.KYCStatusPending
	StatusSubmitted     = domain.KYCStatusSubmitted
	StatusInReview      = domain.KYCStatusInReview
	StatusNeedsMoreInfo = domain.KYCStatusNeedsMoreInfo
	StatusReviewed      = domain.KYCStatusReviewed
	StatusApproved      = domain.KYCStatusApproved
	StatusRejected      = domain.KYCStatusRejected
)

const (
	unknownLabel       = "Unknown"
	unknownDescription = "Unknown status"
)

type statusInfo struct {
	label       string
	description string
	final       bool
}

// lifecycle order
var statusOrder = []Status{
	StatusNotSubmitted,
	StatusPending,
	StatusSubmitted,
	StatusInReview,
	StatusNeedsMoreInfo,
	StatusReviewed,
	StatusApproved,
	StatusRejected,
}

var registry = map[Status]statusInfo{
	StatusNotSubmitted: {
		label:       "Not Submitted",
		description: "The organization has not started its KYC submission.",
	},
	StatusPending: {
		label:       "Pending",
		description: "KYC information is being prepared and has not been submitted for review.",
	},
	StatusSubmitted: {
		label:       "Submitted",
		description: "KYC documents were submitted and are waiting for a reviewer.",
	},
	StatusInReview: {
		label:       "In Review",
		description: "A reviewer is currently checking the submitted documents.",
	},
	StatusNeedsMoreInfo: {
		label:       "Needs More Info",
		description: "The reviewer requested additional information from the organization.",
	},
	StatusReviewed: {
		label:       "Reviewed",
		description: "Review is complete and the record awaits a final decision.",
	},
	StatusApproved: {
		label:       "Approved",
		description: "KYC verification was approved.",
		final:       true,
	},
	StatusRejected: {
		label:       "Rejected",
		description: "KYC verification was rejected. The organization may resubmit.",
		final:       true,
	},
}

// ErrUnknownStatus is returned when a string is not one of the KYC statuses.
var ErrUnknownStatus = errors.New("unknown kyc status")

// ParseStatus converts untrusted input into a Status. Surrounding whitespace and
// letter case are ignored; anything outside the enumeration is rejected.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Statuses returns every KYC status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// Valid reports whether s is one of the KYC statuses.
func Valid(s Status) bool {
	_, ok := registry[s]
	return ok
}

// LabelFor returns the display label for s, or "Unknown".
func LabelFor(s Status) string {
	if info, ok := registry[s]; ok {
		return info.label
	}
	return unknownLabel
}

// DescriptionFor returns the long-form description for s, or "Unknown status".
func DescriptionFor(s Status) string {
	if info, ok := registry[s]; ok {
		return info.description
	}
	return unknownDescription
}

// IsFinal reports whether s is terminal for a non-privileged reviewer.
// True exactly for approved and rejected.
func IsFinal(s Status) bool {
	return registry[s].final
}

// StatusInfo is the registry entry for one status, shaped for API responses.
type StatusInfo struct {
	Status         Status `json:"status"`
	Label          string `json:"label"`
	Description    string `json:"description"`
	IsFinal        bool   `json:"is_final"`
	ReasonRequired bool   `json:"reason_required"`
}

// Describe returns the registry entry for s.
func Describe(s Status) StatusInfo {
	return StatusInfo{
		Status:         s,
		Label:          LabelFor(s),
		Description:    DescriptionFor(s),
		IsFinal:        IsFinal(s),
		ReasonRequired: ReasonRequired(s),
	}
}

// Catalog returns the registry entries for all statuses in lifecycle order.
func Catalog() []StatusInfo {
	out := make([]StatusInfo, 0, len(statusOrder))
	for _, s := range statusOrder {
		out = append(out, Describe(s))
	}
	return out
}
