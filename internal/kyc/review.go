// ==============================================================================
// KYC REVIEW RULES - internal/kyc/review.go
// ==============================================================================
// Modification gate, transition validator and reason policy.
// Pure functions of their inputs: no I/O and no shared mutable state.
// ==============================================================================

package kyc

import "strings"

// Reviewer answers authorization questions about KYC transitions against a Policy.
type Reviewer struct {
	policy *Policy
}

// NewReviewer returns a Reviewer bound to p; a nil p selects DefaultPolicy.
func NewReviewer(p *Policy) *Reviewer {
	if p == nil {
		p = DefaultPolicy()
	}
	return &Reviewer{policy: p}
}

// Policy returns the tables this reviewer enforces.
func (r *Reviewer) Policy() *Policy {
	return r.policy
}

// CanModify is the coarse gate: may the caller touch a record in this status at all.
func (r *Reviewer) CanModify(current Status, privileged bool) bool {
	return privileged || !IsFinal(current)
}

// CanTransition reports whether proposed is one step away from current for the
// caller's tier. Unknown statuses are never permitted.
func (r *Reviewer) CanTransition(current, proposed Status, privileged bool) bool {
	return r.policy.allows(current, proposed, privileged)
}

// NextStates lists the statuses the caller may move a record to from current.
func (r *Reviewer) NextStates(current Status, privileged bool) []Status {
	if !r.CanModify(current, privileged) {
		return []Status{}
	}
	return r.policy.ReviewerNextStates(current, privileged)
}

// ReasonRequired reports whether moving to proposed needs a justification.
func ReasonRequired(proposed Status) bool {
	return proposed == StatusRejected || proposed == StatusNeedsMoreInfo
}

// Attempt is a proposed status change by a caller.
type Attempt struct {
	Current    Status
	Proposed   Status
	Privileged bool
	Reason     string
}

// Decision is the outcome of evaluating an Attempt.
type Decision struct {
	From            Status `json:"from"`
	To              Status `json:"to"`
	CanModify       bool   `json:"can_modify"`
	Permitted       bool   `json:"permitted"`
	ReasonRequired  bool   `json:"reason_required"`
	ReasonSatisfied bool   `json:"reason_satisfied"`
}

// Err returns nil when the attempt may proceed, otherwise a *TransitionError for
// the first failing check: modification gate, then validator, then reason policy.
func (d Decision) Err() error {
	switch {
	case !d.CanModify:
		return &TransitionError{Kind: ErrRecordLocked, From: d.From, To: d.To}
	case !d.Permitted:
		return &TransitionError{Kind: ErrTransitionNotAllowed, From: d.From, To: d.To}
	case d.ReasonRequired && !d.ReasonSatisfied:
		return &TransitionError{Kind: ErrReasonRequired, From: d.From, To: d.To}
	}
	return nil
}

// Allowed reports whether the attempt passes every check.
func (d Decision) Allowed() bool {
	return d.Err() == nil
}

// Evaluate runs every check for a and reports each result independently.
func (r *Reviewer) Evaluate(a Attempt) Decision {
	required := ReasonRequired(a.Proposed)
	return Decision{
		From:            a.Current,
		To:              a.Proposed,
		CanModify:       r.CanModify(a.Current, a.Privileged),
		Permitted:       r.CanTransition(a.Current, a.Proposed, a.Privileged),
		ReasonRequired:  required,
		ReasonSatisfied: !required || strings.TrimSpace(a.Reason) != "",
	}
}

// Check is Evaluate(a).Err().
func (r *Reviewer) Check(a Attempt) error {
	return r.Evaluate(a).Err()
}
