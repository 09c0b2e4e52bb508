// ==============================================================================
// KYC REVIEW SERVICE - internal/kyc/service.go
// ==============================================================================
// Applies the review rules to live records held by the backend, records every
// attempt for audit and announces accepted changes to connected reviewers.
// ==============================================================================

package kyc

import (
	"context"
	"strings"
	"time"

	"portal/internal/domain"
	"portal/internal/metrics"
	"portal/internal/session"
	"portal/pkg/errors"
	"portal/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// COLLABORATOR INTERFACES
// ==============================================================================

// RecordStore is the system of record for KYC documents (the backend client).
type RecordStore interface {
	GetKYC(ctx context.Context, sess *session.Session, orgID uuid.UUID) (*domain.KYCRecord, error)
	UpdateKYCStatus(ctx context.Context, sess *session.Session, orgID uuid.UUID, in domain.KYCStatusUpdate) (*domain.KYCRecord, error)
}

// AttemptRecorder persists transition attempts for audit.
type AttemptRecorder interface {
	Create(ctx context.Context, attempt *domain.TransitionAttempt) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.TransitionAttempt, error)
	CountByOutcome(ctx context.Context) (map[domain.TransitionOutcome]int, error)
}

// Publisher fans accepted status changes out to live subscribers.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, change StatusChange)
}

// ==============================================================================
// REQUEST / RESPONSE TYPES
// ==============================================================================

// Caller identifies who is proposing a change. Session carries the backend
// credentials the change is made with.
type Caller struct {
	ID         uuid.UUID
	Privileged bool
	Session    *session.Session
	RequestID  string
}

// CallerFromSession derives the caller from a signed-in session.
func CallerFromSession(sess *session.Session, requestID string) Caller {
	return Caller{
		ID:         sess.User.ID,
		Privileged: sess.IsPrivileged(),
		Session:    sess,
		RequestID:  requestID,
	}
}

// UpdateRequest is a proposed status change.
type UpdateRequest struct {
	Status Status `json:"status" validate:"required,kyc_status"`
	Reason string `json:"reason" validate:"max=2000"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// StatusChange is the event emitted after the backend accepts a transition.
type StatusChange struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	ActorID        uuid.UUID `json:"actor_id"`
	Privileged     bool      `json:"privileged"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Options describes what the caller may do with a record right now.
type Options struct {
	OrganizationID uuid.UUID    `json:"organization_id"`
	Current        StatusInfo   `json:"current"`
	CanModify      bool         `json:"can_modify"`
	Privileged     bool         `json:"privileged"`
	NextStates     []StatusInfo `json:"next_states"`
	PolicyDigest   string       `json:"policy_digest,omitempty"`
}

// ==============================================================================
// SERVICE
// ==============================================================================

// Service coordinates the reviewer rules with the backend and the audit log.
type Service struct {
	reviewer  *Reviewer
	records   RecordStore
	attempts  AttemptRecorder
	publisher Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

// NewService wires the review service. attempts and publisher may be nil.
func NewService(reviewer *Reviewer, records RecordStore, attempts AttemptRecorder, publisher Publisher, m *metrics.Metrics, log logger.Logger) *Service {
	if reviewer == nil {
		reviewer = NewReviewer(nil)
	}
	return &Service{
		reviewer:  reviewer,
		records:   records,
		attempts:  attempts,
		publisher: publisher,
		metrics:   m,
		logger:    log.With(map[string]interface{}{"component": "kyc"}),
		now:       time.Now,
	}
}

// Reviewer exposes the rules the service enforces.
func (s *Service) Reviewer() *Reviewer {
	return s.reviewer
}

// Get returns the current record for orgID.
func (s *Service) Get(ctx context.Context, caller Caller, orgID uuid.UUID) (*domain.KYCRecord, error) {
	return s.records.GetKYC(ctx, caller.Session, orgID)
}

// Options loads the record and reports the caller's edit surface.
func (s *Service) Options(ctx context.Context, caller Caller, orgID uuid.UUID) (*Options, error) {
	rec, err := s.records.GetKYC(ctx, caller.Session, orgID)
	if err != nil {
		return nil, err
	}
	return s.OptionsFor(rec, caller.Privileged), nil
}

// OptionsFor computes the edit surface for an already loaded record.
func (s *Service) OptionsFor(rec *domain.KYCRecord, privileged bool) *Options {
	next := s.reviewer.NextStates(rec.Status, privileged)
	opts := &Options{
		OrganizationID: rec.OrganizationID,
		Current:        Describe(rec.Status),
		CanModify:      s.reviewer.CanModify(rec.Status, privileged),
		Privileged:     privileged,
		NextStates:     make([]StatusInfo, 0, len(next)),
		PolicyDigest:   s.reviewer.Policy().Digest(),
	}
	for _, st := range next {
		opts.NextStates = append(opts.NextStates, Describe(st))
	}
	return opts
}

// UpdateStatus evaluates and, when allowed, applies a status change. A rejected
// attempt never reaches the backend and returns a *TransitionError. Every
// attempt is recorded.
func (s *Service) UpdateStatus(ctx context.Context, caller Caller, orgID uuid.UUID, req UpdateRequest) (*domain.KYCRecord, error) {
	current, err := s.records.GetKYC(ctx, caller.Session, orgID)
	if err != nil {
		return nil, err
	}

	attempt := Attempt{
		Current:    current.Status,
		Proposed:   req.Status,
		Privileged: caller.Privileged,
		Reason:     req.Reason,
	}
	if err := s.reviewer.Check(attempt); err != nil {
		outcome := outcomeFor(err)
		s.record(ctx, caller, orgID, attempt, outcome)
		s.logger.Info("KYC transition refused", map[string]interface{}{
			"organization_id": orgID.String(),
			"actor_id":        caller.ID.String(),
			"from":            string(attempt.Current),
			"to":              string(attempt.Proposed),
			"outcome":         string(outcome),
		})
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	update := domain.KYCStatusUpdate{Status: req.Status, Notes: strings.TrimSpace(req.Notes)}
	if ReasonRequired(req.Status) {
		update.RejectionReason = reason
	} else if reason != "" && update.Notes == "" {
		update.Notes = reason
	}

	updated, err := s.records.UpdateKYCStatus(ctx, caller.Session, orgID, update)
	if err != nil {
		s.record(ctx, caller, orgID, attempt, domain.TransitionOutcomeBackendFailed)
		s.logger.Error("Backend rejected KYC transition", map[string]interface{}{
			"organization_id": orgID.String(),
			"from":            string(attempt.Current),
			"to":              string(attempt.Proposed),
			"error":           err.Error(),
		})
		return nil, err
	}

	s.record(ctx, caller, orgID, attempt, domain.TransitionOutcomeAccepted)
	s.logger.Info("KYC status updated", map[string]interface{}{
		"organization_id": orgID.String(),
		"actor_id":        caller.ID.String(),
		"from":            string(attempt.Current),
		"to":              string(updated.Status),
		"privileged":      caller.Privileged,
	})

	if s.publisher != nil {
		s.publisher.PublishStatusChanged(ctx, StatusChange{
			OrganizationID: orgID,
			From:           attempt.Current,
			To:             updated.Status,
			ActorID:        caller.ID,
			Privileged:     caller.Privileged,
			Reason:         reason,
			OccurredAt:     s.now().UTC(),
		})
	}
	return updated, nil
}

// Attempts lists the recorded attempts for orgID, newest first.
func (s *Service) Attempts(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.TransitionAttempt, error) {
	if s.attempts == nil {
		return nil, errors.ErrAuditUnavailable
	}
	return s.attempts.ListByOrganization(ctx, orgID, limit, offset)
}

// OutcomeCounts tallies every recorded attempt by outcome.
func (s *Service) OutcomeCounts(ctx context.Context) (map[domain.TransitionOutcome]int, error) {
	if s.attempts == nil {
		return nil, errors.ErrAuditUnavailable
	}
	return s.attempts.CountByOutcome(ctx)
}

// record writes the audit row and bumps the decision metric. Audit failures
// are logged and never change the outcome of the transition.
func (s *Service) record(ctx context.Context, caller Caller, orgID uuid.UUID, a Attempt, outcome domain.TransitionOutcome) {
	s.metrics.IncrementDecision(string(outcome), a.Privileged)
	if s.attempts == nil {
		return
	}

	row := &domain.TransitionAttempt{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ActorID:        caller.ID,
		FromStatus:     a.Current,
		ToStatus:       a.Proposed,
		Privileged:     a.Privileged,
		Outcome:        outcome,
		CreatedAt:      s.now().UTC(),
	}
	if r := strings.TrimSpace(a.Reason); r != "" {
		row.Reason = &r
	}
	if caller.RequestID != "" {
		id := caller.RequestID
		row.RequestID = &id
	}

	if err := s.attempts.Create(ctx, row); err != nil {
		s.logger.Error("Failed to record KYC transition attempt", map[string]interface{}{
			"organization_id": orgID.String(),
			"outcome":         string(outcome),
			"error":           err.Error(),
		})
	}
}

func outcomeFor(err error) domain.TransitionOutcome {
	switch {
	case errors.Is(err, ErrRecordLocked):
		return domain.TransitionOutcomeLocked
	case errors.Is(err, ErrReasonRequired):
		return domain.TransitionOutcomeReasonRequired
	default:
		return domain.TransitionOutcomeNotAllowed
	}
}

// ==============================================================================
// STATISTICS
// ==============================================================================

// rateScale is the number of decimal places rates are reported with.
const rateScale int32 = 2

var hundred = decimal.NewFromInt(100)

// WithRates fills the derived fields of stats. Rates are the percentage of
// finalized records that were approved or rejected; zero when nothing is final.
func WithRates(stats *domain.KYCStatistics, now time.Time) *domain.KYCStatistics {
	approved := decimal.NewFromInt(int64(stats.ByStatus[StatusApproved]))
	rejected := decimal.NewFromInt(int64(stats.ByStatus[StatusRejected]))
	finalized := approved.Add(rejected)

	stats.ApprovalRate = decimal.Zero
	stats.RejectionRate = decimal.Zero
	if finalized.IsPositive() {
		stats.ApprovalRate = approved.Mul(hundred).Div(finalized).Round(rateScale)
		stats.RejectionRate = rejected.Mul(hundred).Div(finalized).Round(rateScale)
	}

	pending := 0
	for _, st := range []Status{StatusSubmitted, StatusInReview, StatusReviewed} {
		pending += stats.ByStatus[st]
	}
	stats.PendingReview = pending

	if stats.Total == 0 {
		for _, n := range stats.ByStatus {
			stats.Total += n
		}
	}
	stats.GeneratedAt = now.UTC()
	return stats
}
