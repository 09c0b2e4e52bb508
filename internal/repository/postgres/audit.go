package postgres

import (
	"context"

	"portal/internal/domain"
	"portal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TransitionAttemptRepository persists the KYC transition audit trail.
type TransitionAttemptRepository struct {
	db *sqlx.DB
}

// NewTransitionAttemptRepository creates a new TransitionAttemptRepository.
func NewTransitionAttemptRepository(db *sqlx.DB) *TransitionAttemptRepository {
	return &TransitionAttemptRepository{db: db}
}

// Create inserts one transition attempt.
func (r *TransitionAttemptRepository) Create(ctx context.Context, attempt *domain.TransitionAttempt) error {
	query := `
		INSERT INTO admin_schema.kyc_transition_attempts (
			id, organization_id, actor_id, from_status, to_status,
			privileged, outcome, reason, request_id, created_at
		) VALUES (
			:id, :organization_id, :actor_id, :from_status, :to_status,
			:privileged, :outcome, :reason, :request_id, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, attempt)
	if err != nil {
		return errors.Wrap(err, "failed to record kyc transition attempt")
	}

	return nil
}

// ListByOrganization returns the attempts made against one organization's
// record, newest first.
func (r *TransitionAttemptRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.TransitionAttempt, error) {
	attempts := []*domain.TransitionAttempt{}
	query := `
		SELECT
			id, organization_id, actor_id, from_status, to_status,
			privileged, outcome, reason, request_id, created_at
		FROM admin_schema.kyc_transition_attempts
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &attempts, query, orgID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list kyc transition attempts")
	}
	return attempts, nil
}

// CountByOutcome tallies attempts per outcome across all organizations.
func (r *TransitionAttemptRepository) CountByOutcome(ctx context.Context) (map[domain.TransitionOutcome]int, error) {
	var rows []struct {
		Outcome domain.TransitionOutcome `db:"outcome"`
		Count   int                      `db:"count"`
	}
	query := `
		SELECT outcome, COUNT(*) AS count
		FROM admin_schema.kyc_transition_attempts
		GROUP BY outcome
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to count kyc transition attempts")
	}

	out := make(map[domain.TransitionOutcome]int, len(rows))
	for _, row := range rows {
		out[row.Outcome] = row.Count
	}
	return out, nil
}
