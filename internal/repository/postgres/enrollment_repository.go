package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
)

const enrollmentColumns = `id, campaign_id, prospect_id, status, current_step, last_action_at, failure_reason, created_at, updated_at`

// EnrollmentRepository persists per (campaign, prospect) state records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Add enrolls prospects not already enrolled. The unique
// (campaign_id, prospect_id) constraint makes re-adding a no-op; inserted
// rows are returned so callers can count and materialize them.
func (r *EnrollmentRepository) Add(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) ([]*domain.Enrollment, error) {
	if len(prospectIDs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var inserted []*domain.Enrollment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, prospectID := range prospectIDs {
			enrollment := &domain.Enrollment{
				ID:          uuid.New(),
				CampaignID:  campaignID,
				ProspectID:  prospectID,
				Status:      domain.EnrollmentPending,
				CurrentStep: 0,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO campaign_prospects (
				id, campaign_id, prospect_id, status, current_step, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (campaign_id, prospect_id) DO NOTHING`,
				enrollment.ID, campaignID, prospectID, enrollment.Status, 0, now, now)
			if err != nil {
				return fmt.Errorf("enrollment repo: insert: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("enrollment repo: rows affected: %w", err)
			}
			if n > 0 {
				inserted = append(inserted, enrollment)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// Get fetches an enrollment by id.
func (r *EnrollmentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+enrollmentColumns+` FROM campaign_prospects WHERE id = $1`, id)
	var rec enrollmentRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("enrollment repo: get: %w", err)
	}
	enrollment := rec.toDomain()
	return &enrollment, nil
}

// Update persists status, step progress and failure reason.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *domain.Enrollment) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE campaign_prospects SET
		status = :status,
		current_step = :current_step,
		last_action_at = :last_action_at,
		failure_reason = :failure_reason,
		updated_at = NOW()
	WHERE id = :id`, map[string]any{
		"id":             enrollment.ID,
		"status":         enrollment.Status,
		"current_step":   enrollment.CurrentStep,
		"last_action_at": enrollment.LastActionAt,
		"failure_reason": enrollment.FailureReason,
	})
	if err != nil {
		return fmt.Errorf("enrollment repo: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("enrollment repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkInProgress flips pending to in_progress. Already in_progress rows
// are left untouched, which keeps the transition idempotent.
func (r *EnrollmentRepository) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaign_prospects SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		domain.EnrollmentInProgress, id, domain.EnrollmentPending)
	if err != nil {
		return fmt.Errorf("enrollment repo: mark in progress: %w", err)
	}
	return nil
}

// ListActive returns enrollments still moving through the sequence.
func (r *EnrollmentRepository) ListActive(ctx context.Context, campaignID uuid.UUID) ([]*domain.Enrollment, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+enrollmentColumns+`
		FROM campaign_prospects
		WHERE campaign_id = $1 AND status IN ($2, $3)
		ORDER BY created_at ASC`,
		campaignID, domain.EnrollmentPending, domain.EnrollmentInProgress)
	if err != nil {
		return nil, fmt.Errorf("enrollment repo: list active: %w", err)
	}
	defer rows.Close()

	var results []*domain.Enrollment
	for rows.Next() {
		var rec enrollmentRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("enrollment repo: scan: %w", err)
		}
		enrollment := rec.toDomain()
		results = append(results, &enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enrollment repo: rows err: %w", err)
	}
	return results, nil
}

// CountActive counts enrollments in pending or in_progress.
func (r *EnrollmentRepository) CountActive(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM campaign_prospects
		WHERE campaign_id = $1 AND status IN ($2, $3)`,
		campaignID, domain.EnrollmentPending, domain.EnrollmentInProgress).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("enrollment repo: count active: %w", err)
	}
	return count, nil
}

// Remove deletes enrollments and their live queue entries.
func (r *EnrollmentRepository) Remove(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) (int64, error) {
	if len(prospectIDs) == 0 {
		return 0, nil
	}

	var removed int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM action_queue
			WHERE campaign_id = $1 AND prospect_id = ANY($2) AND state <> $3`,
			campaignID, prospectIDs, domain.EntryCompleted); err != nil {
			return fmt.Errorf("enrollment repo: delete live entries: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM campaign_prospects
			WHERE campaign_id = $1 AND prospect_id = ANY($2)`, campaignID, prospectIDs)
		if err != nil {
			return fmt.Errorf("enrollment repo: delete: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("enrollment repo: rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

type enrollmentRecord struct {
	ID            uuid.UUID      `db:"id"`
	CampaignID    uuid.UUID      `db:"campaign_id"`
	ProspectID    uuid.UUID      `db:"prospect_id"`
	Status        string         `db:"status"`
	CurrentStep   int            `db:"current_step"`
	LastActionAt  sql.NullTime   `db:"last_action_at"`
	FailureReason sql.NullString `db:"failure_reason"`
	CreatedAt     sql.NullTime   `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

func (r enrollmentRecord) toDomain() domain.Enrollment {
	enrollment := domain.Enrollment{
		ID:          r.ID,
		CampaignID:  r.CampaignID,
		ProspectID:  r.ProspectID,
		Status:      domain.EnrollmentStatus(r.Status),
		CurrentStep: r.CurrentStep,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
	if r.LastActionAt.Valid {
		t := r.LastActionAt.Time
		enrollment.LastActionAt = &t
	}
	if r.FailureReason.Valid {
		reason := r.FailureReason.String
		enrollment.FailureReason = &reason
	}
	return enrollment
}
