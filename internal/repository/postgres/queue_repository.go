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

const queueColumns = `id, campaign_id, enrollment_id, prospect_id, step_id, step_order, action_kind,
	state, not_before, claimed_at, claimed_by, outcome, completed_at, created_at`

// QueueRepository is the durable action backlog on PostgreSQL.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository constructs the repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Insert adds a pending entry.
func (r *QueueRepository) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	q := `INSERT INTO action_queue (
		id, campaign_id, enrollment_id, prospect_id, step_id, step_order, action_kind,
		state, not_before, claimed_at, claimed_by, outcome, completed_at, created_at
	) VALUES (
		:id, :campaign_id, :enrollment_id, :prospect_id, :step_id, :step_order, :action_kind,
		:state, :not_before, :claimed_at, :claimed_by, :outcome, :completed_at, :created_at
	)`
	params := map[string]any{
		"id":            entry.ID,
		"campaign_id":   entry.CampaignID,
		"enrollment_id": entry.EnrollmentID,
		"prospect_id":   entry.ProspectID,
		"step_id":       entry.StepID,
		"step_order":    entry.StepOrder,
		"action_kind":   entry.Kind,
		"state":         entry.State,
		"not_before":    entry.NotBefore,
		"claimed_at":    entry.ClaimedAt,
		"claimed_by":    entry.ClaimedBy,
		"outcome":       entry.Outcome,
		"completed_at":  entry.CompletedAt,
		"created_at":    entry.CreatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("queue repo: insert: %w", err)
	}
	return nil
}

// Get fetches an entry by id.
func (r *QueueRepository) Get(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+queueColumns+` FROM action_queue WHERE id = $1`, id)
	var rec queueRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("queue repo: get: %w", err)
	}
	entry := rec.toDomain()
	return &entry, nil
}

// HasLive reports whether the enrollment still has a non-completed entry.
func (r *QueueRepository) HasLive(ctx context.Context, enrollmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowxContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM action_queue WHERE enrollment_id = $1 AND state <> $2
	)`, enrollmentID, domain.EntryCompleted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("queue repo: has live: %w", err)
	}
	return exists, nil
}

// NextCandidates returns pending entries of active campaigns whose
// not-before has passed, in deterministic selection order.
func (r *QueueRepository) NextCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT q.id, q.campaign_id, q.enrollment_id, q.prospect_id, q.step_id, q.step_order, q.action_kind,
		q.state, q.not_before, q.claimed_at, q.claimed_by, q.outcome, q.completed_at, q.created_at
		FROM action_queue q
		JOIN campaigns c ON c.id = q.campaign_id
		WHERE q.state = $1 AND q.not_before <= $2 AND c.status = $3
		ORDER BY q.not_before ASC, q.enrollment_id ASC
		LIMIT $4`,
		domain.EntryPending, now, domain.CampaignStatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("queue repo: next candidates: %w", err)
	}
	defer rows.Close()

	var results []*domain.QueueEntry
	for rows.Next() {
		var rec queueRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("queue repo: scan: %w", err)
		}
		entry := rec.toDomain()
		results = append(results, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue repo: rows err: %w", err)
	}
	return results, nil
}

// Claim atomically hands out a pending entry. The state guard makes the
// update succeed for exactly one concurrent poller.
func (r *QueueRepository) Claim(ctx context.Context, id uuid.UUID, identity string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE action_queue
		SET state = $1, claimed_at = $2, claimed_by = $3
		WHERE id = $4 AND state = $5`,
		domain.EntryClaimed, now, identity, id, domain.EntryPending)
	if err != nil {
		return false, fmt.Errorf("queue repo: claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue repo: rows affected: %w", err)
	}
	return n > 0, nil
}

// Finalize atomically completes a live entry; false means it was already
// finalized by an earlier call.
func (r *QueueRepository) Finalize(ctx context.Context, id uuid.UUID, outcome domain.ActionOutcome, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE action_queue
		SET state = $1, outcome = $2, completed_at = $3
		WHERE id = $4 AND state <> $1`,
		domain.EntryCompleted, outcome, now, id)
	if err != nil {
		return false, fmt.Errorf("queue repo: finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue repo: rows affected: %w", err)
	}
	return n > 0, nil
}

// ReleaseExpired returns claimed entries older than cutoff to pending so
// a crashed executor cannot strand a prospect.
func (r *QueueRepository) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE action_queue
		SET state = $1, claimed_at = NULL, claimed_by = ''
		WHERE state = $2 AND claimed_at < $3`,
		domain.EntryPending, domain.EntryClaimed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("queue repo: release expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queue repo: rows affected: %w", err)
	}
	return n, nil
}

// CountCompletedBetween counts a campaign's completed actions inside the
// half-open [from, to) window. The daily counter is always derived this
// way, never maintained as a mutable value.
func (r *QueueRepository) CountCompletedBetween(ctx context.Context, campaignID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM action_queue
		WHERE campaign_id = $1 AND state = $2 AND completed_at >= $3 AND completed_at < $4`,
		campaignID, domain.EntryCompleted, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue repo: count completed: %w", err)
	}
	return count, nil
}

// CountAllCompletedBetween counts completed actions across campaigns,
// optionally narrowed to one outcome.
func (r *QueueRepository) CountAllCompletedBetween(ctx context.Context, from, to time.Time, outcome *domain.ActionOutcome) (int, error) {
	query := `SELECT COUNT(*) FROM action_queue WHERE state = $1 AND completed_at >= $2 AND completed_at < $3`
	args := []any{domain.EntryCompleted, from, to}
	if outcome != nil {
		query += ` AND outcome = $4`
		args = append(args, *outcome)
	}

	var count int
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("queue repo: count all completed: %w", err)
	}
	return count, nil
}

// CountByState counts entries in a state across campaigns.
func (r *QueueRepository) CountByState(ctx context.Context, state domain.EntryState) (int, error) {
	var count int
	err := r.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM action_queue WHERE state = $1`, state).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue repo: count by state: %w", err)
	}
	return count, nil
}

// DeleteLiveByEnrollment removes the enrollment's live entry, if any.
func (r *QueueRepository) DeleteLiveByEnrollment(ctx context.Context, enrollmentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM action_queue WHERE enrollment_id = $1 AND state <> $2`,
		enrollmentID, domain.EntryCompleted)
	if err != nil {
		return fmt.Errorf("queue repo: delete live: %w", err)
	}
	return nil
}

type queueRecord struct {
	ID           uuid.UUID      `db:"id"`
	CampaignID   uuid.UUID      `db:"campaign_id"`
	EnrollmentID uuid.UUID      `db:"enrollment_id"`
	ProspectID   uuid.UUID      `db:"prospect_id"`
	StepID       uuid.UUID      `db:"step_id"`
	StepOrder    int            `db:"step_order"`
	ActionKind   string         `db:"action_kind"`
	State        string         `db:"state"`
	NotBefore    time.Time      `db:"not_before"`
	ClaimedAt    sql.NullTime   `db:"claimed_at"`
	ClaimedBy    sql.NullString `db:"claimed_by"`
	Outcome      sql.NullString `db:"outcome"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	CreatedAt    sql.NullTime   `db:"created_at"`
}

func (r queueRecord) toDomain() domain.QueueEntry {
	entry := domain.QueueEntry{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		EnrollmentID: r.EnrollmentID,
		ProspectID:   r.ProspectID,
		StepID:       r.StepID,
		StepOrder:    r.StepOrder,
		Kind:         domain.ActionKind(r.ActionKind),
		State:        domain.EntryState(r.State),
		NotBefore:    r.NotBefore,
		ClaimedBy:    r.ClaimedBy.String,
		CreatedAt:    r.CreatedAt.Time,
	}
	if r.ClaimedAt.Valid {
		t := r.ClaimedAt.Time
		entry.ClaimedAt = &t
	}
	if r.Outcome.Valid {
		outcome := domain.ActionOutcome(r.Outcome.String)
		entry.Outcome = &outcome
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		entry.CompletedAt = &t
	}
	return entry
}
