package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
)

// StepRepository persists campaign step sequences.
type StepRepository struct {
	db *sqlx.DB
}

// NewStepRepository constructs the repository.
func NewStepRepository(db *sqlx.DB) *StepRepository {
	return &StepRepository{db: db}
}

// Replace swaps the campaign's step sequence atomically.
func (r *StepRepository) Replace(ctx context.Context, campaignID uuid.UUID, steps []domain.CampaignStep) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_steps WHERE campaign_id = $1`, campaignID); err != nil {
			return fmt.Errorf("step repo: delete existing: %w", err)
		}
		for _, step := range steps {
			_, err := tx.NamedExecContext(ctx, `INSERT INTO campaign_steps (
				id, campaign_id, step_order, action_kind, delay_days, message_template_id, created_at
			) VALUES (:id, :campaign_id, :step_order, :action_kind, :delay_days, :message_template_id, :created_at)`,
				map[string]any{
					"id":                  step.ID,
					"campaign_id":         campaignID,
					"step_order":          step.Order,
					"action_kind":         step.Kind,
					"delay_days":          step.DelayDays,
					"message_template_id": step.TemplateID,
					"created_at":          step.CreatedAt,
				})
			if err != nil {
				return fmt.Errorf("step repo: insert step %d: %w", step.Order, err)
			}
		}
		return nil
	})
}

// ListByCampaign returns the campaign's steps in execution order.
func (r *StepRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) (domain.StepPlan, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, campaign_id, step_order, action_kind, delay_days, message_template_id, created_at
		FROM campaign_steps WHERE campaign_id = $1 ORDER BY step_order ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("step repo: list: %w", err)
	}
	defer rows.Close()

	var plan domain.StepPlan
	for rows.Next() {
		var rec stepRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("step repo: scan: %w", err)
		}
		plan = append(plan, rec.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("step repo: rows err: %w", err)
	}
	return plan, nil
}

// Get fetches a single step by id.
func (r *StepRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CampaignStep, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT id, campaign_id, step_order, action_kind, delay_days, message_template_id, created_at
		FROM campaign_steps WHERE id = $1`, id)

	var rec stepRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("step repo: get: %w", err)
	}
	step := rec.toDomain()
	return &step, nil
}

type stepRecord struct {
	ID         uuid.UUID           `db:"id"`
	CampaignID uuid.UUID           `db:"campaign_id"`
	StepOrder  int                 `db:"step_order"`
	ActionKind string              `db:"action_kind"`
	DelayDays  int                 `db:"delay_days"`
	TemplateID sql.Null[uuid.UUID] `db:"message_template_id"`
	CreatedAt  sql.NullTime        `db:"created_at"`
}

func (r stepRecord) toDomain() domain.CampaignStep {
	step := domain.CampaignStep{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Order:      r.StepOrder,
		Kind:       domain.ActionKind(r.ActionKind),
		DelayDays:  r.DelayDays,
		CreatedAt:  r.CreatedAt.Time,
	}
	if r.TemplateID.Valid {
		id := r.TemplateID.V
		step.TemplateID = &id
	}
	return step
}
