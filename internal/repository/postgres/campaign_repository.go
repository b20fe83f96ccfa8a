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

const campaignColumns = `id, owner_id, name, description, time_zone, status, daily_limit,
	total_prospects, processed_prospects, success_count, failure_count,
	created_at, updated_at, started_at, completed_at`

// CampaignRepository implements repository.CampaignRepository using PostgreSQL.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs a new repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	q := `INSERT INTO campaigns (
		id, owner_id, name, description, time_zone, status, daily_limit,
		total_prospects, processed_prospects, success_count, failure_count,
		created_at, updated_at, started_at, completed_at
	) VALUES (
		:id, :owner_id, :name, :description, :time_zone, :status, :daily_limit,
		:total_prospects, :processed_prospects, :success_count, :failure_count,
		:created_at, :updated_at, :started_at, :completed_at
	)`

	if _, err := r.db.NamedExecContext(ctx, q, campaignParams(campaign)); err != nil {
		return fmt.Errorf("campaign repo: insert: %w", err)
	}
	return nil
}

// Get fetches a campaign by id.
func (r *CampaignRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, q, id)
	var record campaignRecord
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign repo: get: %w", err)
	}

	campaign := record.toDomain()
	return &campaign, nil
}

// Update updates campaign metadata and lifecycle timestamps.
func (r *CampaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	q := `UPDATE campaigns SET
		name = :name,
		description = :description,
		time_zone = :time_zone,
		status = :status,
		daily_limit = :daily_limit,
		updated_at = :updated_at,
		started_at = :started_at,
		completed_at = :completed_at
	 WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, q, campaignParams(campaign))
	if err != nil {
		return fmt.Errorf("campaign repo: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("campaign repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateStatus updates campaign status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("campaign repo: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("campaign repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns an owner's campaigns, optionally filtered by status.
func (r *CampaignRepository) List(ctx context.Context, ownerID uuid.UUID, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE owner_id = $1`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3`
		args = append(args, status, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
		args = append(args, limit)
	}

	return r.queryCampaigns(ctx, query, args...)
}

// ListByStatus returns campaigns in a status across owners.
func (r *CampaignRepository) ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryCampaigns(ctx, `SELECT `+campaignColumns+`
		FROM campaigns WHERE status = $1 ORDER BY updated_at ASC LIMIT $2`, status, limit)
}

// ApplyCounterDelta atomically increments aggregate counters.
func (r *CampaignRepository) ApplyCounterDelta(ctx context.Context, id uuid.UUID, delta domain.CounterDelta) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaigns SET
		total_prospects = total_prospects + $2,
		processed_prospects = processed_prospects + $3,
		success_count = success_count + $4,
		failure_count = failure_count + $5,
		updated_at = NOW()
	WHERE id = $1`,
		id,
		delta.TotalProspects,
		delta.ProcessedProspects,
		delta.SuccessCount,
		delta.FailureCount,
	)
	if err != nil {
		return fmt.Errorf("campaign repo: apply counter delta: %w", err)
	}
	return nil
}

// DeleteCascade removes the campaign and everything it owns in one
// transaction.
func (r *CampaignRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM action_queue WHERE campaign_id = $1`, id); err != nil {
			return fmt.Errorf("campaign repo: delete queue entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_prospects WHERE campaign_id = $1`, id); err != nil {
			return fmt.Errorf("campaign repo: delete enrollments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_steps WHERE campaign_id = $1`, id); err != nil {
			return fmt.Errorf("campaign repo: delete steps: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("campaign repo: delete campaign: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("campaign repo: rows affected: %w", err)
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *CampaignRepository) queryCampaigns(ctx context.Context, query string, args ...any) ([]*domain.Campaign, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: list: %w", err)
	}
	defer rows.Close()

	var results []*domain.Campaign
	for rows.Next() {
		var record campaignRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("campaign repo: scan: %w", err)
		}
		campaign := record.toDomain()
		results = append(results, &campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaign repo: rows err: %w", err)
	}
	return results, nil
}

func campaignParams(campaign *domain.Campaign) map[string]any {
	return map[string]any{
		"id":                  campaign.ID,
		"owner_id":            campaign.OwnerID,
		"name":                campaign.Name,
		"description":         campaign.Description,
		"time_zone":           campaign.TimeZone,
		"status":              campaign.Status,
		"daily_limit":         campaign.DailyLimit,
		"total_prospects":     campaign.TotalProspects,
		"processed_prospects": campaign.ProcessedProspects,
		"success_count":       campaign.SuccessCount,
		"failure_count":       campaign.FailureCount,
		"created_at":          campaign.CreatedAt,
		"updated_at":          campaign.UpdatedAt,
		"started_at":          campaign.StartedAt,
		"completed_at":        campaign.CompletedAt,
	}
}

type campaignRecord struct {
	ID                 uuid.UUID      `db:"id"`
	OwnerID            uuid.UUID      `db:"owner_id"`
	Name               string         `db:"name"`
	Description        sql.NullString `db:"description"`
	TimeZone           string         `db:"time_zone"`
	Status             string         `db:"status"`
	DailyLimit         int            `db:"daily_limit"`
	TotalProspects     int            `db:"total_prospects"`
	ProcessedProspects int            `db:"processed_prospects"`
	SuccessCount       int            `db:"success_count"`
	FailureCount       int            `db:"failure_count"`
	CreatedAt          sql.NullTime   `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
	StartedAt          sql.NullTime   `db:"started_at"`
	CompletedAt        sql.NullTime   `db:"completed_at"`
}

func (r campaignRecord) toDomain() domain.Campaign {
	campaign := domain.Campaign{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		Name:               r.Name,
		Description:        r.Description.String,
		TimeZone:           r.TimeZone,
		Status:             domain.CampaignStatus(r.Status),
		DailyLimit:         r.DailyLimit,
		TotalProspects:     r.TotalProspects,
		ProcessedProspects: r.ProcessedProspects,
		SuccessCount:       r.SuccessCount,
		FailureCount:       r.FailureCount,
		CreatedAt:          r.CreatedAt.Time,
		UpdatedAt:          r.UpdatedAt.Time,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		campaign.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		campaign.CompletedAt = &t
	}
	return campaign
}
