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

const prospectColumns = `id, owner_id, linkedin_id, full_name, headline, profile_url, profile_image_url, connection_status, created_at, updated_at`

// ProspectRepository stores LinkedIn profile records.
type ProspectRepository struct {
	db *sqlx.DB
}

// NewProspectRepository constructs the repository.
func NewProspectRepository(db *sqlx.DB) *ProspectRepository {
	return &ProspectRepository{db: db}
}

// Create inserts a prospect; a duplicate profile URL is a conflict.
func (r *ProspectRepository) Create(ctx context.Context, prospect *domain.Prospect) error {
	res, err := r.db.NamedExecContext(ctx, `INSERT INTO prospects (
		id, owner_id, linkedin_id, full_name, headline, profile_url, profile_image_url, connection_status, created_at, updated_at
	) VALUES (
		:id, :owner_id, :linkedin_id, :full_name, :headline, :profile_url, :profile_image_url, :connection_status, :created_at, :updated_at
	) ON CONFLICT (owner_id, profile_url) DO NOTHING`, prospectParams(prospect))
	if err != nil {
		return fmt.Errorf("prospect repo: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("prospect repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrConflict
	}
	return nil
}

// Get fetches a prospect by id.
func (r *ProspectRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Prospect, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id)
	var rec prospectRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("prospect repo: get: %w", err)
	}
	prospect := rec.toDomain()
	return &prospect, nil
}

// Update persists prospect profile and connection status changes.
func (r *ProspectRepository) Update(ctx context.Context, prospect *domain.Prospect) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE prospects SET
		linkedin_id = :linkedin_id,
		full_name = :full_name,
		headline = :headline,
		profile_url = :profile_url,
		profile_image_url = :profile_image_url,
		connection_status = :connection_status,
		updated_at = NOW()
	WHERE id = :id`, prospectParams(prospect))
	if err != nil {
		return fmt.Errorf("prospect repo: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("prospect repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an owner's prospects by id.
func (r *ProspectRepository) Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM prospects WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("prospect repo: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prospect repo: rows affected: %w", err)
	}
	return n, nil
}

// List returns an owner's prospects with optional filters.
func (r *ProspectRepository) List(ctx context.Context, ownerID uuid.UUID, filter repository.ProspectFilter) ([]*domain.Prospect, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE owner_id = $1`
	args := []any{ownerID}
	idx := 2
	if filter.ConnectionStatus != "" {
		query += fmt.Sprintf(" AND connection_status = $%d", idx)
		args = append(args, filter.ConnectionStatus)
		idx++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND full_name ILIKE $%d", idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("prospect repo: list: %w", err)
	}
	defer rows.Close()

	var results []*domain.Prospect
	for rows.Next() {
		var rec prospectRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("prospect repo: scan: %w", err)
		}
		prospect := rec.toDomain()
		results = append(results, &prospect)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prospect repo: rows err: %w", err)
	}
	return results, nil
}

// BulkUpsert inserts extracted prospects, skipping profile URLs the owner
// already has, and returns the number actually inserted.
func (r *ProspectRepository) BulkUpsert(ctx context.Context, prospects []*domain.Prospect) (int64, error) {
	if len(prospects) == 0 {
		return 0, nil
	}

	var inserted int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, prospect := range prospects {
			res, err := tx.NamedExecContext(ctx, `INSERT INTO prospects (
				id, owner_id, linkedin_id, full_name, headline, profile_url, profile_image_url, connection_status, created_at, updated_at
			) VALUES (
				:id, :owner_id, :linkedin_id, :full_name, :headline, :profile_url, :profile_image_url, :connection_status, :created_at, :updated_at
			) ON CONFLICT (owner_id, profile_url) DO NOTHING`, prospectParams(prospect))
			if err != nil {
				return fmt.Errorf("prospect repo: bulk insert: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("prospect repo: rows affected: %w", err)
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Stats aggregates prospect counts per connection status.
func (r *ProspectRepository) Stats(ctx context.Context, ownerID uuid.UUID) (*domain.ProspectStats, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT connection_status, COUNT(*) AS count
		FROM prospects WHERE owner_id = $1 GROUP BY connection_status`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("prospect repo: stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.ProspectStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("prospect repo: stats scan: %w", err)
		}
		stats.Total += count
		switch domain.ConnectionStatus(status) {
		case domain.ConnectionNotConnected:
			stats.NotConnected = count
		case domain.ConnectionPending:
			stats.Pending = count
		case domain.ConnectionConnected:
			stats.Connected = count
		case domain.ConnectionWithdrawn:
			stats.Withdrawn = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prospect repo: stats rows err: %w", err)
	}
	return stats, nil
}

func prospectParams(prospect *domain.Prospect) map[string]any {
	return map[string]any{
		"id":                prospect.ID,
		"owner_id":          prospect.OwnerID,
		"linkedin_id":       prospect.LinkedInID,
		"full_name":         prospect.FullName,
		"headline":          prospect.Headline,
		"profile_url":       prospect.ProfileURL,
		"profile_image_url": prospect.ProfileImageURL,
		"connection_status": prospect.ConnectionStatus,
		"created_at":        prospect.CreatedAt,
		"updated_at":        prospect.UpdatedAt,
	}
}

type prospectRecord struct {
	ID               uuid.UUID      `db:"id"`
	OwnerID          uuid.UUID      `db:"owner_id"`
	LinkedInID       sql.NullString `db:"linkedin_id"`
	FullName         string         `db:"full_name"`
	Headline         sql.NullString `db:"headline"`
	ProfileURL       string         `db:"profile_url"`
	ProfileImageURL  sql.NullString `db:"profile_image_url"`
	ConnectionStatus string         `db:"connection_status"`
	CreatedAt        sql.NullTime   `db:"created_at"`
	UpdatedAt        sql.NullTime   `db:"updated_at"`
}

func (r prospectRecord) toDomain() domain.Prospect {
	return domain.Prospect{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		LinkedInID:       r.LinkedInID.String,
		FullName:         r.FullName,
		Headline:         r.Headline.String,
		ProfileURL:       r.ProfileURL,
		ProfileImageURL:  r.ProfileImageURL.String,
		ConnectionStatus: domain.ConnectionStatus(r.ConnectionStatus),
		CreatedAt:        r.CreatedAt.Time,
		UpdatedAt:        r.UpdatedAt.Time,
	}
}
