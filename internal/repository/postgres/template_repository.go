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

// TemplateRepository stores message templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a template.
func (r *TemplateRepository) Create(ctx context.Context, template *domain.MessageTemplate) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO message_templates (
		id, owner_id, name, type, content, created_at, updated_at
	) VALUES (:id, :owner_id, :name, :type, :content, :created_at, :updated_at)`,
		templateParams(template))
	if err != nil {
		return fmt.Errorf("template repo: insert: %w", err)
	}
	return nil
}

// Get fetches a template by id.
func (r *TemplateRepository) Get(ctx context.Context, id uuid.UUID) (*domain.MessageTemplate, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT id, owner_id, name, type, content, created_at, updated_at
		FROM message_templates WHERE id = $1`, id)
	var rec templateRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("template repo: get: %w", err)
	}
	template := rec.toDomain()
	return &template, nil
}

// Update persists template changes.
func (r *TemplateRepository) Update(ctx context.Context, template *domain.MessageTemplate) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE message_templates SET
		name = :name, type = :type, content = :content, updated_at = NOW()
	WHERE id = :id`, templateParams(template))
	if err != nil {
		return fmt.Errorf("template repo: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("template repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an owner's templates by id.
func (r *TemplateRepository) Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM message_templates WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("template repo: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("template repo: rows affected: %w", err)
	}
	return n, nil
}

// List returns an owner's templates, optionally filtered by type.
func (r *TemplateRepository) List(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType, limit int) ([]*domain.MessageTemplate, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, owner_id, name, type, content, created_at, updated_at
		FROM message_templates WHERE owner_id = $1`
	args := []any{ownerID}
	if templateType != "" {
		query += ` AND type = $2 ORDER BY created_at DESC LIMIT $3`
		args = append(args, templateType, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("template repo: list: %w", err)
	}
	defer rows.Close()

	var results []*domain.MessageTemplate
	for rows.Next() {
		var rec templateRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("template repo: scan: %w", err)
		}
		template := rec.toDomain()
		results = append(results, &template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("template repo: rows err: %w", err)
	}
	return results, nil
}

func templateParams(template *domain.MessageTemplate) map[string]any {
	return map[string]any{
		"id":         template.ID,
		"owner_id":   template.OwnerID,
		"name":       template.Name,
		"type":       template.Type,
		"content":    template.Content,
		"created_at": template.CreatedAt,
		"updated_at": template.UpdatedAt,
	}
}

type templateRecord struct {
	ID        uuid.UUID    `db:"id"`
	OwnerID   uuid.UUID    `db:"owner_id"`
	Name      string       `db:"name"`
	Type      string       `db:"type"`
	Content   string       `db:"content"`
	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

func (r templateRecord) toDomain() domain.MessageTemplate {
	return domain.MessageTemplate{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Type:      domain.TemplateType(r.Type),
		Content:   r.Content,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}
