package template

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

// Service manages reusable message templates.
type Service struct {
	templates repository.TemplateRepository
	now       func() time.Time
}

// NewService constructs a template service.
func NewService(templates repository.TemplateRepository) *Service {
	return &Service{
		templates: templates,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateTemplateInput captures template creation parameters.
type CreateTemplateInput struct {
	OwnerID uuid.UUID
	Name    string
	Type    domain.TemplateType
	Content string
}

// UpdateTemplateInput captures updatable template fields.
type UpdateTemplateInput struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    *string
	Type    *domain.TemplateType
	Content *string
}

// Create validates and stores a new template.
func (s *Service) Create(ctx context.Context, input CreateTemplateInput) (*domain.MessageTemplate, error) {
	now := s.now()
	template := &domain.MessageTemplate{
		ID:        uuid.New(),
		OwnerID:   input.OwnerID,
		Name:      input.Name,
		Type:      input.Type,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, fmt.Errorf("template service: create: %w", err)
	}
	return template, nil
}

// Get fetches an owner's template.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.MessageTemplate, error) {
	template, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if template.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return template, nil
}

// Update modifies a template, re-validating content limits.
func (s *Service) Update(ctx context.Context, input UpdateTemplateInput) (*domain.MessageTemplate, error) {
	template, err := s.Get(ctx, input.OwnerID, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		template.Name = *input.Name
	}
	if input.Type != nil {
		template.Type = *input.Type
	}
	if input.Content != nil {
		template.Content = *input.Content
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}
	template.UpdatedAt = s.now()

	if err := s.templates.Update(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// Delete removes an owner's templates.
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return s.templates.Delete(ctx, ownerID, ids)
}

// List returns an owner's templates, optionally filtered by type.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType, limit int) ([]*domain.MessageTemplate, error) {
	return s.templates.List(ctx, ownerID, templateType, limit)
}
