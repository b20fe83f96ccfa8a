package prospect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

// Service manages the prospect roster.
type Service struct {
	prospects repository.ProspectRepository
	now       func() time.Time
}

// NewService constructs a prospect service.
func NewService(prospects repository.ProspectRepository) *Service {
	return &Service{
		prospects: prospects,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProspectInput captures one extracted LinkedIn profile.
type ProspectInput struct {
	LinkedInID      string
	FullName        string
	Headline        string
	ProfileURL      string
	ProfileImageURL string
}

// Create stores a single prospect.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, input ProspectInput) (*domain.Prospect, error) {
	prospect, err := s.build(ownerID, input)
	if err != nil {
		return nil, err
	}
	if err := s.prospects.Create(ctx, prospect); err != nil {
		return nil, err
	}
	return prospect, nil
}

// Import bulk-inserts extracted prospects, skipping profile URLs the
// owner already has, and returns how many were actually added.
func (s *Service) Import(ctx context.Context, ownerID uuid.UUID, inputs []ProspectInput) (int64, error) {
	prospects := make([]*domain.Prospect, 0, len(inputs))
	for _, input := range inputs {
		prospect, err := s.build(ownerID, input)
		if err != nil {
			return 0, err
		}
		prospects = append(prospects, prospect)
	}
	inserted, err := s.prospects.BulkUpsert(ctx, prospects)
	if err != nil {
		return 0, fmt.Errorf("prospect service: import: %w", err)
	}
	return inserted, nil
}

// Get fetches an owner's prospect.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.Prospect, error) {
	prospect, err := s.prospects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if prospect.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return prospect, nil
}

// SetConnectionStatus records a relationship change reported by the
// extension.
func (s *Service) SetConnectionStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.ConnectionStatus) (*domain.Prospect, error) {
	switch status {
	case domain.ConnectionNotConnected, domain.ConnectionPending, domain.ConnectionConnected, domain.ConnectionWithdrawn:
	default:
		return nil, fmt.Errorf("%w: unknown connection status %q", apperrors.ErrValidation, status)
	}

	prospect, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	prospect.ConnectionStatus = status
	prospect.UpdatedAt = s.now()
	if err := s.prospects.Update(ctx, prospect); err != nil {
		return nil, err
	}
	return prospect, nil
}

// Delete removes an owner's prospects.
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return s.prospects.Delete(ctx, ownerID, ids)
}

// List returns an owner's prospects with optional filters.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, filter repository.ProspectFilter) ([]*domain.Prospect, error) {
	return s.prospects.List(ctx, ownerID, filter)
}

// Stats aggregates prospect counts per connection status.
func (s *Service) Stats(ctx context.Context, ownerID uuid.UUID) (*domain.ProspectStats, error) {
	return s.prospects.Stats(ctx, ownerID)
}

func (s *Service) build(ownerID uuid.UUID, input ProspectInput) (*domain.Prospect, error) {
	if input.FullName == "" {
		return nil, fmt.Errorf("%w: prospect full name is required", apperrors.ErrValidation)
	}
	if input.ProfileURL == "" {
		return nil, fmt.Errorf("%w: prospect profile URL is required", apperrors.ErrValidation)
	}
	now := s.now()
	return &domain.Prospect{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		LinkedInID:       input.LinkedInID,
		FullName:         input.FullName,
		Headline:         input.Headline,
		ProfileURL:       input.ProfileURL,
		ProfileImageURL:  input.ProfileImageURL,
		ConnectionStatus: domain.ConnectionNotConnected,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
