package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

// Service orchestrates campaign lifecycle operations.
type Service struct {
	campaigns   repository.CampaignRepository
	steps       repository.StepRepository
	enrollments repository.EnrollmentRepository
	queue       repository.QueueRepository
	templates   repository.TemplateRepository

	defaultDailyLimit int
	now               func() time.Time
}

// NewService constructs a campaign service.
func NewService(
	campaigns repository.CampaignRepository,
	steps repository.StepRepository,
	enrollments repository.EnrollmentRepository,
	queue repository.QueueRepository,
	templates repository.TemplateRepository,
	defaultDailyLimit int,
) *Service {
	return &Service{
		campaigns:         campaigns,
		steps:             steps,
		enrollments:       enrollments,
		queue:             queue,
		templates:         templates,
		defaultDailyLimit: defaultDailyLimit,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// CreateCampaignInput captures campaign creation parameters.
type CreateCampaignInput struct {
	OwnerID     uuid.UUID
	Name        string
	Description string
	TimeZone    string
	DailyLimit  int
	Steps       []StepInput
}

// StepInput expresses one step of the sequence.
type StepInput struct {
	Order      int
	Kind       domain.ActionKind
	DelayDays  int
	TemplateID *uuid.UUID
}

// UpdateCampaignInput captures updatable properties.
type UpdateCampaignInput struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	TimeZone    *string
	DailyLimit  *int
	Steps       *[]StepInput
}

// Create provisions a new campaign in draft with its step sequence.
func (s *Service) Create(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	campaign := &domain.Campaign{
		ID:          uuid.New(),
		OwnerID:     input.OwnerID,
		Name:        input.Name,
		Description: input.Description,
		TimeZone:    input.TimeZone,
		Status:      domain.CampaignStatusDraft,
		DailyLimit:  s.resolveDailyLimit(input.DailyLimit),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	steps := toDomainSteps(campaign.ID, input.Steps, now)
	if err := domain.ValidatePlan(steps); err != nil {
		return nil, err
	}
	if err := s.validateStepTemplates(ctx, input.OwnerID, steps); err != nil {
		return nil, err
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("campaign service: create campaign: %w", err)
	}
	if err := s.steps.Replace(ctx, campaign.ID, steps); err != nil {
		return nil, fmt.Errorf("campaign service: store steps: %w", err)
	}

	return campaign, nil
}

// Get retrieves a campaign by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

// Steps returns the campaign's step sequence in execution order.
func (s *Service) Steps(ctx context.Context, id uuid.UUID) (domain.StepPlan, error) {
	return s.steps.ListByCampaign(ctx, id)
}

// List returns an owner's campaigns, optionally filtered by status.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	return s.campaigns.List(ctx, ownerID, status, limit)
}

// ListActive returns all active campaigns.
func (s *Service) ListActive(ctx context.Context, limit int) ([]*domain.Campaign, error) {
	return s.campaigns.ListByStatus(ctx, domain.CampaignStatusActive, limit)
}

// Update modifies campaign metadata. The step sequence may only change
// while the campaign is still in draft.
func (s *Service) Update(ctx context.Context, input UpdateCampaignInput) (*domain.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		campaign.Name = *input.Name
	}
	if input.Description != nil {
		campaign.Description = *input.Description
	}
	if input.TimeZone != nil {
		if _, err := time.LoadLocation(*input.TimeZone); err != nil {
			return nil, fmt.Errorf("%w: invalid time zone %s", apperrors.ErrValidation, *input.TimeZone)
		}
		campaign.TimeZone = *input.TimeZone
	}
	if input.DailyLimit != nil {
		campaign.DailyLimit = s.resolveDailyLimit(*input.DailyLimit)
	}
	campaign.UpdatedAt = s.now()

	// Validate the step change before any write so a rejected request
	// leaves both metadata and steps untouched.
	var steps []domain.CampaignStep
	if input.Steps != nil {
		if campaign.Status != domain.CampaignStatusDraft {
			return nil, fmt.Errorf("%w: steps are frozen once the campaign leaves draft", apperrors.ErrInvalidState)
		}
		steps = toDomainSteps(campaign.ID, *input.Steps, s.now())
		if err := domain.ValidatePlan(steps); err != nil {
			return nil, err
		}
		if err := s.validateStepTemplates(ctx, campaign.OwnerID, steps); err != nil {
			return nil, err
		}
	}

	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}
	if input.Steps != nil {
		if err := s.steps.Replace(ctx, campaign.ID, steps); err != nil {
			return nil, fmt.Errorf("campaign service: update steps: %w", err)
		}
	}

	return campaign, nil
}

// Start activates a draft or paused campaign and materializes a queue
// entry for every active enrollment that does not already hold one.
func (s *Service) Start(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == domain.CampaignStatusActive {
		return nil
	}
	if !campaign.CanStart() {
		return fmt.Errorf("%w: cannot start a %s campaign", apperrors.ErrInvalidState, campaign.Status)
	}

	plan, err := s.steps.ListByCampaign(ctx, id)
	if err != nil {
		return fmt.Errorf("campaign service: list steps: %w", err)
	}
	if len(plan) == 0 {
		return fmt.Errorf("%w: campaign has no steps", apperrors.ErrInvalidState)
	}
	active, err := s.enrollments.ListActive(ctx, id)
	if err != nil {
		return fmt.Errorf("campaign service: list enrollments: %w", err)
	}
	if len(active) == 0 {
		return fmt.Errorf("%w: campaign has no prospects to work", apperrors.ErrInvalidState)
	}

	now := s.now()
	for _, enrollment := range active {
		if err := s.materialize(ctx, campaign, plan, enrollment, now); err != nil {
			return err
		}
	}

	campaign.Status = domain.CampaignStatusActive
	if campaign.StartedAt == nil {
		campaign.StartedAt = &now
	}
	campaign.UpdatedAt = now
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return fmt.Errorf("campaign service: activate: %w", err)
	}
	return nil
}

// Pause stops new claims without touching in-flight work. Entries stay
// in the queue; the scheduler simply skips non-active campaigns.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == domain.CampaignStatusPaused {
		return nil
	}
	if !campaign.CanPause() {
		return fmt.Errorf("%w: cannot pause a %s campaign", apperrors.ErrInvalidState, campaign.Status)
	}
	return s.campaigns.UpdateStatus(ctx, id, domain.CampaignStatusPaused)
}

// Archive retires a campaign. Archived campaigns never serve actions.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == domain.CampaignStatusArchived {
		return nil
	}
	return s.campaigns.UpdateStatus(ctx, id, domain.CampaignStatusArchived)
}

// Delete removes a campaign with all its steps, enrollments and queue
// entries.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.campaigns.Get(ctx, id); err != nil {
		return err
	}
	return s.campaigns.DeleteCascade(ctx, id)
}

// AddProspects enrolls prospects into the campaign. Already enrolled
// prospects are ignored; only fresh enrollments grow the total counter.
// On an active campaign a first-step entry is materialized immediately.
func (s *Service) AddProspects(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) (int, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.IsTerminal() {
		return 0, fmt.Errorf("%w: cannot add prospects to a %s campaign", apperrors.ErrInvalidState, campaign.Status)
	}

	inserted, err := s.enrollments.Add(ctx, campaignID, prospectIDs)
	if err != nil {
		return 0, fmt.Errorf("campaign service: enroll prospects: %w", err)
	}
	if len(inserted) == 0 {
		return 0, nil
	}

	if err := s.campaigns.ApplyCounterDelta(ctx, campaignID, domain.CounterDelta{TotalProspects: len(inserted)}); err != nil {
		return 0, fmt.Errorf("campaign service: bump total: %w", err)
	}

	if campaign.Status == domain.CampaignStatusActive {
		plan, err := s.steps.ListByCampaign(ctx, campaignID)
		if err != nil {
			return 0, fmt.Errorf("campaign service: list steps: %w", err)
		}
		now := s.now()
		for _, enrollment := range inserted {
			if err := s.materialize(ctx, campaign, plan, enrollment, now); err != nil {
				return 0, err
			}
		}
	}

	return len(inserted), nil
}

// RemoveProspects withdraws prospects from the campaign, deleting their
// live queue entries. Historical processed/success/failure counters are
// left untouched.
func (s *Service) RemoveProspects(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) (int64, error) {
	if _, err := s.campaigns.Get(ctx, campaignID); err != nil {
		return 0, err
	}

	removed, err := s.enrollments.Remove(ctx, campaignID, prospectIDs)
	if err != nil {
		return 0, fmt.Errorf("campaign service: remove prospects: %w", err)
	}
	if removed > 0 {
		if err := s.campaigns.ApplyCounterDelta(ctx, campaignID, domain.CounterDelta{TotalProspects: int(-removed)}); err != nil {
			return 0, fmt.Errorf("campaign service: shrink total: %w", err)
		}
	}
	return removed, nil
}

// Stats assembles the campaign stats projection. ActionsToday is derived
// from completed queue entries inside the campaign-local day window.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*domain.CampaignStats, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pending, err := s.enrollments.CountActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign service: count active: %w", err)
	}
	from, to := campaign.DayWindow(s.now())
	today, err := s.queue.CountCompletedBetween(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("campaign service: count today: %w", err)
	}

	return &domain.CampaignStats{
		TotalProspects:     campaign.TotalProspects,
		ProcessedProspects: campaign.ProcessedProspects,
		SuccessCount:       campaign.SuccessCount,
		FailureCount:       campaign.FailureCount,
		PendingProspects:   pending,
		ActionsToday:       today,
	}, nil
}

// materialize inserts the enrollment's next queue entry unless it
// already holds a live one. The first step is due immediately; later
// steps wait out their delay from the previous completion.
func (s *Service) materialize(ctx context.Context, campaign *domain.Campaign, plan domain.StepPlan, enrollment *domain.Enrollment, now time.Time) error {
	live, err := s.queue.HasLive(ctx, enrollment.ID)
	if err != nil {
		return fmt.Errorf("campaign service: check live entry: %w", err)
	}
	if live {
		return nil
	}
	if enrollment.CurrentStep >= len(plan) {
		return nil
	}

	step, ok := plan.StepAt(enrollment.CurrentStep + 1)
	if !ok {
		return fmt.Errorf("campaign service: step %d missing from plan", enrollment.CurrentStep+1)
	}

	notBefore := now
	if enrollment.LastActionAt != nil {
		notBefore = enrollment.LastActionAt.Add(step.Delay())
	}

	entry := &domain.QueueEntry{
		ID:           uuid.New(),
		CampaignID:   campaign.ID,
		EnrollmentID: enrollment.ID,
		ProspectID:   enrollment.ProspectID,
		StepID:       step.ID,
		StepOrder:    step.Order,
		Kind:         step.Kind,
		State:        domain.EntryPending,
		NotBefore:    notBefore,
		CreatedAt:    now,
	}
	if err := s.queue.Insert(ctx, entry); err != nil {
		return fmt.Errorf("campaign service: insert queue entry: %w", err)
	}
	return nil
}

// validateStepTemplates checks that each template-bearing step points at
// an existing template of the kind's expected type owned by the caller.
func (s *Service) validateStepTemplates(ctx context.Context, ownerID uuid.UUID, steps []domain.CampaignStep) error {
	for _, step := range steps {
		if step.TemplateID == nil {
			continue
		}
		template, err := s.templates.Get(ctx, *step.TemplateID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: step %d references unknown template", apperrors.ErrValidation, step.Order)
			}
			return fmt.Errorf("campaign service: load template: %w", err)
		}
		if template.OwnerID != ownerID {
			return fmt.Errorf("%w: step %d references a template of another owner", apperrors.ErrValidation, step.Order)
		}
		spec, _ := domain.ActionByKind(step.Kind)
		if template.Type != spec.TemplateType {
			return fmt.Errorf("%w: step %d (%s) requires a %s template, got %s", apperrors.ErrValidation, step.Order, step.Kind, spec.TemplateType, template.Type)
		}
	}
	return nil
}

func (s *Service) resolveDailyLimit(value int) int {
	if value <= 0 {
		return s.defaultDailyLimit
	}
	return value
}

func toDomainSteps(campaignID uuid.UUID, inputs []StepInput, now time.Time) []domain.CampaignStep {
	steps := make([]domain.CampaignStep, 0, len(inputs))
	for _, in := range inputs {
		steps = append(steps, domain.CampaignStep{
			ID:         uuid.New(),
			CampaignID: campaignID,
			Order:      in.Order,
			Kind:       in.Kind,
			DelayDays:  in.DelayDays,
			TemplateID: in.TemplateID,
			CreatedAt:  now,
		})
	}
	return steps
}

func validateCreateInput(input CreateCampaignInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: campaign name is required", apperrors.ErrValidation)
	}
	if input.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner is required", apperrors.ErrValidation)
	}
	if input.TimeZone != "" {
		if _, err := time.LoadLocation(input.TimeZone); err != nil {
			return fmt.Errorf("%w: invalid time zone %s: %v", apperrors.ErrValidation, input.TimeZone, err)
		}
	}
	return nil
}
