package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
	"github.com/acme/linkedin-outreach/pkg/logger"
)

// SlotLimiter caps how many claimed actions one executor identity holds.
type SlotLimiter interface {
	Acquire(ctx context.Context, identity string) (bool, error)
	Release(ctx context.Context, identity string) error
}

// Scheduler hands out due actions to polling executors. It never pushes
// work; the extension pulls and the claim is an atomic state flip.
type Scheduler struct {
	campaigns   repository.CampaignRepository
	steps       repository.StepRepository
	enrollments repository.EnrollmentRepository
	queue       repository.QueueRepository
	prospects   repository.ProspectRepository
	templates   repository.TemplateRepository
	limiter     SlotLimiter
	log         *logger.Logger

	batchSize int
	now       func() time.Time
}

// New constructs a scheduler.
func New(
	campaigns repository.CampaignRepository,
	steps repository.StepRepository,
	enrollments repository.EnrollmentRepository,
	queueRepo repository.QueueRepository,
	prospects repository.ProspectRepository,
	templates repository.TemplateRepository,
	limiter SlotLimiter,
	log *logger.Logger,
	batchSize int,
) *Scheduler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{
		campaigns:   campaigns,
		steps:       steps,
		enrollments: enrollments,
		queue:       queueRepo,
		prospects:   prospects,
		templates:   templates,
		limiter:     limiter,
		log:         log,
		batchSize:   batchSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NextAction claims the next due action for the identity, or returns nil
// when nothing is eligible. Candidates whose campaign already hit its
// daily cap are skipped; a lost claim race moves on to the next one.
func (s *Scheduler) NextAction(ctx context.Context, identity string) (*domain.ClaimedAction, error) {
	tracer := otel.Tracer("outreach.scheduler")
	ctx, span := tracer.Start(ctx, "scheduler.next_action")
	defer span.End()

	if s.limiter != nil {
		ok, err := s.limiter.Acquire(ctx, identity)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !ok {
			span.SetAttributes(attribute.Bool("limiter.saturated", true))
			return nil, nil
		}
	}

	now := s.now()
	candidates, err := s.queue.NextCandidates(ctx, now, s.batchSize)
	if err != nil {
		span.RecordError(err)
		s.releaseSlot(ctx, identity)
		return nil, err
	}
	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))

	campaignCache := make(map[uuid.UUID]*domain.Campaign)
	capped := make(map[uuid.UUID]bool)

	for _, entry := range candidates {
		if capped[entry.CampaignID] {
			continue
		}

		campaign, ok := campaignCache[entry.CampaignID]
		if !ok {
			campaign, err = s.campaigns.Get(ctx, entry.CampaignID)
			if err != nil {
				s.log.WithContext(ctx).Warn("scheduler: load campaign", zap.Stringer("campaign_id", entry.CampaignID), zap.Error(err))
				continue
			}
			campaignCache[entry.CampaignID] = campaign
		}
		if campaign.Status != domain.CampaignStatusActive {
			continue
		}

		if campaign.DailyLimit > 0 {
			from, to := campaign.DayWindow(now)
			done, err := s.queue.CountCompletedBetween(ctx, campaign.ID, from, to)
			if err != nil {
				span.RecordError(err)
				s.releaseSlot(ctx, identity)
				return nil, err
			}
			if done >= campaign.DailyLimit {
				capped[campaign.ID] = true
				continue
			}
		}

		claimed, err := s.queue.Claim(ctx, entry.ID, identity, now)
		if err != nil {
			span.RecordError(err)
			s.releaseSlot(ctx, identity)
			return nil, err
		}
		if !claimed {
			// lost the race to another poller
			continue
		}

		action, err := s.buildAction(ctx, entry)
		if err != nil {
			span.RecordError(err)
			s.releaseSlot(ctx, identity)
			return nil, err
		}
		span.SetAttributes(
			attribute.String("entry.id", entry.ID.String()),
			attribute.String("action.kind", string(entry.Kind)),
		)
		return action, nil
	}

	s.releaseSlot(ctx, identity)
	return nil, nil
}

// buildAction flips the enrollment to in_progress and assembles the
// payload the extension needs to perform the action in the browser.
func (s *Scheduler) buildAction(ctx context.Context, entry *domain.QueueEntry) (*domain.ClaimedAction, error) {
	if err := s.enrollments.MarkInProgress(ctx, entry.EnrollmentID); err != nil {
		return nil, err
	}

	prospect, err := s.prospects.Get(ctx, entry.ProspectID)
	if err != nil {
		return nil, err
	}

	action := &domain.ClaimedAction{
		EntryID:    entry.ID,
		CampaignID: entry.CampaignID,
		ProspectID: entry.ProspectID,
		Kind:       entry.Kind,
		FullName:   prospect.FullName,
		ProfileURL: prospect.ProfileURL,
		LinkedInID: prospect.LinkedInID,
	}

	step, err := s.steps.Get(ctx, entry.StepID)
	if err != nil {
		return nil, err
	}
	if step.TemplateID != nil {
		template, err := s.templates.Get(ctx, *step.TemplateID)
		if err != nil {
			return nil, err
		}
		action.Message = template.Render(prospect)
	}

	return action, nil
}

func (s *Scheduler) releaseSlot(ctx context.Context, identity string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Release(ctx, identity); err != nil {
		s.log.WithContext(ctx).Warn("scheduler: release slot", zap.String("identity", identity), zap.Error(err))
	}
}
