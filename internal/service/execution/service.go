package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/queue"
	"github.com/acme/linkedin-outreach/internal/repository"
	"github.com/acme/linkedin-outreach/pkg/logger"
)

// SlotLimiter frees the in-flight slot an executor held while working.
type SlotLimiter interface {
	Release(ctx context.Context, key string) error
}

// OutcomePublisher emits finalized action events.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, msg queue.OutcomeMessage) error
}

// Service applies executor-reported outcomes to the queue and the
// enrollment state machine.
type Service struct {
	campaigns   repository.CampaignRepository
	steps       repository.StepRepository
	enrollments repository.EnrollmentRepository
	queue       repository.QueueRepository
	limiter     SlotLimiter
	publisher   OutcomePublisher
	log         *logger.Logger

	now func() time.Time
}

// NewService constructs an execution service.
func NewService(
	campaigns repository.CampaignRepository,
	steps repository.StepRepository,
	enrollments repository.EnrollmentRepository,
	queueRepo repository.QueueRepository,
	limiter SlotLimiter,
	publisher OutcomePublisher,
	log *logger.Logger,
) *Service {
	return &Service{
		campaigns:   campaigns,
		steps:       steps,
		enrollments: enrollments,
		queue:       queueRepo,
		limiter:     limiter,
		publisher:   publisher,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Complete finalizes a claimed entry and advances the enrollment. The
// call is idempotent: a repeated completion of the same entry changes
// nothing and reports applied=false. Completions are honored even when
// the campaign has been paused in the meantime.
func (s *Service) Complete(ctx context.Context, entryID uuid.UUID, outcome domain.ActionOutcome, reason string) (bool, error) {
	entry, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return false, err
	}

	now := s.now()
	applied, err := s.queue.Finalize(ctx, entryID, outcome, now)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if entry.ClaimedBy != "" && s.limiter != nil {
		if err := s.limiter.Release(ctx, entry.ClaimedBy); err != nil {
			s.log.WithContext(ctx).Warn("release slot failed", zap.String("identity", entry.ClaimedBy), zap.Error(err))
		}
	}

	enrollment, err := s.enrollments.Get(ctx, entry.EnrollmentID)
	if err != nil {
		return false, err
	}

	switch outcome {
	case domain.OutcomeSuccess:
		err = s.applySuccess(ctx, entry, enrollment, now)
	default:
		err = s.applyFailure(ctx, entry, enrollment, reason, now)
	}
	if err != nil {
		return false, err
	}

	s.publish(ctx, entry, outcome, reason, now)
	return true, nil
}

// applySuccess advances current_step, schedules the next entry or, at
// the end of the sequence, retires the enrollment and counts the whole
// sequence as processed.
func (s *Service) applySuccess(ctx context.Context, entry *domain.QueueEntry, enrollment *domain.Enrollment, now time.Time) error {
	if err := enrollment.Advance(entry.StepOrder, now); err != nil {
		return err
	}

	plan, err := s.steps.ListByCampaign(ctx, entry.CampaignID)
	if err != nil {
		return fmt.Errorf("execution service: list steps: %w", err)
	}

	if entry.StepOrder >= len(plan) {
		if err := enrollment.Transition(domain.EnrollmentCompleted); err != nil {
			return err
		}
		if err := s.enrollments.Update(ctx, enrollment); err != nil {
			return err
		}
		if err := s.campaigns.ApplyCounterDelta(ctx, entry.CampaignID, domain.CounterDelta{
			ProcessedProspects: 1,
			SuccessCount:       1,
		}); err != nil {
			return fmt.Errorf("execution service: bump counters: %w", err)
		}
		return s.maybeCompleteCampaign(ctx, entry.CampaignID, now)
	}

	next, ok := plan.StepAt(entry.StepOrder + 1)
	if !ok {
		return fmt.Errorf("execution service: step %d missing from plan", entry.StepOrder+1)
	}
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return err
	}
	return s.queue.Insert(ctx, &domain.QueueEntry{
		ID:           uuid.New(),
		CampaignID:   entry.CampaignID,
		EnrollmentID: entry.EnrollmentID,
		ProspectID:   entry.ProspectID,
		StepID:       next.ID,
		StepOrder:    next.Order,
		Kind:         next.Kind,
		State:        domain.EntryPending,
		NotBefore:    now.Add(next.Delay()),
		CreatedAt:    now,
	})
}

// applyFailure retires the enrollment permanently. There is no
// automatic retry; resuming a failed prospect means re-enrolling it.
func (s *Service) applyFailure(ctx context.Context, entry *domain.QueueEntry, enrollment *domain.Enrollment, reason string, now time.Time) error {
	if reason == "" {
		reason = "action failed"
	}
	if err := enrollment.Fail(reason); err != nil {
		return err
	}
	enrollment.LastActionAt = &now
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return err
	}
	if err := s.campaigns.ApplyCounterDelta(ctx, entry.CampaignID, domain.CounterDelta{
		ProcessedProspects: 1,
		FailureCount:       1,
	}); err != nil {
		return fmt.Errorf("execution service: bump counters: %w", err)
	}
	return s.maybeCompleteCampaign(ctx, entry.CampaignID, now)
}

// maybeCompleteCampaign retires an active campaign once no enrollment
// remains pending or in progress.
func (s *Service) maybeCompleteCampaign(ctx context.Context, campaignID uuid.UUID, now time.Time) error {
	remaining, err := s.enrollments.CountActive(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("execution service: count active: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != domain.CampaignStatusActive {
		return nil
	}
	campaign.Status = domain.CampaignStatusCompleted
	campaign.CompletedAt = &now
	campaign.UpdatedAt = now
	return s.campaigns.Update(ctx, campaign)
}

func (s *Service) publish(ctx context.Context, entry *domain.QueueEntry, outcome domain.ActionOutcome, reason string, now time.Time) {
	if s.publisher == nil {
		return
	}
	msg := queue.OutcomeMessage{
		EntryID:    entry.ID,
		CampaignID: entry.CampaignID,
		ProspectID: entry.ProspectID,
		StepOrder:  entry.StepOrder,
		Action:     string(entry.Kind),
		Outcome:    string(outcome),
		Reason:     reason,
		Identity:   entry.ClaimedBy,
		OccurredAt: now,
	}
	if err := s.publisher.PublishOutcome(ctx, msg); err != nil {
		// The queue row is the source of truth; a lost audit event is
		// logged and tolerated.
		s.log.WithContext(ctx).Warn("publish outcome failed", zap.Stringer("entry_id", entry.ID), zap.Error(err))
	}
}

// Stats assembles the global dashboard projection over a UTC day.
func (s *Service) Stats(ctx context.Context) (*domain.ActionStats, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	pending, err := s.queue.CountByState(ctx, domain.EntryPending)
	if err != nil {
		return nil, err
	}
	claimed, err := s.queue.CountByState(ctx, domain.EntryClaimed)
	if err != nil {
		return nil, err
	}
	completed, err := s.queue.CountAllCompletedBetween(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}
	success := domain.OutcomeSuccess
	succeeded, err := s.queue.CountAllCompletedBetween(ctx, from, to, &success)
	if err != nil {
		return nil, err
	}
	failure := domain.OutcomeFailure
	failed, err := s.queue.CountAllCompletedBetween(ctx, from, to, &failure)
	if err != nil {
		return nil, err
	}
	active, err := s.campaigns.ListByStatus(ctx, domain.CampaignStatusActive, 0)
	if err != nil {
		return nil, err
	}

	return &domain.ActionStats{
		PendingActions:  pending,
		ClaimedActions:  claimed,
		CompletedToday:  completed,
		SucceededToday:  succeeded,
		FailedToday:     failed,
		ActiveCampaigns: len(active),
	}, nil
}
