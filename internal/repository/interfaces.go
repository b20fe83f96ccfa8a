package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// CampaignRepository manages campaign persistence.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	List(ctx context.Context, ownerID uuid.UUID, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error)
	ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error)
	// ApplyCounterDelta atomically increments aggregate counters.
	ApplyCounterDelta(ctx context.Context, id uuid.UUID, delta domain.CounterDelta) error
	// DeleteCascade removes the campaign together with its owned steps,
	// enrollments and queue entries in one transaction.
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

// StepRepository manages campaign step sequences.
type StepRepository interface {
	Replace(ctx context.Context, campaignID uuid.UUID, steps []domain.CampaignStep) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) (domain.StepPlan, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.CampaignStep, error)
}

// ProspectRepository stores LinkedIn profile records.
type ProspectRepository interface {
	Create(ctx context.Context, prospect *domain.Prospect) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Prospect, error)
	Update(ctx context.Context, prospect *domain.Prospect) error
	Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, ownerID uuid.UUID, filter ProspectFilter) ([]*domain.Prospect, error)
	// BulkUpsert inserts prospects keyed by profile URL, skipping
	// duplicates, and returns the number actually inserted.
	BulkUpsert(ctx context.Context, prospects []*domain.Prospect) (int64, error)
	Stats(ctx context.Context, ownerID uuid.UUID) (*domain.ProspectStats, error)
}

// ProspectFilter narrows prospect listings.
type ProspectFilter struct {
	ConnectionStatus domain.ConnectionStatus
	Search           string
	Limit            int
	Offset           int
}

// TemplateRepository stores message templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.MessageTemplate) error
	Get(ctx context.Context, id uuid.UUID) (*domain.MessageTemplate, error)
	Update(ctx context.Context, template *domain.MessageTemplate) error
	Delete(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType, limit int) ([]*domain.MessageTemplate, error)
}

// EnrollmentRepository manages per (campaign, prospect) state records.
type EnrollmentRepository interface {
	// Add enrolls prospects not already enrolled and reports how many
	// rows were inserted; duplicates are silently ignored.
	Add(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) ([]*domain.Enrollment, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	Update(ctx context.Context, enrollment *domain.Enrollment) error
	// MarkInProgress flips pending to in_progress; a no-op when the
	// enrollment is already in_progress.
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context, campaignID uuid.UUID) ([]*domain.Enrollment, error)
	CountActive(ctx context.Context, campaignID uuid.UUID) (int, error)
	Remove(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) (int64, error)
}

// QueueRepository is the durable action backlog. Claim and Finalize are
// conditional updates: they succeed for exactly one caller.
type QueueRepository interface {
	Insert(ctx context.Context, entry *domain.QueueEntry) error
	Get(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error)
	HasLive(ctx context.Context, enrollmentID uuid.UUID) (bool, error)
	// NextCandidates returns pending entries of active campaigns whose
	// not-before has passed, ordered by (not_before, enrollment_id).
	NextCandidates(ctx context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error)
	// Claim atomically moves a pending entry to claimed; returns false
	// when another poller won the race.
	Claim(ctx context.Context, id uuid.UUID, identity string, now time.Time) (bool, error)
	// Finalize atomically moves a live entry to completed; returns false
	// when the entry was already finalized.
	Finalize(ctx context.Context, id uuid.UUID, outcome domain.ActionOutcome, now time.Time) (bool, error)
	// ReleaseExpired returns claimed entries older than cutoff to pending.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error)
	CountCompletedBetween(ctx context.Context, campaignID uuid.UUID, from, to time.Time) (int, error)
	CountAllCompletedBetween(ctx context.Context, from, to time.Time, outcome *domain.ActionOutcome) (int, error)
	CountByState(ctx context.Context, state domain.EntryState) (int, error)
	DeleteLiveByEnrollment(ctx context.Context, enrollmentID uuid.UUID) error
}

// ActionLogStore persists the append-only action outcome log.
type ActionLogStore interface {
	Append(ctx context.Context, record domain.ActionRecord) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.ActionRecord, []byte, error)
}
