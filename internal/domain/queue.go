package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryState tracks an action queue entry through the claim cycle.
type EntryState string

const (
	EntryPending   EntryState = "pending"
	EntryClaimed   EntryState = "claimed"
	EntryCompleted EntryState = "completed"
)

// ActionOutcome is the executor-reported result of a finalized entry.
type ActionOutcome string

const (
	OutcomeSuccess ActionOutcome = "success"
	OutcomeFailure ActionOutcome = "failure"
)

// QueueEntry is the unit of work handed from the scheduler to the
// extension. At most one live (non-completed) entry exists per enrollment.
type QueueEntry struct {
	ID           uuid.UUID
	CampaignID   uuid.UUID
	EnrollmentID uuid.UUID
	ProspectID   uuid.UUID
	StepID       uuid.UUID
	StepOrder    int
	Kind         ActionKind
	State        EntryState
	NotBefore    time.Time
	ClaimedAt    *time.Time
	ClaimedBy    string
	Outcome      *ActionOutcome
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// IsLive reports whether the entry still occupies the enrollment's queue slot.
func (e *QueueEntry) IsLive() bool {
	return e.State != EntryCompleted
}

// ClaimedAction is the payload returned to the extension for one claimed
// entry, with prospect profile data and rendered message content.
type ClaimedAction struct {
	EntryID    uuid.UUID  `json:"entry_id"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	ProspectID uuid.UUID  `json:"prospect_id"`
	Kind       ActionKind `json:"action"`
	FullName   string     `json:"full_name"`
	ProfileURL string     `json:"profile_url"`
	LinkedInID string     `json:"linkedin_id,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// ActionRecord is the append-only audit record of one finalized action.
type ActionRecord struct {
	EntryID    uuid.UUID
	CampaignID uuid.UUID
	ProspectID uuid.UUID
	StepOrder  int
	Kind       ActionKind
	Outcome    ActionOutcome
	Reason     string
	Identity   string
	OccurredAt time.Time
}

// ActionStats is the global projection for the extension dashboard.
type ActionStats struct {
	PendingActions  int
	ClaimedActions  int
	CompletedToday  int
	SucceededToday  int
	FailedToday     int
	ActiveCampaigns int
}
