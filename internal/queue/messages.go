package queue

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeMessage announces one finalized queue entry. The audit worker
// consumes these and appends them to the action log.
type OutcomeMessage struct {
	EntryID    uuid.UUID `json:"entry_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	ProspectID uuid.UUID `json:"prospect_id"`
	StepOrder  int       `json:"step_order"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Identity   string    `json:"identity,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
