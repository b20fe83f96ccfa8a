package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
)

// ActionLog persists the append-only action outcome log in Scylla,
// partitioned by (campaign_id, day bucket).
type ActionLog struct {
	session *gocql.Session
}

// NewActionLog creates a new action log store.
func NewActionLog(session *gocql.Session) *ActionLog {
	return &ActionLog{session: session}
}

// Append writes one finalized action record.
func (s *ActionLog) Append(ctx context.Context, record domain.ActionRecord) error {
	bucket := bucketDate(record.OccurredAt)
	if err := s.session.Query(`INSERT INTO actions_by_campaign (campaign_id, bucket, entry_id, prospect_id, step_order, action_kind, outcome, reason, identity, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.CampaignID.String(), bucket, record.EntryID.String(), record.ProspectID.String(), record.StepOrder,
		string(record.Kind), string(record.Outcome), record.Reason, record.Identity, record.OccurredAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("action log: insert actions_by_campaign: %w", err)
	}
	return nil
}

// ListByCampaign lists a campaign's action records with pagination.
func (s *ActionLog) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.ActionRecord, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT bucket, entry_id, prospect_id, step_order, action_kind, outcome, reason, identity, occurred_at
		FROM actions_by_campaign WHERE campaign_id = ?`, campaignID.String()).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	records := make([]domain.ActionRecord, 0, limit)

	var (
		bucket        time.Time
		entryIDStr    string
		prospectIDStr string
		stepOrder     int
		kind          string
		outcome       string
		reason        string
		identity      string
		occurredAt    time.Time
	)

	for iter.Scan(&bucket, &entryIDStr, &prospectIDStr, &stepOrder, &kind, &outcome, &reason, &identity, &occurredAt) {
		entryID, err := uuid.Parse(entryIDStr)
		if err != nil {
			continue
		}
		prospectID, err := uuid.Parse(prospectIDStr)
		if err != nil {
			continue
		}

		records = append(records, domain.ActionRecord{
			EntryID:    entryID,
			CampaignID: campaignID,
			ProspectID: prospectID,
			StepOrder:  stepOrder,
			Kind:       domain.ActionKind(kind),
			Outcome:    domain.ActionOutcome(outcome),
			Reason:     reason,
			Identity:   identity,
			OccurredAt: occurredAt,
		})
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("action log: iter close: %w", err)
	}

	nextState := iter.PageState()

	return records, nextState, nil
}

func bucketDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
