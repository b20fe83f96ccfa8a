package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
)

var testTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func seedActiveCampaignEntry(t *testing.T, db *DB) *domain.QueueEntry {
	t.Helper()
	ctx := context.Background()

	campaign := &domain.Campaign{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Name:       "recovery",
		Status:     domain.CampaignStatusActive,
		DailyLimit: 25,
		CreatedAt:  testTime,
		UpdatedAt:  testTime,
	}
	if err := db.Campaigns().Create(ctx, campaign); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}

	entry := &domain.QueueEntry{
		ID:           uuid.New(),
		CampaignID:   campaign.ID,
		EnrollmentID: uuid.New(),
		ProspectID:   uuid.New(),
		StepID:       uuid.New(),
		StepOrder:    1,
		Kind:         domain.ActionVisit,
		State:        domain.EntryPending,
		NotBefore:    testTime,
		CreatedAt:    testTime,
	}
	if err := db.Queue().Insert(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}

func TestReleaseExpiredReturnsStaleClaimToPending(t *testing.T) {
	db := New()
	ctx := context.Background()
	entry := seedActiveCampaignEntry(t, db)
	queue := db.Queue()

	ok, err := queue.Claim(ctx, entry.ID, "ext-1", testTime)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	// The entry is off the candidate list while claimed.
	if got, err := queue.NextCandidates(ctx, testTime, 10); err != nil || len(got) != 0 {
		t.Fatalf("claimed entry still a candidate: %d (%v)", len(got), err)
	}

	// A cutoff older than the claim leaves it alone.
	released, err := queue.ReleaseExpired(ctx, testTime.Add(-time.Minute))
	if err != nil {
		t.Fatalf("release (fresh): %v", err)
	}
	if released != 0 {
		t.Errorf("released a fresh claim: %d", released)
	}

	// Past the claim timeout the sweep frees it.
	released, err = queue.ReleaseExpired(ctx, testTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	freed, err := queue.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if freed.State != domain.EntryPending {
		t.Errorf("state = %s, want pending", freed.State)
	}
	if freed.ClaimedAt != nil || freed.ClaimedBy != "" {
		t.Errorf("claim marks survived the release: at=%v by=%q", freed.ClaimedAt, freed.ClaimedBy)
	}

	// The released entry is a candidate again and claimable by a
	// different executor.
	candidates, err := queue.NextCandidates(ctx, testTime, 10)
	if err != nil || len(candidates) != 1 {
		t.Fatalf("candidates after release: %d (%v)", len(candidates), err)
	}
	if candidates[0].ID != entry.ID {
		t.Errorf("candidate = %s, want %s", candidates[0].ID, entry.ID)
	}
	ok, err = queue.Claim(ctx, entry.ID, "ext-2", testTime.Add(2*time.Minute))
	if err != nil || !ok {
		t.Fatalf("re-claim: ok=%v err=%v", ok, err)
	}
}

func TestFinalizeAfterReleaseAppliesOnce(t *testing.T) {
	db := New()
	ctx := context.Background()
	entry := seedActiveCampaignEntry(t, db)
	queue := db.Queue()

	if ok, err := queue.Claim(ctx, entry.ID, "ext-1", testTime); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if released, err := queue.ReleaseExpired(ctx, testTime.Add(time.Minute)); err != nil || released != 1 {
		t.Fatalf("release: %d (%v)", released, err)
	}
	if ok, err := queue.Claim(ctx, entry.ID, "ext-2", testTime.Add(2*time.Minute)); err != nil || !ok {
		t.Fatalf("re-claim: ok=%v err=%v", ok, err)
	}

	applied, err := queue.Finalize(ctx, entry.ID, domain.OutcomeSuccess, testTime.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !applied {
		t.Fatal("finalize on the re-claimed entry was not applied")
	}

	// A late report from the original executor is a no-op and cannot
	// overwrite the recorded outcome.
	applied, err = queue.Finalize(ctx, entry.ID, domain.OutcomeFailure, testTime.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("late finalize: %v", err)
	}
	if applied {
		t.Error("late finalize was applied twice")
	}

	final, err := queue.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Outcome == nil || *final.Outcome != domain.OutcomeSuccess {
		t.Errorf("outcome = %v, want success", final.Outcome)
	}
	if final.CompletedAt == nil || !final.CompletedAt.Equal(testTime.Add(3*time.Minute)) {
		t.Errorf("completed at = %v, want %v", final.CompletedAt, testTime.Add(3*time.Minute))
	}
}
