package execution

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/queue"
	"github.com/acme/linkedin-outreach/internal/repository/memory"
	"github.com/acme/linkedin-outreach/pkg/logger"
)

var testTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	msgs []queue.OutcomeMessage
}

func (p *recordingPublisher) PublishOutcome(_ context.Context, msg queue.OutcomeMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

type recordingLimiter struct {
	released []string
}

func (l *recordingLimiter) Release(_ context.Context, key string) error {
	l.released = append(l.released, key)
	return nil
}

type fixture struct {
	db         *memory.DB
	svc        *Service
	publisher  *recordingPublisher
	limiter    *recordingLimiter
	campaign   *domain.Campaign
	plan       domain.StepPlan
	enrollment *domain.Enrollment
	entry      *domain.QueueEntry
}

// newFixture seeds an active campaign with one enrollment holding a
// claimed entry for the given step order, mirroring the state the
// scheduler leaves behind after a successful poll.
func newFixture(t *testing.T, steps []domain.CampaignStep, claimOrder int) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()

	campaign := &domain.Campaign{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Name:      "outreach",
		Status:    domain.CampaignStatusActive,
		CreatedAt: testTime,
	}
	if err := db.Campaigns().Create(ctx, campaign); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	for i := range steps {
		steps[i].ID = uuid.New()
	}
	if err := db.Steps().Replace(ctx, campaign.ID, steps); err != nil {
		t.Fatalf("seed steps: %v", err)
	}
	plan, err := db.Steps().ListByCampaign(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}

	prospect := &domain.Prospect{
		ID:         uuid.New(),
		OwnerID:    campaign.OwnerID,
		FullName:   "Ada Lovelace",
		ProfileURL: "https://www.linkedin.com/in/" + uuid.NewString(),
		CreatedAt:  testTime,
	}
	if err := db.Prospects().Create(ctx, prospect); err != nil {
		t.Fatalf("seed prospect: %v", err)
	}
	inserted, err := db.Enrollments().Add(ctx, campaign.ID, []uuid.UUID{prospect.ID})
	if err != nil || len(inserted) != 1 {
		t.Fatalf("seed enrollment: %v (%d)", err, len(inserted))
	}
	enrollment := inserted[0]
	enrollment.CurrentStep = claimOrder - 1
	if err := db.Enrollments().Update(ctx, enrollment); err != nil {
		t.Fatalf("update enrollment: %v", err)
	}

	step, ok := plan.StepAt(claimOrder)
	if !ok {
		t.Fatalf("step %d missing from plan", claimOrder)
	}
	entry := &domain.QueueEntry{
		ID:           uuid.New(),
		CampaignID:   campaign.ID,
		EnrollmentID: enrollment.ID,
		ProspectID:   prospect.ID,
		StepID:       step.ID,
		StepOrder:    step.Order,
		Kind:         step.Kind,
		State:        domain.EntryPending,
		NotBefore:    testTime.Add(-time.Minute),
		CreatedAt:    testTime,
	}
	if err := db.Queue().Insert(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if ok, err := db.Queue().Claim(ctx, entry.ID, "ext-1", testTime); err != nil || !ok {
		t.Fatalf("claim entry: %v (%v)", err, ok)
	}
	if err := db.Enrollments().MarkInProgress(ctx, enrollment.ID); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}

	publisher := &recordingPublisher{}
	limiter := &recordingLimiter{}
	svc := NewService(db.Campaigns(), db.Steps(), db.Enrollments(), db.Queue(), limiter, publisher, logger.NewNop())
	svc.now = func() time.Time { return testTime }

	return &fixture{
		db:         db,
		svc:        svc,
		publisher:  publisher,
		limiter:    limiter,
		campaign:   campaign,
		plan:       plan,
		enrollment: enrollment,
		entry:      entry,
	}
}

func twoStepPlan() []domain.CampaignStep {
	return []domain.CampaignStep{
		{Order: 1, Kind: domain.ActionVisit},
		{Order: 2, Kind: domain.ActionFollow, DelayDays: 2},
	}
}

func TestCompleteSuccessMidSequence(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 1)
	ctx := context.Background()

	applied, err := f.svc.Complete(ctx, f.entry.ID, domain.OutcomeSuccess, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !applied {
		t.Fatal("expected completion to apply")
	}

	enrollment, err := f.db.Enrollments().Get(ctx, f.enrollment.ID)
	if err != nil {
		t.Fatalf("get enrollment: %v", err)
	}
	if enrollment.CurrentStep != 1 {
		t.Errorf("current step = %d, want 1", enrollment.CurrentStep)
	}
	if enrollment.Status != domain.EnrollmentInProgress {
		t.Errorf("status = %s, want in_progress", enrollment.Status)
	}
	if enrollment.LastActionAt == nil || !enrollment.LastActionAt.Equal(testTime) {
		t.Errorf("last action at = %v, want %v", enrollment.LastActionAt, testTime)
	}

	// The step 2 entry waits out its two-day delay.
	wantDue := testTime.Add(2 * 24 * time.Hour)
	candidates, err := f.db.Queue().NextCandidates(ctx, wantDue, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("scheduled %d entries, want 1", len(candidates))
	}
	if candidates[0].StepOrder != 2 || !candidates[0].NotBefore.Equal(wantDue) {
		t.Errorf("next entry = step %d due %v, want step 2 due %v", candidates[0].StepOrder, candidates[0].NotBefore, wantDue)
	}

	// Mid-sequence completions do not touch the campaign counters.
	campaign, _ := f.db.Campaigns().Get(ctx, f.campaign.ID)
	if campaign.ProcessedProspects != 0 || campaign.SuccessCount != 0 {
		t.Errorf("counters = processed %d success %d, want 0/0", campaign.ProcessedProspects, campaign.SuccessCount)
	}

	if len(f.publisher.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(f.publisher.msgs))
	}
	msg := f.publisher.msgs[0]
	if msg.EntryID != f.entry.ID || msg.Outcome != "success" || msg.Identity != "ext-1" {
		t.Errorf("outcome message = %+v", msg)
	}

	if len(f.limiter.released) != 1 || f.limiter.released[0] != "ext-1" {
		t.Errorf("released slots = %v, want [ext-1]", f.limiter.released)
	}
}

func TestCompleteFinalStep(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 2)
	ctx := context.Background()

	applied, err := f.svc.Complete(ctx, f.entry.ID, domain.OutcomeSuccess, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !applied {
		t.Fatal("expected completion to apply")
	}

	enrollment, err := f.db.Enrollments().Get(ctx, f.enrollment.ID)
	if err != nil {
		t.Fatalf("get enrollment: %v", err)
	}
	if enrollment.Status != domain.EnrollmentCompleted {
		t.Errorf("status = %s, want completed", enrollment.Status)
	}
	if enrollment.CurrentStep != 2 {
		t.Errorf("current step = %d, want 2", enrollment.CurrentStep)
	}

	campaign, _ := f.db.Campaigns().Get(ctx, f.campaign.ID)
	if campaign.ProcessedProspects != 1 || campaign.SuccessCount != 1 || campaign.FailureCount != 0 {
		t.Errorf("counters = %d/%d/%d, want 1/1/0", campaign.ProcessedProspects, campaign.SuccessCount, campaign.FailureCount)
	}

	// The last enrollment finished, so the campaign retires itself.
	if campaign.Status != domain.CampaignStatusCompleted {
		t.Errorf("campaign status = %s, want completed", campaign.Status)
	}
	if campaign.CompletedAt == nil || !campaign.CompletedAt.Equal(testTime) {
		t.Errorf("completed at = %v, want %v", campaign.CompletedAt, testTime)
	}

	// No further entry is scheduled past the end of the sequence.
	candidates, err := f.db.Queue().NextCandidates(ctx, testTime.AddDate(0, 0, 30), 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("scheduled %d entries past the final step", len(candidates))
	}
}

func TestCompleteFailure(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 1)
	ctx := context.Background()

	applied, err := f.svc.Complete(ctx, f.entry.ID, domain.OutcomeFailure, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !applied {
		t.Fatal("expected completion to apply")
	}

	enrollment, err := f.db.Enrollments().Get(ctx, f.enrollment.ID)
	if err != nil {
		t.Fatalf("get enrollment: %v", err)
	}
	if enrollment.Status != domain.EnrollmentFailed {
		t.Errorf("status = %s, want failed", enrollment.Status)
	}
	if enrollment.FailureReason == nil || *enrollment.FailureReason != "action failed" {
		t.Errorf("failure reason = %v, want the default", enrollment.FailureReason)
	}
	// The cursor stays where it was; the failed step did not complete.
	if enrollment.CurrentStep != 0 {
		t.Errorf("current step = %d, want 0", enrollment.CurrentStep)
	}

	campaign, _ := f.db.Campaigns().Get(ctx, f.campaign.ID)
	if campaign.ProcessedProspects != 1 || campaign.FailureCount != 1 || campaign.SuccessCount != 0 {
		t.Errorf("counters = %d/%d/%d, want 1/0/1", campaign.ProcessedProspects, campaign.SuccessCount, campaign.FailureCount)
	}

	// There is no retry: the sequence ends here.
	candidates, err := f.db.Queue().NextCandidates(ctx, testTime.AddDate(0, 0, 30), 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("scheduled %d entries after a failure", len(candidates))
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 2)
	ctx := context.Background()

	applied, err := f.svc.Complete(ctx, f.entry.ID, domain.OutcomeSuccess, "")
	if err != nil || !applied {
		t.Fatalf("first complete: applied=%v err=%v", applied, err)
	}

	// A duplicate report of the same entry is absorbed without effect,
	// even with a contradictory outcome.
	applied, err = f.svc.Complete(ctx, f.entry.ID, domain.OutcomeFailure, "late duplicate")
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if applied {
		t.Error("duplicate completion reported applied=true")
	}

	campaign, _ := f.db.Campaigns().Get(ctx, f.campaign.ID)
	if campaign.ProcessedProspects != 1 || campaign.SuccessCount != 1 || campaign.FailureCount != 0 {
		t.Errorf("counters = %d/%d/%d after duplicate, want 1/1/0", campaign.ProcessedProspects, campaign.SuccessCount, campaign.FailureCount)
	}

	enrollment, _ := f.db.Enrollments().Get(ctx, f.enrollment.ID)
	if enrollment.Status != domain.EnrollmentCompleted {
		t.Errorf("status = %s after duplicate, want completed", enrollment.Status)
	}

	if len(f.publisher.msgs) != 1 {
		t.Errorf("published %d messages, want 1", len(f.publisher.msgs))
	}
}

func TestCompleteHonoredWhilePaused(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 2)
	ctx := context.Background()

	if err := f.db.Campaigns().UpdateStatus(ctx, f.campaign.ID, domain.CampaignStatusPaused); err != nil {
		t.Fatalf("pause: %v", err)
	}

	applied, err := f.svc.Complete(ctx, f.entry.ID, domain.OutcomeSuccess, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !applied {
		t.Fatal("expected completion of in-flight work on a paused campaign")
	}

	campaign, _ := f.db.Campaigns().Get(ctx, f.campaign.ID)
	if campaign.SuccessCount != 1 {
		t.Errorf("success count = %d, want 1", campaign.SuccessCount)
	}
	// Auto-completion only retires active campaigns.
	if campaign.Status != domain.CampaignStatusPaused {
		t.Errorf("campaign status = %s, want paused", campaign.Status)
	}
}

func TestCompleteUnknownEntry(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 1)

	if _, err := f.svc.Complete(context.Background(), uuid.New(), domain.OutcomeSuccess, ""); err == nil {
		t.Fatal("expected an error for an unknown entry")
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, twoStepPlan(), 1)
	ctx := context.Background()

	// One claimed entry from the fixture plus one pending and one failed.
	pending := &domain.QueueEntry{
		ID:           uuid.New(),
		CampaignID:   f.campaign.ID,
		EnrollmentID: uuid.New(),
		ProspectID:   uuid.New(),
		StepID:       f.plan[0].ID,
		StepOrder:    1,
		Kind:         domain.ActionVisit,
		State:        domain.EntryPending,
		NotBefore:    testTime,
		CreatedAt:    testTime,
	}
	if err := f.db.Queue().Insert(ctx, pending); err != nil {
		t.Fatalf("insert pending: %v", err)
	}
	failed := &domain.QueueEntry{
		ID:           uuid.New(),
		CampaignID:   f.campaign.ID,
		EnrollmentID: uuid.New(),
		ProspectID:   uuid.New(),
		StepID:       f.plan[0].ID,
		StepOrder:    1,
		Kind:         domain.ActionVisit,
		State:        domain.EntryPending,
		NotBefore:    testTime,
		CreatedAt:    testTime,
	}
	if err := f.db.Queue().Insert(ctx, failed); err != nil {
		t.Fatalf("insert failed entry: %v", err)
	}
	if _, err := f.db.Queue().Finalize(ctx, failed.ID, domain.OutcomeFailure, testTime); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingActions != 1 {
		t.Errorf("pending = %d, want 1", stats.PendingActions)
	}
	if stats.ClaimedActions != 1 {
		t.Errorf("claimed = %d, want 1", stats.ClaimedActions)
	}
	if stats.CompletedToday != 1 || stats.FailedToday != 1 || stats.SucceededToday != 0 {
		t.Errorf("today = %d/%d/%d, want 1 completed, 0 succeeded, 1 failed", stats.CompletedToday, stats.SucceededToday, stats.FailedToday)
	}
	if stats.ActiveCampaigns != 1 {
		t.Errorf("active campaigns = %d, want 1", stats.ActiveCampaigns)
	}
}
