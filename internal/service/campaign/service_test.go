package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository/memory"
	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

var testTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(db *memory.DB) *Service {
	s := NewService(db.Campaigns(), db.Steps(), db.Enrollments(), db.Queue(), db.Templates(), 25)
	s.now = func() time.Time { return testTime }
	return s
}

func seedProspect(t *testing.T, db *memory.DB, ownerID uuid.UUID) *domain.Prospect {
	t.Helper()
	prospect := &domain.Prospect{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		FullName:         "Ada Lovelace",
		ProfileURL:       "https://www.linkedin.com/in/" + uuid.NewString(),
		ConnectionStatus: domain.ConnectionNotConnected,
		CreatedAt:        testTime,
	}
	if err := db.Prospects().Create(context.Background(), prospect); err != nil {
		t.Fatalf("seed prospect: %v", err)
	}
	return prospect
}

func visitOnly() []StepInput {
	return []StepInput{{Order: 1, Kind: domain.ActionVisit}}
}

func TestCreateCampaign(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{
		OwnerID:  ownerID,
		Name:     "Q3 outreach",
		TimeZone: "America/New_York",
		Steps: []StepInput{
			{Order: 1, Kind: domain.ActionVisit},
			{Order: 2, Kind: domain.ActionFollow, DelayDays: 2},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if campaign.Status != domain.CampaignStatusDraft {
		t.Errorf("status = %s, want draft", campaign.Status)
	}
	if campaign.DailyLimit != 25 {
		t.Errorf("daily limit = %d, want the default 25", campaign.DailyLimit)
	}

	plan, err := svc.Steps(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("stored %d steps, want 2", len(plan))
	}
	if plan[0].Kind != domain.ActionVisit || plan[1].Kind != domain.ActionFollow {
		t.Errorf("plan kinds = %s, %s", plan[0].Kind, plan[1].Kind)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	cases := []struct {
		name  string
		input CreateCampaignInput
	}{
		{
			name:  "missing name",
			input: CreateCampaignInput{OwnerID: ownerID, Steps: visitOnly()},
		},
		{
			name:  "missing owner",
			input: CreateCampaignInput{Name: "x", Steps: visitOnly()},
		},
		{
			name:  "bad time zone",
			input: CreateCampaignInput{OwnerID: ownerID, Name: "x", TimeZone: "Not/AZone", Steps: visitOnly()},
		},
		{
			name:  "no steps",
			input: CreateCampaignInput{OwnerID: ownerID, Name: "x"},
		},
		{
			name: "sparse step orders",
			input: CreateCampaignInput{OwnerID: ownerID, Name: "x", Steps: []StepInput{
				{Order: 1, Kind: domain.ActionVisit},
				{Order: 3, Kind: domain.ActionFollow},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.input); !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateCampaignTemplateChecks(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	invitation := &domain.MessageTemplate{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    "intro",
		Type:    domain.TemplateTypeInvitation,
		Content: "Hi {first_name}",
	}
	if err := db.Templates().Create(ctx, invitation); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	foreign := &domain.MessageTemplate{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Name:    "someone else's",
		Type:    domain.TemplateTypeInvitation,
		Content: "Hi",
	}
	if err := db.Templates().Create(ctx, foreign); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	if _, err := svc.Create(ctx, CreateCampaignInput{
		OwnerID: ownerID,
		Name:    "ok",
		Steps:   []StepInput{{Order: 1, Kind: domain.ActionInvite, TemplateID: &invitation.ID}},
	}); err != nil {
		t.Fatalf("create with owned invitation template: %v", err)
	}

	missing := uuid.New()
	if _, err := svc.Create(ctx, CreateCampaignInput{
		OwnerID: ownerID,
		Name:    "missing template",
		Steps:   []StepInput{{Order: 1, Kind: domain.ActionInvite, TemplateID: &missing}},
	}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for unknown template, got %v", err)
	}

	if _, err := svc.Create(ctx, CreateCampaignInput{
		OwnerID: ownerID,
		Name:    "foreign template",
		Steps:   []StepInput{{Order: 1, Kind: domain.ActionInvite, TemplateID: &foreign.ID}},
	}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for foreign template, got %v", err)
	}

	// An invitation template cannot back a message step.
	if _, err := svc.Create(ctx, CreateCampaignInput{
		OwnerID: ownerID,
		Name:    "type mismatch",
		Steps:   []StepInput{{Order: 1, Kind: domain.ActionMessage, TemplateID: &invitation.ID}},
	}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for template type mismatch, got %v", err)
	}
}

func TestStartCampaign(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "launch", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A campaign without prospects cannot start.
	if err := svc.Start(ctx, campaign.ID); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state for empty campaign, got %v", err)
	}

	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); err != nil {
		t.Fatalf("add prospects: %v", err)
	}

	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	started, err := svc.Get(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if started.Status != domain.CampaignStatusActive {
		t.Errorf("status = %s, want active", started.Status)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(testTime) {
		t.Errorf("started at = %v, want %v", started.StartedAt, testTime)
	}

	// The first step is due immediately.
	candidates, err := db.Queue().NextCandidates(ctx, testTime, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("materialized %d entries, want 1", len(candidates))
	}
	if !candidates[0].NotBefore.Equal(testTime) {
		t.Errorf("not before = %v, want %v", candidates[0].NotBefore, testTime)
	}

	// Start on an already active campaign is a no-op.
	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("restart: %v", err)
	}
	entries, err := db.Queue().NextCandidates(ctx, testTime, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("restart duplicated queue entries: %d", len(entries))
	}
}

func TestPauseResumeKeepsSingleLiveEntry(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "launch", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); err != nil {
		t.Fatalf("add prospects: %v", err)
	}
	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.Pause(ctx, campaign.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, _ := svc.Get(ctx, campaign.ID)
	if paused.Status != domain.CampaignStatusPaused {
		t.Errorf("status = %s, want paused", paused.Status)
	}

	// Pausing a draft is rejected; pausing twice is a no-op.
	if err := svc.Pause(ctx, campaign.ID); err != nil {
		t.Fatalf("second pause: %v", err)
	}

	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	entries, err := db.Queue().NextCandidates(ctx, testTime, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("resume duplicated the live entry: %d entries", len(entries))
	}
}

func TestPauseRejectsDraft(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: uuid.New(), Name: "draft", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Pause(ctx, campaign.ID); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestStepsFrozenOutsideDraft(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "launch", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); err != nil {
		t.Fatalf("add prospects: %v", err)
	}
	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	steps := []StepInput{
		{Order: 1, Kind: domain.ActionVisit},
		{Order: 2, Kind: domain.ActionFollow},
	}
	if _, err := svc.Update(ctx, UpdateCampaignInput{ID: campaign.ID, Steps: &steps}); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("expected steps to be frozen, got %v", err)
	}

	// A rejected update must not leak its metadata half either.
	rejected := "renamed"
	if _, err := svc.Update(ctx, UpdateCampaignInput{ID: campaign.ID, Name: &rejected, Steps: &steps}); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected steps to be frozen, got %v", err)
	}
	stored, err := svc.Get(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != "launch" {
		t.Errorf("name = %q, want launch", stored.Name)
	}

	// Metadata stays editable after the freeze.
	name := "renamed"
	updated, err := svc.Update(ctx, UpdateCampaignInput{ID: campaign.ID, Name: &name})
	if err != nil {
		t.Fatalf("metadata update: %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("name = %q, want renamed", updated.Name)
	}
}

func TestAddProspects(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "launch", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := seedProspect(t, db, ownerID)
	second := seedProspect(t, db, ownerID)

	added, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{first.ID, second.ID})
	if err != nil {
		t.Fatalf("add prospects: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	// Re-adding the same prospect changes nothing.
	added, err = svc.AddProspects(ctx, campaign.ID, []uuid.UUID{first.ID})
	if err != nil {
		t.Fatalf("re-add prospect: %v", err)
	}
	if added != 0 {
		t.Errorf("re-add = %d, want 0", added)
	}

	stored, _ := svc.Get(ctx, campaign.ID)
	if stored.TotalProspects != 2 {
		t.Errorf("total prospects = %d, want 2", stored.TotalProspects)
	}

	// Draft campaigns enroll without materializing queue entries.
	entries, err := db.Queue().NextCandidates(ctx, testTime, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("draft campaign materialized %d entries", len(entries))
	}

	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// On an active campaign a fresh enrollment gets its entry immediately.
	third := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{third.ID}); err != nil {
		t.Fatalf("add to active: %v", err)
	}
	entries, err = db.Queue().NextCandidates(ctx, testTime, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("active campaign holds %d entries, want 3", len(entries))
	}
}

func TestAddProspectsRejectsTerminalCampaign(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "done", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Archive(ctx, campaign.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestRemoveProspects(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "launch", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); err != nil {
		t.Fatalf("add prospects: %v", err)
	}
	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	removed, err := svc.RemoveProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID})
	if err != nil {
		t.Fatalf("remove prospects: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	stored, _ := svc.Get(ctx, campaign.ID)
	if stored.TotalProspects != 0 {
		t.Errorf("total prospects = %d, want 0", stored.TotalProspects)
	}

	// The live queue entry disappears with the enrollment.
	entries, err := db.Queue().NextCandidates(ctx, testTime, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d entries survived the removal", len(entries))
	}
}

func TestResumeSchedulesDelayedStep(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{
		OwnerID: ownerID,
		Name:    "two step",
		Steps: []StepInput{
			{Order: 1, Kind: domain.ActionVisit},
			{Order: 2, Kind: domain.ActionFollow, DelayDays: 3},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); err != nil {
		t.Fatalf("add prospects: %v", err)
	}
	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Pause(ctx, campaign.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Simulate step 1 having completed during the active phase, leaving
	// the enrollment mid-sequence with no live entry.
	enrollments, err := db.Enrollments().ListActive(ctx, campaign.ID)
	if err != nil || len(enrollments) != 1 {
		t.Fatalf("list enrollments: %v (%d)", err, len(enrollments))
	}
	enrollment := enrollments[0]
	lastAction := testTime.Add(-24 * time.Hour)
	enrollment.Status = domain.EnrollmentInProgress
	enrollment.CurrentStep = 1
	enrollment.LastActionAt = &lastAction
	if err := db.Enrollments().Update(ctx, enrollment); err != nil {
		t.Fatalf("update enrollment: %v", err)
	}
	if err := db.Queue().DeleteLiveByEnrollment(ctx, enrollment.ID); err != nil {
		t.Fatalf("clear live entry: %v", err)
	}

	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	// The step 2 entry waits out its delay from the last completion.
	wantDue := lastAction.Add(3 * 24 * time.Hour)
	candidates, err := db.Queue().NextCandidates(ctx, wantDue, 10)
	if err != nil {
		t.Fatalf("next candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("materialized %d entries, want 1", len(candidates))
	}
	if candidates[0].StepOrder != 2 {
		t.Errorf("step order = %d, want 2", candidates[0].StepOrder)
	}
	if !candidates[0].NotBefore.Equal(wantDue) {
		t.Errorf("not before = %v, want %v", candidates[0].NotBefore, wantDue)
	}
	if got, err := db.Queue().NextCandidates(ctx, wantDue.Add(-time.Second), 10); err != nil || len(got) != 0 {
		t.Errorf("entry became due before its delay elapsed: %d (%v)", len(got), err)
	}
}

func TestStatsDerivesDailyCount(t *testing.T) {
	db := memory.New()
	svc := newTestService(db)
	ctx := context.Background()
	ownerID := uuid.New()

	campaign, err := svc.Create(ctx, CreateCampaignInput{OwnerID: ownerID, Name: "launch", Steps: visitOnly()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	prospect := seedProspect(t, db, ownerID)
	if _, err := svc.AddProspects(ctx, campaign.ID, []uuid.UUID{prospect.ID}); err != nil {
		t.Fatalf("add prospects: %v", err)
	}
	if err := svc.Start(ctx, campaign.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	candidates, err := db.Queue().NextCandidates(ctx, testTime, 1)
	if err != nil || len(candidates) != 1 {
		t.Fatalf("next candidates: %v (%d)", err, len(candidates))
	}
	if _, err := db.Queue().Finalize(ctx, candidates[0].ID, domain.OutcomeSuccess, testTime); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	stats, err := svc.Stats(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalProspects != 1 {
		t.Errorf("total = %d, want 1", stats.TotalProspects)
	}
	if stats.ActionsToday != 1 {
		t.Errorf("actions today = %d, want 1", stats.ActionsToday)
	}
	if stats.PendingProspects != 1 {
		t.Errorf("pending = %d, want 1", stats.PendingProspects)
	}
}
