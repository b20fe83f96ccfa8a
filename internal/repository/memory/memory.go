// Package memory provides mutex-guarded in-memory implementations of
// the repository interfaces, used by service and scheduler tests.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/linkedin-outreach/internal/domain"
	"github.com/acme/linkedin-outreach/internal/repository"
)

// DB holds all in-memory state behind one lock so conditional updates
// such as queue claims stay atomic.
type DB struct {
	mu sync.Mutex

	campaigns   map[uuid.UUID]domain.Campaign
	steps       map[uuid.UUID]domain.CampaignStep
	enrollments map[uuid.UUID]domain.Enrollment
	entries     map[uuid.UUID]domain.QueueEntry
	prospects   map[uuid.UUID]domain.Prospect
	templates   map[uuid.UUID]domain.MessageTemplate
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		campaigns:   make(map[uuid.UUID]domain.Campaign),
		steps:       make(map[uuid.UUID]domain.CampaignStep),
		enrollments: make(map[uuid.UUID]domain.Enrollment),
		entries:     make(map[uuid.UUID]domain.QueueEntry),
		prospects:   make(map[uuid.UUID]domain.Prospect),
		templates:   make(map[uuid.UUID]domain.MessageTemplate),
	}
}

// Campaigns exposes the campaign repository view.
func (db *DB) Campaigns() repository.CampaignRepository { return &campaignRepo{db} }

// Steps exposes the step repository view.
func (db *DB) Steps() repository.StepRepository { return &stepRepo{db} }

// Enrollments exposes the enrollment repository view.
func (db *DB) Enrollments() repository.EnrollmentRepository { return &enrollmentRepo{db} }

// Queue exposes the queue repository view.
func (db *DB) Queue() repository.QueueRepository { return &queueRepo{db} }

// Prospects exposes the prospect repository view.
func (db *DB) Prospects() repository.ProspectRepository { return &prospectRepo{db} }

// Templates exposes the template repository view.
func (db *DB) Templates() repository.TemplateRepository { return &templateRepo{db} }

type campaignRepo struct{ db *DB }

func (r *campaignRepo) Create(_ context.Context, campaign *domain.Campaign) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.campaigns[campaign.ID] = *campaign
	return nil
}

func (r *campaignRepo) Get(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	campaign, ok := r.db.campaigns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &campaign, nil
}

func (r *campaignRepo) Update(_ context.Context, campaign *domain.Campaign) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.campaigns[campaign.ID]; !ok {
		return repository.ErrNotFound
	}
	r.db.campaigns[campaign.ID] = *campaign
	return nil
}

func (r *campaignRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	campaign, ok := r.db.campaigns[id]
	if !ok {
		return repository.ErrNotFound
	}
	campaign.Status = status
	r.db.campaigns[id] = campaign
	return nil
}

func (r *campaignRepo) List(_ context.Context, ownerID uuid.UUID, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var results []*domain.Campaign
	for _, campaign := range r.db.campaigns {
		if campaign.OwnerID != ownerID {
			continue
		}
		if status != "" && campaign.Status != status {
			continue
		}
		c := campaign
		results = append(results, &c)
	}
	return clip(results, limit), nil
}

func (r *campaignRepo) ListByStatus(_ context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var results []*domain.Campaign
	for _, campaign := range r.db.campaigns {
		if campaign.Status != status {
			continue
		}
		c := campaign
		results = append(results, &c)
	}
	return clip(results, limit), nil
}

func (r *campaignRepo) ApplyCounterDelta(_ context.Context, id uuid.UUID, delta domain.CounterDelta) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	campaign, ok := r.db.campaigns[id]
	if !ok {
		return repository.ErrNotFound
	}
	campaign.TotalProspects += delta.TotalProspects
	campaign.ProcessedProspects += delta.ProcessedProspects
	campaign.SuccessCount += delta.SuccessCount
	campaign.FailureCount += delta.FailureCount
	r.db.campaigns[id] = campaign
	return nil
}

func (r *campaignRepo) DeleteCascade(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.campaigns[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.campaigns, id)
	for stepID, step := range r.db.steps {
		if step.CampaignID == id {
			delete(r.db.steps, stepID)
		}
	}
	for enrollmentID, enrollment := range r.db.enrollments {
		if enrollment.CampaignID == id {
			delete(r.db.enrollments, enrollmentID)
		}
	}
	for entryID, entry := range r.db.entries {
		if entry.CampaignID == id {
			delete(r.db.entries, entryID)
		}
	}
	return nil
}

type stepRepo struct{ db *DB }

func (r *stepRepo) Replace(_ context.Context, campaignID uuid.UUID, steps []domain.CampaignStep) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, step := range r.db.steps {
		if step.CampaignID == campaignID {
			delete(r.db.steps, id)
		}
	}
	for _, step := range steps {
		step.CampaignID = campaignID
		r.db.steps[step.ID] = step
	}
	return nil
}

func (r *stepRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID) (domain.StepPlan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var plan domain.StepPlan
	for _, step := range r.db.steps {
		if step.CampaignID == campaignID {
			plan = append(plan, step)
		}
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Order < plan[j].Order })
	return plan, nil
}

func (r *stepRepo) Get(_ context.Context, id uuid.UUID) (*domain.CampaignStep, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	step, ok := r.db.steps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &step, nil
}

type enrollmentRepo struct{ db *DB }

func (r *enrollmentRepo) Add(_ context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) ([]*domain.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now().UTC()
	var inserted []*domain.Enrollment
	for _, prospectID := range prospectIDs {
		exists := false
		for _, enrollment := range r.db.enrollments {
			if enrollment.CampaignID == campaignID && enrollment.ProspectID == prospectID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		enrollment := domain.Enrollment{
			ID:         uuid.New(),
			CampaignID: campaignID,
			ProspectID: prospectID,
			Status:     domain.EnrollmentPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		r.db.enrollments[enrollment.ID] = enrollment
		e := enrollment
		inserted = append(inserted, &e)
	}
	return inserted, nil
}

func (r *enrollmentRepo) Get(_ context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	enrollment, ok := r.db.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) Update(_ context.Context, enrollment *domain.Enrollment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.enrollments[enrollment.ID]; !ok {
		return repository.ErrNotFound
	}
	r.db.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r *enrollmentRepo) MarkInProgress(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	enrollment, ok := r.db.enrollments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if enrollment.Status == domain.EnrollmentPending {
		enrollment.Status = domain.EnrollmentInProgress
		r.db.enrollments[id] = enrollment
	}
	return nil
}

func (r *enrollmentRepo) ListActive(_ context.Context, campaignID uuid.UUID) ([]*domain.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var results []*domain.Enrollment
	for _, enrollment := range r.db.enrollments {
		if enrollment.CampaignID != campaignID || enrollment.Status.IsTerminal() {
			continue
		}
		e := enrollment
		results = append(results, &e)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

func (r *enrollmentRepo) CountActive(_ context.Context, campaignID uuid.UUID) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, enrollment := range r.db.enrollments {
		if enrollment.CampaignID == campaignID && !enrollment.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (r *enrollmentRepo) Remove(_ context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(prospectIDs))
	for _, id := range prospectIDs {
		wanted[id] = true
	}
	var removed int64
	for id, enrollment := range r.db.enrollments {
		if enrollment.CampaignID != campaignID || !wanted[enrollment.ProspectID] {
			continue
		}
		for entryID, entry := range r.db.entries {
			if entry.EnrollmentID == id && entry.IsLive() {
				delete(r.db.entries, entryID)
			}
		}
		delete(r.db.enrollments, id)
		removed++
	}
	return removed, nil
}

type queueRepo struct{ db *DB }

func (r *queueRepo) Insert(_ context.Context, entry *domain.QueueEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.entries[entry.ID] = *entry
	return nil
}

func (r *queueRepo) Get(_ context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry, ok := r.db.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

func (r *queueRepo) HasLive(_ context.Context, enrollmentID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, entry := range r.db.entries {
		if entry.EnrollmentID == enrollmentID && entry.IsLive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *queueRepo) NextCandidates(_ context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var results []*domain.QueueEntry
	for _, entry := range r.db.entries {
		if entry.State != domain.EntryPending || entry.NotBefore.After(now) {
			continue
		}
		campaign, ok := r.db.campaigns[entry.CampaignID]
		if !ok || campaign.Status != domain.CampaignStatusActive {
			continue
		}
		e := entry
		results = append(results, &e)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].NotBefore.Equal(results[j].NotBefore) {
			return results[i].NotBefore.Before(results[j].NotBefore)
		}
		return bytes.Compare(results[i].EnrollmentID[:], results[j].EnrollmentID[:]) < 0
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *queueRepo) Claim(_ context.Context, id uuid.UUID, identity string, now time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry, ok := r.db.entries[id]
	if !ok || entry.State != domain.EntryPending {
		return false, nil
	}
	entry.State = domain.EntryClaimed
	t := now
	entry.ClaimedAt = &t
	entry.ClaimedBy = identity
	r.db.entries[id] = entry
	return true, nil
}

func (r *queueRepo) Finalize(_ context.Context, id uuid.UUID, outcome domain.ActionOutcome, now time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry, ok := r.db.entries[id]
	if !ok || entry.State == domain.EntryCompleted {
		return false, nil
	}
	entry.State = domain.EntryCompleted
	entry.Outcome = &outcome
	t := now
	entry.CompletedAt = &t
	r.db.entries[id] = entry
	return true, nil
}

func (r *queueRepo) ReleaseExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var released int64
	for id, entry := range r.db.entries {
		if entry.State == domain.EntryClaimed && entry.ClaimedAt != nil && entry.ClaimedAt.Before(cutoff) {
			entry.State = domain.EntryPending
			entry.ClaimedAt = nil
			entry.ClaimedBy = ""
			r.db.entries[id] = entry
			released++
		}
	}
	return released, nil
}

func (r *queueRepo) CountCompletedBetween(_ context.Context, campaignID uuid.UUID, from, to time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, entry := range r.db.entries {
		if entry.CampaignID != campaignID || entry.State != domain.EntryCompleted || entry.CompletedAt == nil {
			continue
		}
		if !entry.CompletedAt.Before(from) && entry.CompletedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (r *queueRepo) CountAllCompletedBetween(_ context.Context, from, to time.Time, outcome *domain.ActionOutcome) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, entry := range r.db.entries {
		if entry.State != domain.EntryCompleted || entry.CompletedAt == nil {
			continue
		}
		if entry.CompletedAt.Before(from) || !entry.CompletedAt.Before(to) {
			continue
		}
		if outcome != nil && (entry.Outcome == nil || *entry.Outcome != *outcome) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *queueRepo) CountByState(_ context.Context, state domain.EntryState) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, entry := range r.db.entries {
		if entry.State == state {
			count++
		}
	}
	return count, nil
}

func (r *queueRepo) DeleteLiveByEnrollment(_ context.Context, enrollmentID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, entry := range r.db.entries {
		if entry.EnrollmentID == enrollmentID && entry.IsLive() {
			delete(r.db.entries, id)
		}
	}
	return nil
}

type prospectRepo struct{ db *DB }

func (r *prospectRepo) Create(_ context.Context, prospect *domain.Prospect) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.prospects {
		if existing.OwnerID == prospect.OwnerID && existing.ProfileURL == prospect.ProfileURL {
			return repository.ErrConflict
		}
	}
	r.db.prospects[prospect.ID] = *prospect
	return nil
}

func (r *prospectRepo) Get(_ context.Context, id uuid.UUID) (*domain.Prospect, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	prospect, ok := r.db.prospects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &prospect, nil
}

func (r *prospectRepo) Update(_ context.Context, prospect *domain.Prospect) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.prospects[prospect.ID]; !ok {
		return repository.ErrNotFound
	}
	r.db.prospects[prospect.ID] = *prospect
	return nil
}

func (r *prospectRepo) Delete(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		prospect, ok := r.db.prospects[id]
		if !ok || prospect.OwnerID != ownerID {
			continue
		}
		delete(r.db.prospects, id)
		deleted++
	}
	return deleted, nil
}

func (r *prospectRepo) List(_ context.Context, ownerID uuid.UUID, filter repository.ProspectFilter) ([]*domain.Prospect, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var results []*domain.Prospect
	for _, prospect := range r.db.prospects {
		if prospect.OwnerID != ownerID {
			continue
		}
		if filter.ConnectionStatus != "" && prospect.ConnectionStatus != filter.ConnectionStatus {
			continue
		}
		p := prospect
		results = append(results, &p)
	}
	return clip(results, filter.Limit), nil
}

func (r *prospectRepo) BulkUpsert(_ context.Context, prospects []*domain.Prospect) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var inserted int64
	for _, prospect := range prospects {
		exists := false
		for _, existing := range r.db.prospects {
			if existing.OwnerID == prospect.OwnerID && existing.ProfileURL == prospect.ProfileURL {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		r.db.prospects[prospect.ID] = *prospect
		inserted++
	}
	return inserted, nil
}

func (r *prospectRepo) Stats(_ context.Context, ownerID uuid.UUID) (*domain.ProspectStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stats := &domain.ProspectStats{}
	for _, prospect := range r.db.prospects {
		if prospect.OwnerID != ownerID {
			continue
		}
		stats.Total++
		switch prospect.ConnectionStatus {
		case domain.ConnectionNotConnected:
			stats.NotConnected++
		case domain.ConnectionPending:
			stats.Pending++
		case domain.ConnectionConnected:
			stats.Connected++
		case domain.ConnectionWithdrawn:
			stats.Withdrawn++
		}
	}
	return stats, nil
}

type templateRepo struct{ db *DB }

func (r *templateRepo) Create(_ context.Context, template *domain.MessageTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.templates[template.ID] = *template
	return nil
}

func (r *templateRepo) Get(_ context.Context, id uuid.UUID) (*domain.MessageTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	template, ok := r.db.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &template, nil
}

func (r *templateRepo) Update(_ context.Context, template *domain.MessageTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.templates[template.ID]; !ok {
		return repository.ErrNotFound
	}
	r.db.templates[template.ID] = *template
	return nil
}

func (r *templateRepo) Delete(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		template, ok := r.db.templates[id]
		if !ok || template.OwnerID != ownerID {
			continue
		}
		delete(r.db.templates, id)
		deleted++
	}
	return deleted, nil
}

func (r *templateRepo) List(_ context.Context, ownerID uuid.UUID, templateType domain.TemplateType, limit int) ([]*domain.MessageTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var results []*domain.MessageTemplate
	for _, template := range r.db.templates {
		if template.OwnerID != ownerID {
			continue
		}
		if templateType != "" && template.Type != templateType {
			continue
		}
		t := template
		results = append(results, &t)
	}
	return clip(results, limit), nil
}

func clip[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
