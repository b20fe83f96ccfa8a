package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusArchived  CampaignStatus = "archived"
)

// Campaign models an outreach sequence applied to a set of prospects.
type Campaign struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Description string
	TimeZone    string
	Status      CampaignStatus
	DailyLimit  int

	// Aggregate counters. Processed/success/failure count whole prospect
	// sequences, not individual actions, and never decrement.
	TotalProspects     int
	ProcessedProspects int
	SuccessCount       int
	FailureCount       int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// CanStart reports whether the campaign may transition to active.
func (c *Campaign) CanStart() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusPaused
}

// CanPause reports whether the campaign may transition to paused.
func (c *Campaign) CanPause() bool {
	return c.Status == CampaignStatusActive
}

// IsTerminal reports whether the campaign is in a terminal status.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusArchived
}

// Location resolves the owner timezone, falling back to UTC.
func (c *Campaign) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayWindow returns the campaign-local calendar day containing now,
// expressed as a half-open [start, end) UTC interval. The daily action
// counter is derived by counting completions inside this window.
func (c *Campaign) DayWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(c.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// CounterDelta captures increments applied to campaign aggregate counters.
type CounterDelta struct {
	TotalProspects     int
	ProcessedProspects int
	SuccessCount       int
	FailureCount       int
}

// CampaignStats is the read-only stats projection served to clients.
type CampaignStats struct {
	TotalProspects     int
	ProcessedProspects int
	SuccessCount       int
	FailureCount       int
	PendingProspects   int
	ActionsToday       int
}
