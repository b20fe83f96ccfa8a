package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

// CampaignStep is one ordered action in a campaign's sequence. Steps are
// immutable once the campaign leaves draft.
type CampaignStep struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	Order      int // dense, 1-based
	Kind       ActionKind
	DelayDays  int // wait after the previous step's completion
	TemplateID *uuid.UUID
	CreatedAt  time.Time
}

// Delay converts the step's delay into a duration.
func (s *CampaignStep) Delay() time.Duration {
	return time.Duration(s.DelayDays) * 24 * time.Hour
}

// StepPlan is the ordered, validated step sequence of one campaign.
type StepPlan []CampaignStep

// ValidatePlan checks a step sequence: orders must be exactly 1..N, every
// kind must exist in the catalog, delays must be non-negative, and a
// template is required iff the kind requires one.
func ValidatePlan(steps []CampaignStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: campaign requires at least one step", apperrors.ErrValidation)
	}

	sorted := make([]CampaignStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for i, step := range sorted {
		if step.Order != i+1 {
			return fmt.Errorf("%w: step orders must be dense starting at 1, got %d at position %d", apperrors.ErrValidation, step.Order, i+1)
		}
		spec, ok := ActionByKind(step.Kind)
		if !ok {
			return fmt.Errorf("%w: unknown action kind %q", apperrors.ErrValidation, step.Kind)
		}
		if step.DelayDays < 0 {
			return fmt.Errorf("%w: step %d delay must be non-negative", apperrors.ErrValidation, step.Order)
		}
		if spec.RequiresTemplate && step.TemplateID == nil {
			return fmt.Errorf("%w: step %d (%s) requires a message template", apperrors.ErrValidation, step.Order, step.Kind)
		}
		if !spec.RequiresTemplate && step.TemplateID != nil {
			return fmt.Errorf("%w: step %d (%s) does not accept a message template", apperrors.ErrValidation, step.Order, step.Kind)
		}
	}
	return nil
}

// StepAt returns the step with the given 1-based order.
func (p StepPlan) StepAt(order int) (CampaignStep, bool) {
	for _, s := range p {
		if s.Order == order {
			return s, true
		}
	}
	return CampaignStep{}, false
}
