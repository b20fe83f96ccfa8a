package domain

import (
	"testing"

	"github.com/google/uuid"

	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

func TestValidatePlan(t *testing.T) {
	templateID := uuid.New()

	cases := []struct {
		name  string
		steps []CampaignStep
		ok    bool
	}{
		{
			name: "valid single visit",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionVisit},
			},
			ok: true,
		},
		{
			name: "valid full sequence",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionVisit},
				{Order: 2, Kind: ActionInvite, DelayDays: 1, TemplateID: &templateID},
				{Order: 3, Kind: ActionMessage, DelayDays: 2, TemplateID: &templateID},
			},
			ok: true,
		},
		{
			name: "unordered input is accepted",
			steps: []CampaignStep{
				{Order: 2, Kind: ActionFollow, DelayDays: 1},
				{Order: 1, Kind: ActionVisit},
			},
			ok: true,
		},
		{
			name:  "empty plan",
			steps: nil,
			ok:    false,
		},
		{
			name: "orders must start at 1",
			steps: []CampaignStep{
				{Order: 2, Kind: ActionVisit},
			},
			ok: false,
		},
		{
			name: "orders must be dense",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionVisit},
				{Order: 3, Kind: ActionFollow},
			},
			ok: false,
		},
		{
			name: "duplicate orders",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionVisit},
				{Order: 1, Kind: ActionFollow},
			},
			ok: false,
		},
		{
			name: "unknown kind",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionKind("endorse")},
			},
			ok: false,
		},
		{
			name: "negative delay",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionVisit, DelayDays: -1},
			},
			ok: false,
		},
		{
			name: "invite requires a template",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionInvite},
			},
			ok: false,
		},
		{
			name: "visit rejects a template",
			steps: []CampaignStep{
				{Order: 1, Kind: ActionVisit, TemplateID: &templateID},
			},
			ok: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePlan(tc.steps)
			if tc.ok && err != nil {
				t.Fatalf("expected plan to validate, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected plan to be rejected")
				}
				if !apperrors.Is(err, apperrors.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
			}
		})
	}
}

func TestStepPlanStepAt(t *testing.T) {
	plan := StepPlan{
		{Order: 1, Kind: ActionVisit},
		{Order: 2, Kind: ActionFollow},
	}

	step, ok := plan.StepAt(2)
	if !ok {
		t.Fatal("expected step 2 to exist")
	}
	if step.Kind != ActionFollow {
		t.Errorf("step 2 kind = %s, want follow", step.Kind)
	}

	if _, ok := plan.StepAt(3); ok {
		t.Error("expected step 3 to be missing")
	}
}

func TestStepDelay(t *testing.T) {
	step := CampaignStep{DelayDays: 3}
	if got, want := step.Delay().Hours(), 72.0; got != want {
		t.Errorf("delay = %v hours, want %v", got, want)
	}
}
