package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

// EnrollmentStatus tracks a prospect's progress through one campaign.
type EnrollmentStatus string

const (
	EnrollmentPending    EnrollmentStatus = "pending"
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
	EnrollmentFailed     EnrollmentStatus = "failed"
	EnrollmentSkipped    EnrollmentStatus = "skipped"
)

// IsTerminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) IsTerminal() bool {
	switch s {
	case EnrollmentCompleted, EnrollmentFailed, EnrollmentSkipped:
		return true
	}
	return false
}

// Enrollment is the per (campaign, prospect) state record. CurrentStep is
// 0 before any action runs; k means steps 1..k have been completed.
type Enrollment struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	ProspectID    uuid.UUID
	Status        EnrollmentStatus
	CurrentStep   int
	LastActionAt  *time.Time
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// canTransition encodes the enrollment state machine:
// pending → in_progress → {completed, failed}; any non-terminal → skipped.
func (e *Enrollment) canTransition(to EnrollmentStatus) bool {
	if e.Status == to {
		return true
	}
	if e.Status.IsTerminal() {
		return false
	}
	switch to {
	case EnrollmentInProgress:
		return e.Status == EnrollmentPending
	case EnrollmentCompleted, EnrollmentFailed:
		return e.Status == EnrollmentInProgress
	case EnrollmentSkipped:
		return true
	}
	return false
}

// Transition applies a status change, rejecting illegal moves.
func (e *Enrollment) Transition(to EnrollmentStatus) error {
	if !e.canTransition(to) {
		return fmt.Errorf("%w: enrollment cannot move from %s to %s", apperrors.ErrInvalidState, e.Status, to)
	}
	e.Status = to
	return nil
}

// Advance records completion of step order. CurrentStep never moves
// backward.
func (e *Enrollment) Advance(order int, at time.Time) error {
	if order < e.CurrentStep {
		return fmt.Errorf("%w: current step cannot regress from %d to %d", apperrors.ErrInvalidState, e.CurrentStep, order)
	}
	e.CurrentStep = order
	t := at
	e.LastActionAt = &t
	return nil
}

// Fail marks the enrollment permanently failed with a reason.
func (e *Enrollment) Fail(reason string) error {
	if err := e.Transition(EnrollmentFailed); err != nil {
		return err
	}
	e.FailureReason = &reason
	return nil
}
