package domain

import (
	"testing"
	"time"

	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

func TestEnrollmentTransitions(t *testing.T) {
	cases := []struct {
		name string
		from EnrollmentStatus
		to   EnrollmentStatus
		ok   bool
	}{
		{"pending to in_progress", EnrollmentPending, EnrollmentInProgress, true},
		{"in_progress to completed", EnrollmentInProgress, EnrollmentCompleted, true},
		{"in_progress to failed", EnrollmentInProgress, EnrollmentFailed, true},
		{"pending to skipped", EnrollmentPending, EnrollmentSkipped, true},
		{"in_progress to skipped", EnrollmentInProgress, EnrollmentSkipped, true},
		{"same status is a no-op", EnrollmentInProgress, EnrollmentInProgress, true},
		{"pending cannot complete directly", EnrollmentPending, EnrollmentCompleted, false},
		{"pending cannot fail directly", EnrollmentPending, EnrollmentFailed, false},
		{"completed is terminal", EnrollmentCompleted, EnrollmentInProgress, false},
		{"failed is terminal", EnrollmentFailed, EnrollmentInProgress, false},
		{"skipped is terminal", EnrollmentSkipped, EnrollmentInProgress, false},
		{"completed cannot be skipped", EnrollmentCompleted, EnrollmentSkipped, false},
		{"in_progress cannot regress to pending", EnrollmentInProgress, EnrollmentPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &Enrollment{Status: tc.from}
			err := e.Transition(tc.to)
			if tc.ok && err != nil {
				t.Fatalf("expected transition %s -> %s to succeed, got %v", tc.from, tc.to, err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected transition %s -> %s to fail", tc.from, tc.to)
				}
				if !apperrors.Is(err, apperrors.ErrInvalidState) {
					t.Errorf("expected invalid state error, got %v", err)
				}
				if e.Status != tc.from {
					t.Errorf("status changed on rejected transition: %s", e.Status)
				}
			}
		})
	}
}

func TestEnrollmentAdvance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := &Enrollment{Status: EnrollmentInProgress, CurrentStep: 0}

	if err := e.Advance(1, now); err != nil {
		t.Fatalf("advance to step 1: %v", err)
	}
	if e.CurrentStep != 1 {
		t.Errorf("current step = %d, want 1", e.CurrentStep)
	}
	if e.LastActionAt == nil || !e.LastActionAt.Equal(now) {
		t.Errorf("last action at = %v, want %v", e.LastActionAt, now)
	}

	later := now.Add(time.Hour)
	if err := e.Advance(2, later); err != nil {
		t.Fatalf("advance to step 2: %v", err)
	}

	// A stale completion report must not move the cursor backward.
	if err := e.Advance(1, later.Add(time.Hour)); err == nil {
		t.Fatal("expected regression to step 1 to fail")
	}
	if e.CurrentStep != 2 {
		t.Errorf("current step = %d after rejected regression, want 2", e.CurrentStep)
	}

	// Re-reporting the same step is allowed and keeps the cursor stable.
	if err := e.Advance(2, later.Add(2*time.Hour)); err != nil {
		t.Fatalf("re-advance to step 2: %v", err)
	}
	if e.CurrentStep != 2 {
		t.Errorf("current step = %d, want 2", e.CurrentStep)
	}
}

func TestEnrollmentFail(t *testing.T) {
	e := &Enrollment{Status: EnrollmentInProgress}
	if err := e.Fail("invite rejected"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if e.Status != EnrollmentFailed {
		t.Errorf("status = %s, want failed", e.Status)
	}
	if e.FailureReason == nil || *e.FailureReason != "invite rejected" {
		t.Errorf("failure reason = %v, want invite rejected", e.FailureReason)
	}

	terminal := &Enrollment{Status: EnrollmentCompleted}
	if err := terminal.Fail("too late"); err == nil {
		t.Fatal("expected failing a completed enrollment to be rejected")
	}
}
