package lifecycle

import (
	"errors"
	"testing"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
)

func TestValidateTransition_Table(t *testing.T) {
	cases := []struct {
		name    string
		from    types.RequestStatus
		to      types.RequestStatus
		allowed bool
	}{
		{"draft to pending", types.StatusDraft, types.StatusPending, true},
		{"draft to cancelled", types.StatusDraft, types.StatusCancelled, true},
		{"draft to confirmed", types.StatusDraft, types.StatusConfirmed, false},
		{"pending to confirmed", types.StatusPending, types.StatusConfirmed, true},
		{"pending to in_progress", types.StatusPending, types.StatusInProgress, false},
		{"confirmed to in_progress", types.StatusConfirmed, types.StatusInProgress, true},
		{"confirmed to completed", types.StatusConfirmed, types.StatusCompleted, false},
		{"in_progress to completed", types.StatusInProgress, types.StatusCompleted, true},
		{"in_progress to cancelled", types.StatusInProgress, types.StatusCancelled, true},
		{"completed is terminal", types.StatusCompleted, types.StatusCancelled, false},
		{"cancelled is terminal", types.StatusCancelled, types.StatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.from, tc.to)
			if tc.allowed && err != nil {
				t.Fatalf("expected transition %s -> %s to be allowed, got %v", tc.from, tc.to, err)
			}
			if !tc.allowed && err == nil {
				t.Fatalf("expected transition %s -> %s to be rejected", tc.from, tc.to)
			}
		})
	}
}

func TestValidateTransition_SelfTransitionIsIdempotent(t *testing.T) {
	for _, s := range types.AllStatuses {
		if err := ValidateTransition(s, s); err != nil {
			t.Errorf("self-transition for %s must be accepted, got %v", s, err)
		}
	}
}

func TestValidateTransition_CarriesAllowedTargets(t *testing.T) {
	err := ValidateTransition(types.StatusPending, types.StatusCompleted)
	if err == nil {
		t.Fatal("expected error")
	}

	var de *types.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if de.Code != types.CodePrecondition {
		t.Fatalf("expected precondition code, got %s", de.Code)
	}
	if len(de.AllowedStatuses) != 2 {
		t.Fatalf("expected 2 allowed targets for PENDING, got %v", de.AllowedStatuses)
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	err := ValidateTransition(types.StatusDraft, types.RequestStatus("SHIPPED"))
	if err == nil {
		t.Fatal("expected validation error for unknown status")
	}
	if types.ErrCode(err) != types.CodeValidation {
		t.Fatalf("expected validation code, got %s", types.ErrCode(err))
	}
}

func TestCanCancel(t *testing.T) {
	if CanCancel(types.StatusCompleted) || CanCancel(types.StatusCancelled) {
		t.Error("terminal statuses must not be cancellable")
	}
	for _, s := range []types.RequestStatus{types.StatusDraft, types.StatusPending, types.StatusConfirmed, types.StatusInProgress} {
		if !CanCancel(s) {
			t.Errorf("%s must be cancellable", s)
		}
	}
}

func TestCanEdit(t *testing.T) {
	if !CanEdit(types.StatusDraft) || !CanEdit(types.StatusPending) {
		t.Error("draft and pending requests must be editable")
	}
	for _, s := range []types.RequestStatus{types.StatusConfirmed, types.StatusInProgress, types.StatusCompleted, types.StatusCancelled} {
		if CanEdit(s) {
			t.Errorf("%s must not be editable", s)
		}
	}
}
