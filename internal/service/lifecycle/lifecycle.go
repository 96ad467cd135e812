// Package lifecycle validates trip request status transitions.
package lifecycle

import (
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
)

// transitions is the fixed lifecycle graph. Terminal states have no entry.
var transitions = map[types.RequestStatus][]types.RequestStatus{
	types.StatusDraft:      {types.StatusPending, types.StatusCancelled},
	types.StatusPending:    {types.StatusConfirmed, types.StatusCancelled},
	types.StatusConfirmed:  {types.StatusInProgress, types.StatusCancelled},
	types.StatusInProgress: {types.StatusCompleted, types.StatusCancelled},
	types.StatusCompleted:  {},
	types.StatusCancelled:  {},
}

// AllowedTargets returns the valid successors of the given status.
func AllowedTargets(current types.RequestStatus) []types.RequestStatus {
	targets := transitions[current]
	out := make([]types.RequestStatus, len(targets))
	copy(out, targets)
	return out
}

// ValidateTransition checks whether current may move to requested.
// A self-transition is always accepted so that repeated updates stay
// idempotent at the validation layer. Any other unlisted transition returns a
// precondition error carrying the allowed target set.
func ValidateTransition(current, requested types.RequestStatus) error {
	if !requested.IsValid() {
		return types.NewValidation("unknown status: " + requested.String())
	}
	if current == requested {
		return nil
	}
	for _, target := range transitions[current] {
		if target == requested {
			return nil
		}
	}
	return types.NewInvalidTransition(current, requested, AllowedTargets(current))
}

// CanCancel reports whether a request in the given status may still be
// cancelled.
func CanCancel(status types.RequestStatus) bool {
	return !status.IsTerminal()
}

// CanEdit reports whether the request body may still be edited by its owner.
func CanEdit(status types.RequestStatus) bool {
	return status == types.StatusDraft || status == types.StatusPending
}
