package engine

import (
	"fmt"
	"time"

	"rehearsal-scheduler-api/internal/model"
)

// transition moves a rehearsal to a new status, rejecting anything the
// transition table does not allow, and refreshes updatedAt.
func transition(r *model.Rehearsal, to model.RehearsalStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(to) {
		return invalidState(fmt.Sprintf("rehearsal is %s, cannot move to %s", r.Status, to))
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// validateWindow enforces start < end and, when future is set, that the
// rehearsal does not begin in the past. A small grace absorbs clock skew
// between client and server.
const pastGrace = 5 * time.Minute

func validateWindow(start, end, now time.Time, future bool) error {
	if start.IsZero() || end.IsZero() {
		return invalidInput("start and end times are required")
	}
	if !start.Before(end) {
		return invalidInput("end time must be after start time")
	}
	if future && start.Before(now.Add(-pastGrace)) {
		return invalidInput("cannot schedule a rehearsal in the past")
	}
	return nil
}
