package engine

import (
	"context"
	"time"

	"rehearsal-scheduler-api/internal/store"
)

// checkAvailable asks the store's conflict index whether [start, end) at the
// venue is free of scheduled rehearsals. Two ranges conflict iff
// startA < endB && startB < endA; sharing a boundary is not a conflict, so
// back-to-back bookings pass. excludeID makes an update check against all
// other rehearsals only.
//
// Must run inside the venue's UpdateVenue scope: the answer is only valid
// while no concurrent writer can touch the same venue.
func checkAvailable(ctx context.Context, tx store.Tx, venueID string, start, end time.Time, excludeID string) (bool, []string, error) {
	ids, err := tx.Overlapping(ctx, venueID, start, end, excludeID)
	if err != nil {
		return false, nil, err
	}
	return len(ids) == 0, ids, nil
}
