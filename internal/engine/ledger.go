package engine

import (
	"context"
	"time"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

// initAttendance creates one pending record per current band member. Runs in
// the same transaction as the rehearsal insert, so the record count always
// equals the band's membership at creation time.
func initAttendance(ctx context.Context, tx store.Tx, rehearsalID string, members []model.Membership) error {
	for _, m := range members {
		rec := &model.AttendanceRecord{
			RehearsalID: rehearsalID,
			MemberID:    m.MemberID,
			Response:    model.ResponsePending,
		}
		if err := tx.InsertAttendance(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// cancelAttendance flips every answered record of the rehearsal to the
// terminal canceled marker; records still pending stay pending. Nothing is
// deleted, so audits can see who had responded before the cancellation.
func cancelAttendance(ctx context.Context, tx store.Tx, rehearsalID string) error {
	return tx.MarkAttendanceCanceled(ctx, rehearsalID)
}

// AttendanceSummary aggregates responses for one rehearsal.
type AttendanceSummary struct {
	Attending int
	Declined  int
	Pending   int
	Records   []model.AttendanceRecord
}

func summarize(records []model.AttendanceRecord) AttendanceSummary {
	s := AttendanceSummary{Records: records}
	for _, r := range records {
		switch r.Response {
		case model.ResponseAttending:
			s.Attending++
		case model.ResponseDeclined:
			s.Declined++
		case model.ResponsePending:
			s.Pending++
		}
	}
	return s
}

// respond upserts the member's answer. The caller has already verified band
// membership and that the rehearsal is still scheduled.
func respond(ctx context.Context, tx store.Tx, rehearsalID, memberID string, response model.Response, now time.Time) error {
	at := now
	rec := &model.AttendanceRecord{
		RehearsalID: rehearsalID,
		MemberID:    memberID,
		Response:    response,
		RespondedAt: &at,
	}
	return tx.UpsertAttendance(ctx, rec)
}
