package postgres

import (
	"context"

	"rehearsal-scheduler-api/internal/model"
)

func (t *tx) InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO attendance_records (rehearsal_id, member_id, response) VALUES ($1,$2,$3)`,
		rec.RehearsalID, rec.MemberID, rec.Response,
	)
	return mapErr(err)
}

func (t *tx) UpsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO attendance_records (rehearsal_id, member_id, response, responded_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (rehearsal_id, member_id)
		 DO UPDATE SET response = EXCLUDED.response, responded_at = EXCLUDED.responded_at`,
		rec.RehearsalID, rec.MemberID, rec.Response, rec.RespondedAt,
	)
	return mapErr(err)
}

func (t *tx) Attendance(ctx context.Context, rehearsalID string) ([]model.AttendanceRecord, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT rehearsal_id, member_id, response, responded_at
		 FROM attendance_records WHERE rehearsal_id = $1 ORDER BY member_id`, rehearsalID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.RehearsalID, &rec.MemberID, &rec.Response, &rec.RespondedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, rec)
	}
	return out, mapErr(rows.Err())
}

func (t *tx) AttendanceFor(ctx context.Context, rehearsalID, memberID string) (*model.AttendanceRecord, error) {
	rec := &model.AttendanceRecord{}
	err := t.tx.QueryRow(ctx,
		`SELECT rehearsal_id, member_id, response, responded_at
		 FROM attendance_records WHERE rehearsal_id = $1 AND member_id = $2`,
		rehearsalID, memberID,
	).Scan(&rec.RehearsalID, &rec.MemberID, &rec.Response, &rec.RespondedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return rec, nil
}

func (t *tx) MarkAttendanceCanceled(ctx context.Context, rehearsalID string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE attendance_records SET response = $1
		 WHERE rehearsal_id = $2 AND response != $3`,
		model.ResponseCanceled, rehearsalID, model.ResponsePending,
	)
	return mapErr(err)
}
