package postgres

import (
	"context"
	"fmt"
	"time"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

const rehearsalCols = `id, band_id, venue_id, title, description,
	start_time, end_time, status, created_by, created_at, updated_at`

func (t *tx) InsertRehearsal(ctx context.Context, r *model.Rehearsal) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO rehearsals (id, band_id, venue_id, title, description, start_time, end_time, status, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.BandID, r.VenueID, r.Title, r.Description, r.StartTime, r.EndTime, r.Status, r.CreatedBy,
	)
	return mapErr(err)
}

func (t *tx) Rehearsal(ctx context.Context, id string) (*model.Rehearsal, error) {
	r := &model.Rehearsal{}
	err := t.tx.QueryRow(ctx,
		`SELECT `+rehearsalCols+` FROM rehearsals WHERE id = $1`, id,
	).Scan(&r.ID, &r.BandID, &r.VenueID, &r.Title, &r.Description,
		&r.StartTime, &r.EndTime, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (t *tx) UpdateRehearsal(ctx context.Context, r *model.Rehearsal) error {
	// only a still-scheduled row may change; at READ COMMITTED the WHERE is
	// re-evaluated after any lock wait, so a row that went terminal under a
	// concurrent writer matches zero rows instead of being overwritten
	tag, err := t.tx.Exec(ctx,
		`UPDATE rehearsals
		 SET venue_id=$1, title=$2, description=$3, start_time=$4, end_time=$5, status=$6, updated_at=NOW()
		 WHERE id=$7 AND (status = 'scheduled' OR status = $6)`,
		r.VenueID, r.Title, r.Description, r.StartTime, r.EndTime, r.Status, r.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		var cur model.RehearsalStatus
		if err := t.tx.QueryRow(ctx,
			`SELECT status FROM rehearsals WHERE id = $1`, r.ID,
		).Scan(&cur); err != nil {
			return mapErr(err)
		}
		return store.ErrStaleState
	}
	return nil
}

func (t *tx) Overlapping(ctx context.Context, venueID string, start, end time.Time, excludeID string) ([]string, error) {
	q := `SELECT id FROM rehearsals
		WHERE venue_id = $1
		  AND status = 'scheduled'
		  AND start_time < $3
		  AND end_time > $2`
	args := []any{venueID, start, end}
	if excludeID != "" {
		q += ` AND id != $4`
		args = append(args, excludeID)
	}

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		ids = append(ids, id)
	}
	return ids, mapErr(rows.Err())
}

func (t *tx) ListRehearsals(ctx context.Context, f store.RehearsalFilter) ([]model.Rehearsal, error) {
	q := `SELECT ` + rehearsalCols + ` FROM rehearsals WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.BandIDs) > 0 {
		q += ` AND band_id = ANY(` + arg(f.BandIDs) + `)`
	}
	if f.Status != "" {
		q += ` AND status = ` + arg(f.Status)
	}
	if !f.From.IsZero() {
		q += ` AND start_time >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		q += ` AND end_time <= ` + arg(f.To)
	}
	if !f.EndBefore.IsZero() {
		q += ` AND end_time < ` + arg(f.EndBefore)
	}
	q += ` ORDER BY start_time`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Rehearsal
	for rows.Next() {
		var r model.Rehearsal
		if err := rows.Scan(&r.ID, &r.BandID, &r.VenueID, &r.Title, &r.Description,
			&r.StartTime, &r.EndTime, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}
