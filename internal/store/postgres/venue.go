package postgres

import (
	"context"

	"rehearsal-scheduler-api/internal/model"
)

func (t *tx) CreateVenue(ctx context.Context, v *model.Venue) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO venues (id, name, address, capacity) VALUES ($1,$2,$3,$4)`,
		v.ID, v.Name, v.Address, v.Capacity,
	)
	return mapErr(err)
}

func (t *tx) Venue(ctx context.Context, id string) (*model.Venue, error) {
	v := &model.Venue{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, address, capacity, created_at, updated_at
		 FROM venues WHERE id = $1`, id,
	).Scan(&v.ID, &v.Name, &v.Address, &v.Capacity, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

func (t *tx) Venues(ctx context.Context) ([]model.Venue, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, name, address, capacity, created_at, updated_at
		 FROM venues ORDER BY name`,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.Capacity, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err())
}
