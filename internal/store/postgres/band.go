package postgres

import (
	"context"
	"errors"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

func (t *tx) CreateBand(ctx context.Context, b *model.Band) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO bands (id, name, created_by) VALUES ($1,$2,$3)`,
		b.ID, b.Name, b.CreatedBy,
	)
	if err != nil {
		return mapErr(err)
	}
	for _, m := range b.Members {
		_, err = t.tx.Exec(ctx,
			`INSERT INTO band_members (band_id, member_id, role) VALUES ($1,$2,$3)`,
			b.ID, m.MemberID, m.Role,
		)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *tx) Band(ctx context.Context, id string) (*model.Band, error) {
	b := &model.Band{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, created_by, created_at, updated_at FROM bands WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	b.Members, err = t.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (t *tx) BandsForMember(ctx context.Context, memberID string) ([]model.Band, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT b.id, b.name, b.created_by, b.created_at, b.updated_at
		 FROM bands b
		 JOIN band_members m ON m.band_id = b.id
		 WHERE m.member_id = $1
		 ORDER BY b.id`, memberID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Band
	for rows.Next() {
		var b model.Band
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, b)
	}
	return out, mapErr(rows.Err())
}

func (t *tx) Members(ctx context.Context, bandID string) ([]model.Membership, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT band_id, member_id, role, joined_at
		 FROM band_members WHERE band_id = $1 ORDER BY member_id`, bandID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.BandID, &m.MemberID, &m.Role, &m.JoinedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

func (t *tx) RoleOf(ctx context.Context, memberID, bandID string) (model.Role, bool, error) {
	var role model.Role
	err := t.tx.QueryRow(ctx,
		`SELECT role FROM band_members WHERE band_id = $1 AND member_id = $2`,
		bandID, memberID,
	).Scan(&role)
	if err != nil {
		if errors.Is(mapErr(err), store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, mapErr(err)
	}
	return role, true, nil
}

func (t *tx) PutMembership(ctx context.Context, m *model.Membership) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO band_members (band_id, member_id, role) VALUES ($1,$2,$3)
		 ON CONFLICT (band_id, member_id) DO UPDATE SET role = EXCLUDED.role`,
		m.BandID, m.MemberID, m.Role,
	)
	return mapErr(err)
}

func (t *tx) DeleteMembership(ctx context.Context, bandID, memberID string) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM band_members WHERE band_id = $1 AND member_id = $2`,
		bandID, memberID,
	)
	return mapErr(err)
}
