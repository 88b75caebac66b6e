package postgres

import (
	"context"

	"rehearsal-scheduler-api/internal/store"
)

func (t *tx) CreateRefreshToken(ctx context.Context, rt *store.RefreshToken) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1,$2,$3,$4)`,
		rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt,
	)
	return mapErr(err)
}

func (t *tx) RefreshTokenByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error) {
	rt := &store.RefreshToken{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, revoked, replaced_by, created_at
		 FROM refresh_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.Revoked, &rt.ReplacedBy, &rt.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return rt, nil
}

func (t *tx) RevokeRefreshToken(ctx context.Context, id, replacedBy string) error {
	var rb *string
	if replacedBy != "" {
		rb = &replacedBy
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true, replaced_by = $1 WHERE id = $2`,
		rb, id,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`,
		userID,
	)
	return mapErr(err)
}
