// Package postgres implements store.Store on pgx. Venue scheduling scopes
// use transaction-level advisory locks, and the schema carries an exclusion
// constraint on scheduled venue time ranges as a second line of defense.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rehearsal-scheduler-api/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, "", fn)
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, "", fn)
}

func (s *Store) UpdateVenue(ctx context.Context, venueID string, fn func(store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, venueID, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, lockVenue string, fn func(store.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return mapErr(err)
	}
	defer pgtx.Rollback(ctx)

	if lockVenue != "" {
		// held until commit or rollback; serializes all scheduling
		// writes for one venue while other venues proceed in parallel
		if _, err := pgtx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockVenue); err != nil {
			return mapErr(err)
		}
	}

	if err := fn(&tx{tx: pgtx}); err != nil {
		return err
	}
	return mapErr(pgtx.Commit(ctx))
}

type tx struct {
	tx pgx.Tx
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*tx)(nil)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 unique_violation, 23P01 exclusion_violation
		if pgErr.Code == "23505" || pgErr.Code == "23P01" {
			return store.ErrConflict
		}
	}
	return err
}
