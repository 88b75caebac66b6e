package engine

import (
	"context"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

// MembershipGate answers "does principal P have a role in band B". The
// engine only consumes this interface; authentication is someone else's
// problem, a principal id reaching the engine is taken as verified.
type MembershipGate interface {
	// IsMember returns store.ErrNotFound if the band itself is absent.
	IsMember(ctx context.Context, principalID, bandID string) (bool, error)
	RoleOf(ctx context.Context, principalID, bandID string) (model.Role, bool, error)
}

// StoreGate backs the gate with band memberships in the store.
type StoreGate struct {
	Store store.Store
}

func (g StoreGate) IsMember(ctx context.Context, principalID, bandID string) (bool, error) {
	_, ok, err := g.RoleOf(ctx, principalID, bandID)
	return ok, err
}

func (g StoreGate) RoleOf(ctx context.Context, principalID, bandID string) (model.Role, bool, error) {
	var role model.Role
	var ok bool
	err := g.Store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Band(ctx, bandID); err != nil {
			return err
		}
		var err error
		role, ok, err = tx.RoleOf(ctx, principalID, bandID)
		return err
	})
	return role, ok, err
}
