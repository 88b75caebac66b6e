// Package store defines the transactional storage contract the scheduling
// engine is written against. Implementations: store/postgres (production)
// and store/memory (tests, dev mode without a database).
package store

import (
	"context"
	"errors"
	"time"

	"rehearsal-scheduler-api/internal/model"
)

// ErrNotFound is returned by lookups for absent records.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write loses to a uniqueness or exclusion
// constraint (duplicate email, overlapping scheduled rehearsal).
var ErrConflict = errors.New("conflicting record")

// ErrStaleState is returned when a rehearsal write loses a race to a
// terminal status transition: the row went canceled or completed after this
// transaction read it, and terminal states never change again.
var ErrStaleState = errors.New("record state changed")

// RehearsalFilter narrows ListRehearsals. Zero values mean "no constraint";
// the engine always sets BandIDs for principal-facing listings, the
// completion sweep lists by status and due time across all bands.
type RehearsalFilter struct {
	BandIDs   []string
	From      time.Time
	To        time.Time
	Status    model.RehearsalStatus
	EndBefore time.Time
}

// Tx is a single atomic unit of work. All writes issued through one Tx
// become visible together or not at all.
type Tx interface {
	// users
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)

	// refresh tokens
	CreateRefreshToken(ctx context.Context, t *RefreshToken) error
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id, replacedBy string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error

	// bands and memberships
	CreateBand(ctx context.Context, b *model.Band) error
	Band(ctx context.Context, id string) (*model.Band, error)
	BandsForMember(ctx context.Context, memberID string) ([]model.Band, error)
	Members(ctx context.Context, bandID string) ([]model.Membership, error)
	RoleOf(ctx context.Context, memberID, bandID string) (model.Role, bool, error)
	PutMembership(ctx context.Context, m *model.Membership) error
	DeleteMembership(ctx context.Context, bandID, memberID string) error

	// venues
	CreateVenue(ctx context.Context, v *model.Venue) error
	Venue(ctx context.Context, id string) (*model.Venue, error)
	Venues(ctx context.Context) ([]model.Venue, error)

	// rehearsals
	InsertRehearsal(ctx context.Context, r *model.Rehearsal) error
	Rehearsal(ctx context.Context, id string) (*model.Rehearsal, error)
	UpdateRehearsal(ctx context.Context, r *model.Rehearsal) error
	// Overlapping returns ids of scheduled rehearsals at the venue whose
	// [start, end) range intersects the given one, excluding excludeID
	// when non-empty. Canceled and completed rehearsals never count.
	Overlapping(ctx context.Context, venueID string, start, end time.Time, excludeID string) ([]string, error)
	ListRehearsals(ctx context.Context, f RehearsalFilter) ([]model.Rehearsal, error)

	// attendance
	InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	UpsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	Attendance(ctx context.Context, rehearsalID string) ([]model.AttendanceRecord, error)
	AttendanceFor(ctx context.Context, rehearsalID, memberID string) (*model.AttendanceRecord, error)
	MarkAttendanceCanceled(ctx context.Context, rehearsalID string) error
}

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
	CreatedAt  time.Time
}

type Store interface {
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(Tx) error) error
	// Update runs fn in one atomic transaction.
	Update(ctx context.Context, fn func(Tx) error) error
	// UpdateVenue is Update holding the venue's exclusive scheduling scope
	// for the duration of fn: two UpdateVenue calls for the same venue are
	// serialized, different venues run in parallel. Every conflict check
	// that precedes a rehearsal write happens inside this scope.
	UpdateVenue(ctx context.Context, venueID string, fn func(Tx) error) error
}
