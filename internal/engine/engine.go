// Package engine is the rehearsal scheduling core: it decides whether a
// proposed rehearsal may be created or modified, owns the rehearsal state
// machine, and keeps attendance records consistent with lifecycle
// transitions. All writes of one operation land in a single store
// transaction; conflict checks run inside the venue's exclusive scope, so
// two overlapping requests for the same venue can never both commit.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/notify"
	"rehearsal-scheduler-api/internal/store"
)

const defaultTimeout = 5 * time.Second

type Engine struct {
	store    store.Store
	gate     MembershipGate
	notifier notify.Notifier
	log      zerolog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// Config tunes an Engine. Zero values fall back to sane defaults; Clock
// exists for tests.
type Config struct {
	Notifier notify.Notifier
	Logger   zerolog.Logger
	Timeout  time.Duration
	Clock    func() time.Time
}

func New(st store.Store, gate MembershipGate, cfg Config) *Engine {
	e := &Engine{
		store:    st,
		gate:     gate,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		timeout:  cfg.Timeout,
		now:      cfg.Clock,
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// opCtx bounds one logical operation. On expiry the store aborts the
// transaction, nothing partial is left behind, and the caller gets a
// retryable unavailable error.
func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// wrap translates store and context failures into the engine taxonomy.
// Engine errors pass through untouched.
func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound(what)
	case errors.Is(err, store.ErrConflict):
		// the store's exclusion backstop caught a race the app-level
		// check could not see
		return conflict(nil)
	case errors.Is(err, store.ErrStaleState):
		// lost a race to a terminal transition; the row is now canceled
		// or completed and this write no longer applies
		return invalidState("rehearsal state changed concurrently")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return unavailable("operation timed out, retry")
	default:
		return unavailable("store failure, retry")
	}
}

type ScheduleInput struct {
	BandID      string
	VenueID     string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

func (e *Engine) ScheduleRehearsal(ctx context.Context, principal string, in ScheduleInput) (*model.Rehearsal, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if in.Title == "" {
		return nil, invalidInput("title is required")
	}
	now := e.now()
	if err := validateWindow(in.Start, in.End, now, true); err != nil {
		return nil, err
	}

	ok, err := e.gate.IsMember(ctx, principal, in.BandID)
	if err != nil {
		return nil, wrap(err, "band")
	}
	if !ok {
		return nil, notAuthorized("not a member of this band")
	}

	r := &model.Rehearsal{
		ID:          uuid.New().String(),
		BandID:      in.BandID,
		VenueID:     in.VenueID,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.Start,
		EndTime:     in.End,
		Status:      model.StatusScheduled,
		CreatedBy:   principal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = e.store.UpdateVenue(ctx, in.VenueID, func(tx store.Tx) error {
		if _, err := tx.Venue(ctx, in.VenueID); err != nil {
			return wrap(err, "venue")
		}
		free, ids, err := checkAvailable(ctx, tx, in.VenueID, in.Start, in.End, "")
		if err != nil {
			return err
		}
		if !free {
			return conflict(ids)
		}
		if err := tx.InsertRehearsal(ctx, r); err != nil {
			return err
		}
		members, err := tx.Members(ctx, in.BandID)
		if err != nil {
			return err
		}
		return initAttendance(ctx, tx, r.ID, members)
	})
	if err != nil {
		return nil, wrap(err, "rehearsal")
	}

	e.log.Info().Str("rehearsal_id", r.ID).Str("venue_id", r.VenueID).Msg("rehearsal scheduled")
	e.notifier.Publish(notify.Event{
		Kind: notify.RehearsalScheduled, RehearsalID: r.ID,
		BandID: r.BandID, VenueID: r.VenueID, At: now,
	})
	return r, nil
}

// UpdatePatch carries only the fields the caller wants changed.
type UpdatePatch struct {
	Title       *string
	Description *string
	VenueID     *string
	Start       *time.Time
	End         *time.Time
}

func (p UpdatePatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.VenueID == nil && p.Start == nil && p.End == nil
}

// moves reports whether the patch changes where or when the rehearsal
// happens, which re-triggers the conflict check and the stricter role gate.
func (p UpdatePatch) moves() bool {
	return p.VenueID != nil || p.Start != nil || p.End != nil
}

func (e *Engine) UpdateRehearsal(ctx context.Context, principal, rehearsalID string, patch UpdatePatch) (*model.Rehearsal, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if patch.empty() {
		return nil, invalidInput("nothing to update")
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, invalidInput("title cannot be empty")
	}

	cur, err := e.getRehearsal(ctx, rehearsalID)
	if err != nil {
		return nil, err
	}
	role, member, err := e.gate.RoleOf(ctx, principal, cur.BandID)
	if err != nil {
		return nil, wrap(err, "band")
	}
	if !member {
		return nil, notAuthorized("not a member of this band")
	}
	if patch.moves() && role != model.RoleLeader && cur.CreatedBy != principal {
		return nil, notAuthorized("only the creator or a band leader may move a rehearsal")
	}

	venueID := cur.VenueID
	if patch.VenueID != nil {
		venueID = *patch.VenueID
	}
	start, end := cur.StartTime, cur.EndTime
	if patch.Start != nil {
		start = *patch.Start
	}
	if patch.End != nil {
		end = *patch.End
	}
	now := e.now()
	if patch.moves() {
		if err := validateWindow(start, end, now, true); err != nil {
			return nil, err
		}
	}

	apply := func(tx store.Tx) error {
		r, err := tx.Rehearsal(ctx, rehearsalID)
		if err != nil {
			return wrap(err, "rehearsal")
		}
		if r.Status != model.StatusScheduled {
			return invalidState("only scheduled rehearsals can be edited")
		}
		if patch.moves() {
			if venueID != r.VenueID {
				if _, err := tx.Venue(ctx, venueID); err != nil {
					return wrap(err, "venue")
				}
			}
			free, ids, err := checkAvailable(ctx, tx, venueID, start, end, r.ID)
			if err != nil {
				return err
			}
			if !free {
				return conflict(ids)
			}
			r.VenueID = venueID
			r.StartTime = start
			r.EndTime = end
		}
		if patch.Title != nil {
			r.Title = *patch.Title
		}
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		r.UpdatedAt = now
		if err := tx.UpdateRehearsal(ctx, r); err != nil {
			return err
		}
		cur = r
		return nil
	}

	if patch.moves() {
		err = e.store.UpdateVenue(ctx, venueID, apply)
	} else {
		err = e.store.Update(ctx, apply)
	}
	if err != nil {
		return nil, wrap(err, "rehearsal")
	}
	return cur, nil
}

// CancelRehearsal is the deletion-equivalent: the rehearsal stays on record
// but stops conflicting, and attendance flips to the canceled marker.
// Canceling an already-canceled rehearsal is a successful no-op.
func (e *Engine) CancelRehearsal(ctx context.Context, principal, rehearsalID string) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	cur, err := e.getRehearsal(ctx, rehearsalID)
	if err != nil {
		return err
	}
	role, member, err := e.gate.RoleOf(ctx, principal, cur.BandID)
	if err != nil {
		return wrap(err, "band")
	}
	if !member {
		return notAuthorized("not a member of this band")
	}
	if role != model.RoleLeader && cur.CreatedBy != principal {
		return notAuthorized("only the creator or a band leader may cancel a rehearsal")
	}

	now := e.now()
	canceled := false
	err = e.store.Update(ctx, func(tx store.Tx) error {
		r, err := tx.Rehearsal(ctx, rehearsalID)
		if err != nil {
			return wrap(err, "rehearsal")
		}
		if r.Status == model.StatusCanceled {
			return nil
		}
		if err := transition(r, model.StatusCanceled, now); err != nil {
			return err
		}
		if err := tx.UpdateRehearsal(ctx, r); err != nil {
			return err
		}
		canceled = true
		return cancelAttendance(ctx, tx, rehearsalID)
	})
	if err != nil {
		return wrap(err, "rehearsal")
	}

	if canceled {
		e.log.Info().Str("rehearsal_id", rehearsalID).Msg("rehearsal canceled")
		e.notifier.Publish(notify.Event{
			Kind: notify.RehearsalCanceled, RehearsalID: rehearsalID,
			BandID: cur.BandID, VenueID: cur.VenueID, At: now,
		})
	}
	return nil
}

// CompleteRehearsal marks a scheduled rehearsal completed. Any band member
// may do it explicitly; the background sweep applies the same transition
// once endTime has passed. Completing twice is a no-op.
func (e *Engine) CompleteRehearsal(ctx context.Context, principal, rehearsalID string) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	cur, err := e.getRehearsal(ctx, rehearsalID)
	if err != nil {
		return err
	}
	ok, err := e.gate.IsMember(ctx, principal, cur.BandID)
	if err != nil {
		return wrap(err, "band")
	}
	if !ok {
		return notAuthorized("not a member of this band")
	}

	now := e.now()
	err = e.store.Update(ctx, func(tx store.Tx) error {
		r, err := tx.Rehearsal(ctx, rehearsalID)
		if err != nil {
			return wrap(err, "rehearsal")
		}
		if r.Status == model.StatusCompleted {
			return nil
		}
		if err := transition(r, model.StatusCompleted, now); err != nil {
			return err
		}
		return tx.UpdateRehearsal(ctx, r)
	})
	if err != nil {
		return wrap(err, "rehearsal")
	}
	e.notifier.Publish(notify.Event{
		Kind: notify.RehearsalCompleted, RehearsalID: rehearsalID,
		BandID: cur.BandID, VenueID: cur.VenueID, At: now,
	})
	return nil
}

// RespondToRehearsal records the principal's own attendance answer.
func (e *Engine) RespondToRehearsal(ctx context.Context, principal, rehearsalID string, response model.Response) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if response != model.ResponseAttending && response != model.ResponseDeclined {
		return invalidInput("response must be attending or declined")
	}

	now := e.now()
	var bandID string
	err := e.store.Update(ctx, func(tx store.Tx) error {
		r, err := tx.Rehearsal(ctx, rehearsalID)
		if err != nil {
			return wrap(err, "rehearsal")
		}
		bandID = r.BandID
		_, member, err := tx.RoleOf(ctx, principal, r.BandID)
		if err != nil {
			return err
		}
		if !member {
			return notAuthorized("not a member of this band")
		}
		if r.Status != model.StatusScheduled {
			return invalidState("rehearsal is " + string(r.Status) + ", responses are closed")
		}
		return respond(ctx, tx, rehearsalID, principal, response, now)
	})
	if err != nil {
		return wrap(err, "rehearsal")
	}

	e.notifier.Publish(notify.Event{
		Kind: notify.AttendanceChanged, RehearsalID: rehearsalID,
		BandID: bandID, MemberID: principal, At: now,
	})
	return nil
}

// ListFilter narrows ListRehearsals. BandID empty means every band the
// principal belongs to.
type ListFilter struct {
	BandID string
	From   time.Time
	To     time.Time
	Status model.RehearsalStatus
}

func (e *Engine) ListRehearsals(ctx context.Context, principal string, f ListFilter) ([]model.Rehearsal, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if f.Status != "" && !f.Status.Valid() {
		return nil, invalidInput("unknown status " + string(f.Status))
	}

	var bandIDs []string
	if f.BandID != "" {
		ok, err := e.gate.IsMember(ctx, principal, f.BandID)
		if err != nil {
			return nil, wrap(err, "band")
		}
		if !ok {
			return nil, notAuthorized("not a member of this band")
		}
		bandIDs = []string{f.BandID}
	}

	var out []model.Rehearsal
	err := e.store.View(ctx, func(tx store.Tx) error {
		if bandIDs == nil {
			bands, err := tx.BandsForMember(ctx, principal)
			if err != nil {
				return err
			}
			for _, b := range bands {
				bandIDs = append(bandIDs, b.ID)
			}
		}
		if len(bandIDs) == 0 {
			return nil
		}
		var err error
		out, err = tx.ListRehearsals(ctx, store.RehearsalFilter{
			BandIDs: bandIDs,
			From:    f.From,
			To:      f.To,
			Status:  f.Status,
		})
		return err
	})
	if err != nil {
		return nil, wrap(err, "rehearsal")
	}
	return out, nil
}

func (e *Engine) GetRehearsal(ctx context.Context, principal, rehearsalID string) (*model.Rehearsal, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	r, err := e.getRehearsal(ctx, rehearsalID)
	if err != nil {
		return nil, err
	}
	ok, err := e.gate.IsMember(ctx, principal, r.BandID)
	if err != nil {
		return nil, wrap(err, "band")
	}
	if !ok {
		return nil, notAuthorized("not a member of this band")
	}
	return r, nil
}

// Summary reports attending/declined/pending counts plus the raw records.
// After cancellation answered records carry the terminal canceled marker and
// count toward none of the three buckets.
func (e *Engine) Summary(ctx context.Context, principal, rehearsalID string) (AttendanceSummary, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	r, err := e.getRehearsal(ctx, rehearsalID)
	if err != nil {
		return AttendanceSummary{}, err
	}
	ok, err := e.gate.IsMember(ctx, principal, r.BandID)
	if err != nil {
		return AttendanceSummary{}, wrap(err, "band")
	}
	if !ok {
		return AttendanceSummary{}, notAuthorized("not a member of this band")
	}

	var records []model.AttendanceRecord
	err = e.store.View(ctx, func(tx store.Tx) error {
		var err error
		records, err = tx.Attendance(ctx, rehearsalID)
		return err
	})
	if err != nil {
		return AttendanceSummary{}, wrap(err, "rehearsal")
	}
	return summarize(records), nil
}

func (e *Engine) getRehearsal(ctx context.Context, id string) (*model.Rehearsal, error) {
	var r *model.Rehearsal
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.Rehearsal(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap(err, "rehearsal")
	}
	return r, nil
}
