package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"rehearsal-scheduler-api/internal/engine"
	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
	"rehearsal-scheduler-api/internal/store/memory"
)

type fixture struct {
	eng   *engine.Engine
	store *memory.Store
	clock *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng := engine.New(st, engine.StoreGate{Store: st}, engine.Config{Clock: clk.Now})
	return &fixture{eng: eng, store: st, clock: clk}
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	err := f.store.Update(context.Background(), func(tx store.Tx) error {
		return tx.CreateUser(context.Background(), &model.User{
			ID:    id,
			Email: fmt.Sprintf("%s-%s@test.com", name, id[:8]),
			Name:  name,
		})
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func (f *fixture) band(t *testing.T, leader string, members ...string) string {
	t.Helper()
	id := uuid.New().String()
	b := &model.Band{
		ID:        id,
		Name:      "band-" + id[:8],
		CreatedBy: leader,
		Members:   []model.Membership{{BandID: id, MemberID: leader, Role: model.RoleLeader}},
	}
	for _, m := range members {
		b.Members = append(b.Members, model.Membership{BandID: id, MemberID: m, Role: model.RoleMember})
	}
	err := f.store.Update(context.Background(), func(tx store.Tx) error {
		return tx.CreateBand(context.Background(), b)
	})
	if err != nil {
		t.Fatalf("seed band: %v", err)
	}
	return id
}

func (f *fixture) venue(t *testing.T) string {
	t.Helper()
	id := uuid.New().String()
	err := f.store.Update(context.Background(), func(tx store.Tx) error {
		return tx.CreateVenue(context.Background(), &model.Venue{
			ID:      id,
			Name:    "venue-" + id[:8],
			Address: "1 Test St",
		})
	})
	if err != nil {
		t.Fatalf("seed venue: %v", err)
	}
	return id
}

// at returns a time hoursFromNow after the fake clock's now.
func (f *fixture) at(hoursFromNow int) time.Time {
	return f.clock.Now().Add(time.Duration(hoursFromNow) * time.Hour)
}

func (f *fixture) schedule(t *testing.T, principal, bandID, venueID string, start, end time.Time) *model.Rehearsal {
	t.Helper()
	r, err := f.eng.ScheduleRehearsal(context.Background(), principal, engine.ScheduleInput{
		BandID:  bandID,
		VenueID: venueID,
		Title:   "Practice",
		Start:   start,
		End:     end,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return r
}

func wantCode(t *testing.T, err error, code engine.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", code)
	}
	if got := engine.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

// ----- scheduling -----

func TestScheduleRehearsal(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band := f.band(t, m1, m2)
	venue := f.venue(t)

	r, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID:      band,
		VenueID:     venue,
		Title:       "Practice",
		Description: "full set",
		Start:       f.at(6),
		End:         f.at(8),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if r.Status != model.StatusScheduled {
		t.Errorf("status: got %s", r.Status)
	}
	if r.CreatedBy != m1 {
		t.Errorf("createdBy: got %s", r.CreatedBy)
	}

	// one pending record per member at creation time
	sum, err := f.eng.Summary(context.Background(), m2, r.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Pending != 2 || sum.Attending != 0 || sum.Declined != 0 {
		t.Errorf("expected 2 pending, got %+v", sum)
	}
}

func TestScheduleValidation(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	tests := []struct {
		name string
		in   engine.ScheduleInput
	}{
		{"empty title", engine.ScheduleInput{BandID: band, VenueID: venue, Start: f.at(1), End: f.at(2)}},
		{"missing times", engine.ScheduleInput{BandID: band, VenueID: venue, Title: "X"}},
		{"end before start", engine.ScheduleInput{BandID: band, VenueID: venue, Title: "X", Start: f.at(2), End: f.at(1)}},
		{"end equals start", engine.ScheduleInput{BandID: band, VenueID: venue, Title: "X", Start: f.at(1), End: f.at(1)}},
		{"past start", engine.ScheduleInput{BandID: band, VenueID: venue, Title: "X", Start: f.at(-2), End: f.at(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.ScheduleRehearsal(context.Background(), m1, tt.in)
			wantCode(t, err, engine.CodeInvalidInput)
		})
	}
}

func TestScheduleAuthorization(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	outsider := f.user(t, "outsider")
	band := f.band(t, m1)
	venue := f.venue(t)

	_, err := f.eng.ScheduleRehearsal(context.Background(), outsider, engine.ScheduleInput{
		BandID: band, VenueID: venue, Title: "X", Start: f.at(1), End: f.at(2),
	})
	wantCode(t, err, engine.CodeNotAuthorized)

	_, err = f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: uuid.New().String(), VenueID: venue, Title: "X", Start: f.at(1), End: f.at(2),
	})
	wantCode(t, err, engine.CodeNotFound)

	_, err = f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: uuid.New().String(), Title: "X", Start: f.at(1), End: f.at(2),
	})
	wantCode(t, err, engine.CodeNotFound)
}

func TestOverlapPrevention(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	first := f.schedule(t, m1, band, venue, f.at(6), f.at(8))

	// exact same slot
	_, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: venue, Title: "Overlap", Start: f.at(6), End: f.at(8),
	})
	wantCode(t, err, engine.CodeConflict)

	// partial overlap, and the error names the booking in the way
	var e *engine.Error
	_, err = f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: venue, Title: "Partial", Start: f.at(7), End: f.at(9),
	})
	wantCode(t, err, engine.CodeConflict)
	if !asEngineError(err, &e) || len(e.ConflictingIDs) != 1 || e.ConflictingIDs[0] != first.ID {
		t.Errorf("expected conflicting id %s, got %+v", first.ID, e)
	}

	// back-to-back shares a boundary, not a conflict
	if _, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: venue, Title: "Adjacent", Start: f.at(8), End: f.at(10),
	}); err != nil {
		t.Fatalf("adjacent should not conflict: %v", err)
	}
}

func TestDifferentVenuesNoConflict(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	v1 := f.venue(t)
	v2 := f.venue(t)

	f.schedule(t, m1, band, v1, f.at(6), f.at(8))
	if _, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: v2, Title: "Elsewhere", Start: f.at(6), End: f.at(8),
	}); err != nil {
		t.Fatalf("different venue should not conflict: %v", err)
	}
}

func TestCanceledRehearsalFreesSlot(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: venue, Title: "Replacement", Start: f.at(6), End: f.at(8),
	}); err != nil {
		t.Fatalf("canceled rehearsal should not conflict: %v", err)
	}
}

// ----- concurrent booking -----

func TestConcurrentScheduling(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
				BandID:  band,
				VenueID: venue,
				Title:   fmt.Sprintf("concurrent-%d", i),
				Start:   f.at(6),
				End:     f.at(8),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case engine.CodeOf(err) == engine.CodeConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if conflicts != n-1 {
		t.Errorf("expected %d conflicts, got %d", n-1, conflicts)
	}
}

// ----- updates -----

func TestUpdateRehearsal(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	before := r.UpdatedAt

	f.clock.Advance(time.Minute)
	title := "Updated Title"
	got, err := f.eng.UpdateRehearsal(context.Background(), m1, r.ID, engine.UpdatePatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Updated Title" {
		t.Errorf("title: got %s", got.Title)
	}
	if !got.UpdatedAt.After(before) {
		t.Error("updatedAt not refreshed")
	}
}

func TestUpdateConflict(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	second := f.schedule(t, m1, band, venue, f.at(10), f.at(12))

	// move second into first's slot
	start, end := f.at(7), f.at(9)
	_, err := f.eng.UpdateRehearsal(context.Background(), m1, second.ID, engine.UpdatePatch{Start: &start, End: &end})
	wantCode(t, err, engine.CodeConflict)

	// shrinking within its own window only excludes itself
	start, end = f.at(10), f.at(11)
	if _, err := f.eng.UpdateRehearsal(context.Background(), m1, second.ID, engine.UpdatePatch{Start: &start, End: &end}); err != nil {
		t.Fatalf("resize within own slot should pass: %v", err)
	}
}

func TestUpdateRoleGate(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band := f.band(t, m1, m2)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))

	// a plain member may edit the title
	title := "New name"
	if _, err := f.eng.UpdateRehearsal(context.Background(), m2, r.ID, engine.UpdatePatch{Title: &title}); err != nil {
		t.Fatalf("member title edit: %v", err)
	}

	// but not move the rehearsal
	start, end := f.at(20), f.at(22)
	_, err := f.eng.UpdateRehearsal(context.Background(), m2, r.ID, engine.UpdatePatch{Start: &start, End: &end})
	wantCode(t, err, engine.CodeNotAuthorized)
}

func TestUpdateTerminalStates(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)
	title := "X"

	canceled := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.CancelRehearsal(context.Background(), m1, canceled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.eng.UpdateRehearsal(context.Background(), m1, canceled.ID, engine.UpdatePatch{Title: &title})
	wantCode(t, err, engine.CodeInvalidState)

	completed := f.schedule(t, m1, band, venue, f.at(10), f.at(12))
	if err := f.eng.CompleteRehearsal(context.Background(), m1, completed.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = f.eng.UpdateRehearsal(context.Background(), m1, completed.ID, engine.UpdatePatch{Title: &title})
	wantCode(t, err, engine.CodeInvalidState)
}

func TestUpdateNotFound(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	f.band(t, m1)
	title := "X"

	_, err := f.eng.UpdateRehearsal(context.Background(), m1, uuid.New().String(), engine.UpdatePatch{Title: &title})
	wantCode(t, err, engine.CodeNotFound)
}

// ----- lifecycle -----

func TestCancelIdempotent(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("second cancel should be a no-op, got: %v", err)
	}
	got, err := f.eng.GetRehearsal(context.Background(), m1, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusCanceled {
		t.Errorf("status: got %s", got.Status)
	}
}

func TestCancelCompleted(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.CompleteRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	wantCode(t, f.eng.CancelRehearsal(context.Background(), m1, r.ID), engine.CodeInvalidState)
}

func TestCancelRoleGate(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band := f.band(t, m1, m2)
	venue := f.venue(t)

	// created by the plain member; the leader may still cancel it
	r := f.schedule(t, m2, band, venue, f.at(6), f.at(8))
	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("leader cancel: %v", err)
	}

	// a plain member cannot cancel someone else's rehearsal
	r2 := f.schedule(t, m1, band, venue, f.at(10), f.at(12))
	wantCode(t, f.eng.CancelRehearsal(context.Background(), m2, r2.ID), engine.CodeNotAuthorized)
}

func TestCompleteIdempotent(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.CompleteRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.eng.CompleteRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("second complete should be a no-op, got: %v", err)
	}
	wantCode(t, f.eng.CompleteRehearsal(context.Background(), f.user(t, "x"), r.ID), engine.CodeNotAuthorized)
}

// ----- attendance -----

func TestRespond(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band := f.band(t, m1, m2)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.RespondToRehearsal(context.Background(), m2, r.ID, model.ResponseAttending); err != nil {
		t.Fatalf("respond: %v", err)
	}

	sum, err := f.eng.Summary(context.Background(), m1, r.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Attending != 1 || sum.Pending != 1 {
		t.Errorf("expected 1 attending 1 pending, got %+v", sum)
	}
	for _, rec := range sum.Records {
		if rec.MemberID == m2 && rec.RespondedAt == nil {
			t.Error("respondedAt not set")
		}
	}

	// changing your answer upserts
	if err := f.eng.RespondToRehearsal(context.Background(), m2, r.ID, model.ResponseDeclined); err != nil {
		t.Fatalf("re-respond: %v", err)
	}
	sum, _ = f.eng.Summary(context.Background(), m1, r.ID)
	if sum.Attending != 0 || sum.Declined != 1 {
		t.Errorf("expected declined after change, got %+v", sum)
	}
}

func TestRespondErrors(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	outsider := f.user(t, "outsider")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))

	wantCode(t, f.eng.RespondToRehearsal(context.Background(), m1, r.ID, "maybe"), engine.CodeInvalidInput)
	wantCode(t, f.eng.RespondToRehearsal(context.Background(), outsider, r.ID, model.ResponseAttending), engine.CodeNotAuthorized)
	wantCode(t, f.eng.RespondToRehearsal(context.Background(), m1, uuid.New().String(), model.ResponseAttending), engine.CodeNotFound)

	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	wantCode(t, f.eng.RespondToRehearsal(context.Background(), m1, r.ID, model.ResponseAttending), engine.CodeInvalidState)
}

func TestCancelResetsAttendance(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band := f.band(t, m1, m2)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))
	if err := f.eng.RespondToRehearsal(context.Background(), m2, r.ID, model.ResponseAttending); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sum, err := f.eng.Summary(context.Background(), m1, r.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Attending != 0 || sum.Declined != 0 {
		t.Errorf("expected zero attending/declined after cancel, got %+v", sum)
	}
	// history kept: the record exists with the canceled marker
	for _, rec := range sum.Records {
		if rec.MemberID == m2 && rec.Response != model.ResponseCanceled {
			t.Errorf("expected canceled marker for %s, got %s", m2, rec.Response)
		}
	}
}

// ----- listing -----

func TestListRehearsals(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band1 := f.band(t, m1)
	band2 := f.band(t, m2)
	venue := f.venue(t)

	f.schedule(t, m1, band1, venue, f.at(6), f.at(8))
	f.schedule(t, m2, band2, venue, f.at(10), f.at(12))

	// only bands the principal belongs to
	got, err := f.eng.ListRehearsals(context.Background(), m1, engine.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].BandID != band1 {
		t.Errorf("expected only band1 rehearsals, got %d", len(got))
	}

	// asking for someone else's band is refused
	_, err = f.eng.ListRehearsals(context.Background(), m1, engine.ListFilter{BandID: band2})
	wantCode(t, err, engine.CodeNotAuthorized)
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	early := f.schedule(t, m1, band, venue, f.at(2), f.at(3))
	late := f.schedule(t, m1, band, venue, f.at(20), f.at(22))
	if err := f.eng.CancelRehearsal(context.Background(), m1, early.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := f.eng.ListRehearsals(context.Background(), m1, engine.ListFilter{Status: model.StatusScheduled})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != late.ID {
		t.Errorf("status filter: expected only the scheduled one")
	}

	got, err = f.eng.ListRehearsals(context.Background(), m1, engine.ListFilter{From: f.at(19), To: f.at(23)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != late.ID {
		t.Errorf("range filter: expected only the late one")
	}

	_, err = f.eng.ListRehearsals(context.Background(), m1, engine.ListFilter{Status: "bogus"})
	wantCode(t, err, engine.CodeInvalidInput)
}

func TestGetRehearsal(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	outsider := f.user(t, "outsider")
	band := f.band(t, m1)
	venue := f.venue(t)

	r := f.schedule(t, m1, band, venue, f.at(6), f.at(8))

	_, err := f.eng.GetRehearsal(context.Background(), outsider, r.ID)
	wantCode(t, err, engine.CodeNotAuthorized)

	_, err = f.eng.GetRehearsal(context.Background(), m1, uuid.New().String())
	wantCode(t, err, engine.CodeNotFound)
}

// ----- sweep -----

func TestSweepCompletesPastRehearsals(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	past := f.schedule(t, m1, band, venue, f.at(1), f.at(2))
	future := f.schedule(t, m1, band, venue, f.at(10), f.at(12))
	canceled := f.schedule(t, m1, band, venue, f.at(3), f.at(4))
	if err := f.eng.CancelRehearsal(context.Background(), m1, canceled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	f.clock.Advance(5 * time.Hour)
	n, err := f.eng.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 completion, got %d", n)
	}

	got, _ := f.eng.GetRehearsal(context.Background(), m1, past.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("past rehearsal: got %s", got.Status)
	}
	got, _ = f.eng.GetRehearsal(context.Background(), m1, future.ID)
	if got.Status != model.StatusScheduled {
		t.Errorf("future rehearsal: got %s", got.Status)
	}
	got, _ = f.eng.GetRehearsal(context.Background(), m1, canceled.ID)
	if got.Status != model.StatusCanceled {
		t.Errorf("canceled rehearsal must stay canceled, got %s", got.Status)
	}
}

// ----- operation deadline -----

func TestOperationDeadline(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	band := f.band(t, m1)
	venue := f.venue(t)

	// a timeout the store can never meet; the caller gets a retryable
	// unavailable, never a partial write
	eng := engine.New(f.store, engine.StoreGate{Store: f.store}, engine.Config{
		Clock:   f.clock.Now,
		Timeout: time.Nanosecond,
	})
	_, err := eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: venue, Title: "Practice", Start: f.at(6), End: f.at(8),
	})
	wantCode(t, err, engine.CodeUnavailable)
	if !engine.IsRetryable(err) {
		t.Error("unavailable must be retryable")
	}

	got, err := f.eng.ListRehearsals(context.Background(), m1, engine.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("timed-out schedule left %d rehearsals behind", len(got))
	}
}

// ----- end-to-end scenario -----

func TestBandSchedulingScenario(t *testing.T) {
	f := setup(t)
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	band := f.band(t, m1, m2)
	v1 := f.venue(t)

	r, err := f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: v1, Title: "Practice",
		Start: f.at(6), End: f.at(8),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if r.Status != model.StatusScheduled {
		t.Fatalf("status: %s", r.Status)
	}
	sum, _ := f.eng.Summary(context.Background(), m1, r.ID)
	if sum.Pending != 2 {
		t.Fatalf("expected 2 pending records, got %d", sum.Pending)
	}

	_, err = f.eng.ScheduleRehearsal(context.Background(), m1, engine.ScheduleInput{
		BandID: band, VenueID: v1, Title: "Clash",
		Start: f.at(7), End: f.at(9),
	})
	var e *engine.Error
	wantCode(t, err, engine.CodeConflict)
	if !asEngineError(err, &e) || len(e.ConflictingIDs) != 1 || e.ConflictingIDs[0] != r.ID {
		t.Fatalf("conflict should list %s, got %+v", r.ID, e)
	}

	if err := f.eng.RespondToRehearsal(context.Background(), m2, r.ID, model.ResponseAttending); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if err := f.eng.CancelRehearsal(context.Background(), m1, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sum, _ = f.eng.Summary(context.Background(), m1, r.ID)
	for _, rec := range sum.Records {
		if rec.MemberID == m2 && rec.Response == model.ResponseAttending {
			t.Error("m2's record still attending after cancel")
		}
	}
}

func asEngineError(err error, target **engine.Error) bool {
	return errors.As(err, target)
}
