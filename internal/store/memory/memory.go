// Package memory is an in-process store.Store. Writes are staged per
// transaction and applied in one step under the write lock, so a failed
// transaction leaves nothing behind. Venue scheduling scopes are one mutex
// per venue: same-venue writers serialize, different venues run in
// parallel. Backs the test suite and the server's database-less dev mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

type state struct {
	users       map[string]*model.User
	emails      map[string]string // email -> user id
	tokens      map[string]*store.RefreshToken
	tokenByHash map[string]string // hash -> token id
	bands       map[string]*model.Band
	memberships map[string]map[string]model.Membership // band -> member
	venues      map[string]*model.Venue
	rehearsals  map[string]*model.Rehearsal
	byVenue     map[string][]string // rehearsal ids ordered by start time
	attendance  map[string]map[string]*model.AttendanceRecord
}

type Store struct {
	mu sync.RWMutex
	st state

	lmu        sync.Mutex
	venueLocks map[string]*sync.Mutex
}

var _ store.Store = (*Store)(nil)
var _ store.Tx = (*tx)(nil)

func New() *Store {
	return &Store{
		st: state{
			users:       make(map[string]*model.User),
			emails:      make(map[string]string),
			tokens:      make(map[string]*store.RefreshToken),
			tokenByHash: make(map[string]string),
			bands:       make(map[string]*model.Band),
			memberships: make(map[string]map[string]model.Membership),
			venues:      make(map[string]*model.Venue),
			rehearsals:  make(map[string]*model.Rehearsal),
			byVenue:     make(map[string][]string),
			attendance:  make(map[string]map[string]*model.AttendanceRecord),
		},
		venueLocks: make(map[string]*sync.Mutex),
	}
}

// tx stages writes as check+apply pairs. Commit runs every check first,
// then every apply, all under one write-lock hold: apply functions cannot
// fail, which is what makes the transaction atomic.
type tx struct {
	s      *Store
	checks []func(*state) error
	stage  []func(*state)
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&tx{s: s})
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	t := &tx{s: s}
	if err := fn(t); err != nil {
		return err
	}
	return t.commit(ctx)
}

func (s *Store) UpdateVenue(ctx context.Context, venueID string, fn func(store.Tx) error) error {
	l := s.venueLock(venueID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Update(ctx, fn)
}

func (s *Store) venueLock(venueID string) *sync.Mutex {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	l, ok := s.venueLocks[venueID]
	if !ok {
		l = &sync.Mutex{}
		s.venueLocks[venueID] = l
	}
	return l
}

func (t *tx) commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, check := range t.checks {
		if err := check(&t.s.st); err != nil {
			return err
		}
	}
	for _, apply := range t.stage {
		apply(&t.s.st)
	}
	return nil
}

// ----- users -----

func (t *tx) CreateUser(_ context.Context, u *model.User) error {
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	t.checks = append(t.checks, func(st *state) error {
		if _, taken := st.emails[cp.Email]; taken {
			return store.ErrConflict
		}
		return nil
	})
	t.stage = append(t.stage, func(st *state) {
		st.users[cp.ID] = &cp
		st.emails[cp.Email] = cp.ID
	})
	return nil
}

func (t *tx) UserByEmail(_ context.Context, email string) (*model.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	id, ok := t.s.st.emails[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t.s.st.users[id]
	return &cp, nil
}

func (t *tx) UserByID(_ context.Context, id string) (*model.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	u, ok := t.s.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ----- refresh tokens -----

func (t *tx) CreateRefreshToken(_ context.Context, rt *store.RefreshToken) error {
	cp := *rt
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	t.stage = append(t.stage, func(st *state) {
		st.tokens[cp.ID] = &cp
		st.tokenByHash[cp.TokenHash] = cp.ID
	})
	return nil
}

func (t *tx) RefreshTokenByHash(_ context.Context, hash string) (*store.RefreshToken, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	id, ok := t.s.st.tokenByHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t.s.st.tokens[id]
	return &cp, nil
}

func (t *tx) RevokeRefreshToken(_ context.Context, id, replacedBy string) error {
	t.checks = append(t.checks, func(st *state) error {
		if _, ok := st.tokens[id]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
	t.stage = append(t.stage, func(st *state) {
		rt := st.tokens[id]
		rt.Revoked = true
		if replacedBy != "" {
			rb := replacedBy
			rt.ReplacedBy = &rb
		}
	})
	return nil
}

func (t *tx) RevokeAllRefreshTokens(_ context.Context, userID string) error {
	t.stage = append(t.stage, func(st *state) {
		for _, rt := range st.tokens {
			if rt.UserID == userID {
				rt.Revoked = true
			}
		}
	})
	return nil
}

// ----- bands -----

func (t *tx) CreateBand(_ context.Context, b *model.Band) error {
	cp := *b
	members := make([]model.Membership, len(b.Members))
	copy(members, b.Members)
	cp.Members = nil
	t.stage = append(t.stage, func(st *state) {
		st.bands[cp.ID] = &cp
		if st.memberships[cp.ID] == nil {
			st.memberships[cp.ID] = make(map[string]model.Membership)
		}
		for _, m := range members {
			st.memberships[cp.ID][m.MemberID] = m
		}
	})
	return nil
}

func (t *tx) Band(_ context.Context, id string) (*model.Band, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.st.bands[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	cp.Members = t.membersLocked(id)
	return &cp, nil
}

func (t *tx) membersLocked(bandID string) []model.Membership {
	var out []model.Membership
	for _, m := range t.s.st.memberships[bandID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}

func (t *tx) BandsForMember(_ context.Context, memberID string) ([]model.Band, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []model.Band
	for bandID, members := range t.s.st.memberships {
		if _, ok := members[memberID]; ok {
			cp := *t.s.st.bands[bandID]
			cp.Members = t.membersLocked(bandID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) Members(_ context.Context, bandID string) ([]model.Membership, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.membersLocked(bandID), nil
}

func (t *tx) RoleOf(_ context.Context, memberID, bandID string) (model.Role, bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	m, ok := t.s.st.memberships[bandID][memberID]
	if !ok {
		return "", false, nil
	}
	return m.Role, true, nil
}

func (t *tx) PutMembership(_ context.Context, m *model.Membership) error {
	cp := *m
	t.checks = append(t.checks, func(st *state) error {
		if _, ok := st.bands[cp.BandID]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
	t.stage = append(t.stage, func(st *state) {
		if st.memberships[cp.BandID] == nil {
			st.memberships[cp.BandID] = make(map[string]model.Membership)
		}
		st.memberships[cp.BandID][cp.MemberID] = cp
	})
	return nil
}

func (t *tx) DeleteMembership(_ context.Context, bandID, memberID string) error {
	t.stage = append(t.stage, func(st *state) {
		delete(st.memberships[bandID], memberID)
	})
	return nil
}

// ----- venues -----

func (t *tx) CreateVenue(_ context.Context, v *model.Venue) error {
	cp := *v
	t.stage = append(t.stage, func(st *state) {
		st.venues[cp.ID] = &cp
	})
	return nil
}

func (t *tx) Venue(_ context.Context, id string) (*model.Venue, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	v, ok := t.s.st.venues[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (t *tx) Venues(_ context.Context) ([]model.Venue, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]model.Venue, 0, len(t.s.st.venues))
	for _, v := range t.s.st.venues {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ----- rehearsals -----

func (t *tx) InsertRehearsal(_ context.Context, r *model.Rehearsal) error {
	cp := *r
	t.checks = append(t.checks, func(st *state) error {
		if _, exists := st.rehearsals[cp.ID]; exists {
			return store.ErrConflict
		}
		// exclusion backstop, same as the scheduled-overlap constraint
		// in the postgres schema
		if cp.Status == model.StatusScheduled && len(overlapping(st, cp.VenueID, cp.StartTime, cp.EndTime, cp.ID)) > 0 {
			return store.ErrConflict
		}
		return nil
	})
	t.stage = append(t.stage, func(st *state) {
		st.rehearsals[cp.ID] = &cp
		insertByVenue(st, cp.VenueID, cp.ID)
	})
	return nil
}

func (t *tx) Rehearsal(_ context.Context, id string) (*model.Rehearsal, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.st.rehearsals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *tx) UpdateRehearsal(_ context.Context, r *model.Rehearsal) error {
	cp := *r
	t.checks = append(t.checks, func(st *state) error {
		old, ok := st.rehearsals[cp.ID]
		if !ok {
			return store.ErrNotFound
		}
		// a row that went terminal after this tx read it stays terminal
		if old.Status.Terminal() && old.Status != cp.Status {
			return store.ErrStaleState
		}
		if cp.Status == model.StatusScheduled && len(overlapping(st, cp.VenueID, cp.StartTime, cp.EndTime, cp.ID)) > 0 {
			return store.ErrConflict
		}
		return nil
	})
	t.stage = append(t.stage, func(st *state) {
		old := st.rehearsals[cp.ID]
		removeByVenue(st, old.VenueID, cp.ID)
		st.rehearsals[cp.ID] = &cp
		insertByVenue(st, cp.VenueID, cp.ID)
	})
	return nil
}

func (t *tx) Overlapping(_ context.Context, venueID string, start, end time.Time, excludeID string) ([]string, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return overlapping(&t.s.st, venueID, start, end, excludeID), nil
}

// overlapping walks the venue's start-ordered index. Candidates are bounded
// by the first entry starting at or after end, so the scan never leaves the
// venue and never visits later bookings.
func overlapping(st *state, venueID string, start, end time.Time, excludeID string) []string {
	ids := st.byVenue[venueID]
	bound := sort.Search(len(ids), func(i int) bool {
		return !st.rehearsals[ids[i]].StartTime.Before(end)
	})
	var out []string
	for _, id := range ids[:bound] {
		r := st.rehearsals[id]
		if r.ID == excludeID || r.Status != model.StatusScheduled {
			continue
		}
		if r.Overlaps(start, end) {
			out = append(out, r.ID)
		}
	}
	return out
}

func insertByVenue(st *state, venueID, id string) {
	ids := st.byVenue[venueID]
	at := sort.Search(len(ids), func(i int) bool {
		return st.rehearsals[ids[i]].StartTime.After(st.rehearsals[id].StartTime)
	})
	ids = append(ids, "")
	copy(ids[at+1:], ids[at:])
	ids[at] = id
	st.byVenue[venueID] = ids
}

func removeByVenue(st *state, venueID, id string) {
	ids := st.byVenue[venueID]
	for i, v := range ids {
		if v == id {
			st.byVenue[venueID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (t *tx) ListRehearsals(_ context.Context, f store.RehearsalFilter) ([]model.Rehearsal, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	bandSet := make(map[string]bool, len(f.BandIDs))
	for _, id := range f.BandIDs {
		bandSet[id] = true
	}
	var out []model.Rehearsal
	for _, r := range t.s.st.rehearsals {
		if len(bandSet) > 0 && !bandSet[r.BandID] {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && r.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.EndTime.After(f.To) {
			continue
		}
		if !f.EndBefore.IsZero() && !r.EndTime.Before(f.EndBefore) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ----- attendance -----

func (t *tx) InsertAttendance(_ context.Context, rec *model.AttendanceRecord) error {
	cp := *rec
	t.checks = append(t.checks, func(st *state) error {
		if _, exists := st.attendance[cp.RehearsalID][cp.MemberID]; exists {
			return store.ErrConflict
		}
		return nil
	})
	t.stage = append(t.stage, func(st *state) {
		putAttendance(st, &cp)
	})
	return nil
}

func (t *tx) UpsertAttendance(_ context.Context, rec *model.AttendanceRecord) error {
	cp := *rec
	t.stage = append(t.stage, func(st *state) {
		putAttendance(st, &cp)
	})
	return nil
}

func putAttendance(st *state, rec *model.AttendanceRecord) {
	if st.attendance[rec.RehearsalID] == nil {
		st.attendance[rec.RehearsalID] = make(map[string]*model.AttendanceRecord)
	}
	st.attendance[rec.RehearsalID][rec.MemberID] = rec
}

func (t *tx) Attendance(_ context.Context, rehearsalID string) ([]model.AttendanceRecord, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []model.AttendanceRecord
	for _, rec := range t.s.st.attendance[rehearsalID] {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (t *tx) AttendanceFor(_ context.Context, rehearsalID, memberID string) (*model.AttendanceRecord, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	rec, ok := t.s.st.attendance[rehearsalID][memberID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (t *tx) MarkAttendanceCanceled(_ context.Context, rehearsalID string) error {
	t.stage = append(t.stage, func(st *state) {
		for _, rec := range st.attendance[rehearsalID] {
			if rec.Response != model.ResponsePending {
				rec.Response = model.ResponseCanceled
			}
		}
	})
	return nil
}
