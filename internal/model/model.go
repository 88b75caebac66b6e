package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleLeader || r == RoleMember
}

type Band struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Members   []Membership
}

type Membership struct {
	BandID   string
	MemberID string
	Role     Role
	JoinedAt time.Time
}

type Venue struct {
	ID        string
	Name      string
	Address   string
	Capacity  int // 0 = unknown
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RehearsalStatus is a closed set. Transitions outside the table below are
// rejected; rehearsals are never hard-deleted, cancellation is terminal.
type RehearsalStatus string

const (
	StatusScheduled RehearsalStatus = "scheduled"
	StatusCanceled  RehearsalStatus = "canceled"
	StatusCompleted RehearsalStatus = "completed"
)

var transitions = map[RehearsalStatus][]RehearsalStatus{
	StatusScheduled: {StatusCanceled, StatusCompleted},
	StatusCanceled:  {},
	StatusCompleted: {},
}

func (s RehearsalStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s RehearsalStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s RehearsalStatus) CanTransitionTo(to RehearsalStatus) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type Rehearsal struct {
	ID          string
	BandID      string
	VenueID     string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Status      RehearsalStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overlaps reports whether [StartTime, EndTime) intersects [start, end).
// Back-to-back ranges sharing a boundary do not overlap.
func (r *Rehearsal) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

type Response string

const (
	ResponsePending   Response = "pending"
	ResponseAttending Response = "attending"
	ResponseDeclined  Response = "declined"
	// ResponseCanceled marks records of a canceled rehearsal. Terminal;
	// kept instead of deleting so attendance history stays auditable.
	ResponseCanceled Response = "canceled"
)

type AttendanceRecord struct {
	RehearsalID string
	MemberID    string
	Response    Response
	RespondedAt *time.Time
}
