// Package notify fans rehearsal lifecycle events out to interested
// listeners. Delivery is fire-and-forget: a failing sink is logged and
// never fails the operation that produced the event.
package notify

import (
	"time"

	"github.com/rs/zerolog"
)

type Kind string

const (
	RehearsalScheduled Kind = "rehearsal_scheduled"
	RehearsalCanceled  Kind = "rehearsal_canceled"
	RehearsalCompleted Kind = "rehearsal_completed"
	AttendanceChanged  Kind = "attendance_changed"
)

type Event struct {
	Kind        Kind      `json:"kind"`
	RehearsalID string    `json:"rehearsalId"`
	BandID      string    `json:"bandId,omitempty"`
	VenueID     string    `json:"venueId,omitempty"`
	MemberID    string    `json:"memberId,omitempty"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	Publish(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Log writes events to the structured log. Used when no broker is
// configured.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Publish(ev Event) {
	l.Logger.Info().
		Str("kind", string(ev.Kind)).
		Str("rehearsal_id", ev.RehearsalID).
		Str("band_id", ev.BandID).
		Str("member_id", ev.MemberID).
		Msg("event")
}
