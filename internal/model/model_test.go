package model_test

import (
	"testing"
	"time"

	"rehearsal-scheduler-api/internal/model"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to model.RehearsalStatus
		ok       bool
	}{
		{model.StatusScheduled, model.StatusCanceled, true},
		{model.StatusScheduled, model.StatusCompleted, true},
		{model.StatusCanceled, model.StatusScheduled, false},
		{model.StatusCanceled, model.StatusCompleted, false},
		{model.StatusCompleted, model.StatusScheduled, false},
		{model.StatusCompleted, model.StatusCanceled, false},
		{model.StatusScheduled, model.StatusScheduled, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if model.StatusScheduled.Terminal() {
		t.Error("scheduled must not be terminal")
	}
	if !model.StatusCanceled.Terminal() || !model.StatusCompleted.Terminal() {
		t.Error("canceled and completed are terminal")
	}
	if model.RehearsalStatus("bogus").Terminal() {
		t.Error("unknown status is not terminal, it is invalid")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []model.RehearsalStatus{model.StatusScheduled, model.StatusCanceled, model.StatusCompleted} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if model.RehearsalStatus("deleted").Valid() {
		t.Error("deleted is not a known status")
	}
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	r := &model.Rehearsal{StartTime: base, EndTime: base.Add(2 * time.Hour)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"identical", base, base.Add(2 * time.Hour), true},
		{"contained", base.Add(30 * time.Minute), base.Add(time.Hour), true},
		{"straddles start", base.Add(-time.Hour), base.Add(time.Hour), true},
		{"straddles end", base.Add(time.Hour), base.Add(3 * time.Hour), true},
		{"covers", base.Add(-time.Hour), base.Add(3 * time.Hour), true},
		{"ends at start", base.Add(-2 * time.Hour), base, false},
		{"starts at end", base.Add(2 * time.Hour), base.Add(4 * time.Hour), false},
		{"well before", base.Add(-4 * time.Hour), base.Add(-3 * time.Hour), false},
		{"well after", base.Add(5 * time.Hour), base.Add(6 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Overlaps(tt.start, tt.end); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	if !model.RoleLeader.Valid() || !model.RoleMember.Valid() {
		t.Error("leader and member are valid roles")
	}
	if model.Role("admin").Valid() {
		t.Error("admin is not a role")
	}
}
