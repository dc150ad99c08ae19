package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusScheduled, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusRescheduled, false},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusRescheduled, true},
		{StatusScheduled, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusRescheduled, StatusScheduled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewSlotBoundaries(t *testing.T) {
	first := NewSlot(1)
	assert.Equal(t, "09:00", first.StartTime)
	assert.Equal(t, "10:00", first.EndTime)

	last := NewSlot(12)
	assert.Equal(t, "20:00", last.StartTime)
	assert.Equal(t, "21:00", last.EndTime)

	assert.False(t, ValidSlotNumber(0))
	assert.False(t, ValidSlotNumber(13))
}

func TestCancelReleasesSlot(t *testing.T) {
	doctor := primitive.NewObjectID()
	a := &Appointment{DoctorID: doctor, Status: StatusPending, ActiveSlotKey: SlotKey(doctor, "2026-10-20", 3)}
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	a.Cancel(CancelledBySystem, "doctor suspended", now)

	assert.Equal(t, StatusCancelled, a.Status)
	assert.Empty(t, a.ActiveSlotKey)
	assert.Equal(t, now, *a.CancelledAt)
	assert.False(t, a.Status.HoldsSlot())
}

func TestSessionValid(t *testing.T) {
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	s := &Session{IsActive: true, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, s.Valid(now))
	assert.False(t, s.Valid(now.Add(time.Minute)))

	s.IsActive = false
	assert.False(t, s.Valid(now))
}
