package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled, StatusRescheduled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCancelled, StatusCompleted, StatusRescheduled:
		return true
	}
	return false
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether an appointment in this status keeps its slot out of availability.
func (s AppointmentStatus) HoldsSlot() bool {
	return s != StatusCancelled
}

// CancelledBy values.
const (
	CancelledByPatient = "patient"
	CancelledByDoctor  = "doctor"
	CancelledBySystem  = "system"
)

type Appointment struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DoctorID           primitive.ObjectID `json:"doctorId" bson:"doctorId"`
	PatientID          primitive.ObjectID `json:"patientId" bson:"patientId"`
	Date               string             `json:"date" bson:"date"`
	SlotNumber         int                `json:"slotNumber" bson:"slotNumber"`
	StartTime          string             `json:"startTime" bson:"startTime"`
	EndTime            string             `json:"endTime" bson:"endTime"`
	StartsAt           time.Time          `json:"startsAt" bson:"startsAt"`
	Status             AppointmentStatus  `json:"status" bson:"status"`
	Reason             string             `json:"reason,omitempty" bson:"reason,omitempty"`
	Comment            string             `json:"comment,omitempty" bson:"comment,omitempty"`
	Notes              string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CancellationReason string             `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CancelledBy        string             `json:"cancelledBy,omitempty" bson:"cancelledBy,omitempty"`
	CancelledAt        *time.Time         `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	ActiveSlotKey      string             `json:"-" bson:"activeSlotKey,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SlotKey identifies one doctor/date/slot cell. At most one appointment holding a slot carries it.
func SlotKey(doctorID primitive.ObjectID, date string, slotNumber int) string {
	return fmt.Sprintf("%s|%s|%d", doctorID.Hex(), date, slotNumber)
}

// Cancel moves the appointment to cancelled and releases its slot.
func (a *Appointment) Cancel(by, reason string, now time.Time) {
	a.Status = StatusCancelled
	a.CancelledBy = by
	a.CancellationReason = reason
	a.CancelledAt = &now
	a.ActiveSlotKey = ""
	a.UpdatedAt = now
}

// IsParty reports whether the account is the doctor or the patient of this appointment.
func (a *Appointment) IsParty(accountID primitive.ObjectID) bool {
	return a.DoctorID == accountID || a.PatientID == accountID
}
