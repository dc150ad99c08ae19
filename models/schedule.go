package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinSlotNumber = 1
	MaxSlotNumber = 12
	firstSlotHour = 9
)

// Weekdays in template order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type Slot struct {
	SlotNumber  int    `json:"slotNumber" bson:"slotNumber"`
	StartTime   string `json:"startTime" bson:"startTime"`
	EndTime     string `json:"endTime" bson:"endTime"`
	IsAvailable bool   `json:"isAvailable" bson:"isAvailable"`
}

type DaySchedule struct {
	Day   string `json:"day" bson:"day"`
	Slots []Slot `json:"slots" bson:"slots"`
}

type WeeklySchedule struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DoctorID  primitive.ObjectID `json:"doctorId" bson:"doctorId"`
	Days      []DaySchedule      `json:"days" bson:"days"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func ValidSlotNumber(n int) bool {
	return n >= MinSlotNumber && n <= MaxSlotNumber
}

func ValidWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// SlotHour is the hour of day at which slot n starts; slot 1 starts at 09:00.
func SlotHour(n int) int {
	return firstSlotHour + n - 1
}

// NewSlot builds the fixed one-hour window for slot n.
func NewSlot(n int) Slot {
	h := SlotHour(n)
	return Slot{
		SlotNumber:  n,
		StartTime:   fmt.Sprintf("%02d:00", h),
		EndTime:     fmt.Sprintf("%02d:00", h+1),
		IsAvailable: true,
	}
}

// Day returns the template for the given weekday, or nil if the doctor offers nothing that day.
func (w *WeeklySchedule) Day(day string) *DaySchedule {
	if w == nil {
		return nil
	}
	for i := range w.Days {
		if w.Days[i].Day == day {
			return &w.Days[i]
		}
	}
	return nil
}
