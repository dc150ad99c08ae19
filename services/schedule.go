package services

import (
	"HealthConnect/cache"
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type ScheduleService struct {
	deps *Deps
}

type SlotInput struct {
	SlotNumber  int   `json:"slotNumber"`
	IsAvailable *bool `json:"isAvailable"`
}

type DayInput struct {
	Day   string      `json:"day"`
	Slots []SlotInput `json:"slots"`
}

func weekdayIndex(day string) int {
	for i, d := range models.Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

/*
* Check every day name and slot number
* Keep only slots offered as available
* Replace the template and drop the cached copy
 */
func (s *ScheduleService) SetSchedule(ctx context.Context, doctorID primitive.ObjectID, days []DayInput) (*models.WeeklySchedule, error) {
	log := s.deps.Logger
	acc, err := s.deps.Store.Accounts().FindByID(ctx, doctorID)
	if err != nil {
		return nil, storeError(err, util.USER_NOT_FOUND)
	}
	if acc.Role != role.Doctor {
		return nil, util.NewError(util.KindNotAuthorized, util.NOT_A_DOCTOR)
	}

	seen := make(map[string]bool, len(days))
	out := make([]models.DaySchedule, 0, len(days))
	for _, d := range days {
		if !models.ValidWeekday(d.Day) {
			return nil, util.ValidationError(util.INVALID_WEEKDAY).WithDetail("day", d.Day)
		}
		if seen[d.Day] {
			return nil, util.ValidationError(util.DUPLICATE_WEEKDAY).WithDetail("day", d.Day)
		}
		seen[d.Day] = true

		offered := make(map[int]bool)
		for _, sl := range d.Slots {
			if !models.ValidSlotNumber(sl.SlotNumber) {
				return nil, util.ValidationError(util.INVALID_SLOT_NUMBER).WithDetail("slotNumber", sl.SlotNumber)
			}
			if sl.IsAvailable == nil || *sl.IsAvailable {
				offered[sl.SlotNumber] = true
			}
		}
		if len(offered) == 0 {
			continue
		}
		numbers := make([]int, 0, len(offered))
		for n := range offered {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		day := models.DaySchedule{Day: d.Day, Slots: make([]models.Slot, 0, len(numbers))}
		for _, n := range numbers {
			day.Slots = append(day.Slots, models.NewSlot(n))
		}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return weekdayIndex(out[i].Day) < weekdayIndex(out[j].Day) })

	now := s.deps.Now()
	sched := &models.WeeklySchedule{DoctorID: doctorID, Days: out, CreatedAt: now, UpdatedAt: now}
	if err := s.deps.Store.Schedules().Upsert(ctx, sched); err != nil {
		log.Error("error saving schedule", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if err := s.deps.Cache.Delete(ctx, cache.ScheduleKey(doctorID.Hex())); err != nil {
		log.Warn("error invalidating schedule cache", zap.Error(err))
	}
	return sched, nil
}

/*
* Serve from the cache when possible
* A doctor without a template has an empty week
 */
func (s *ScheduleService) GetSchedule(ctx context.Context, doctorID primitive.ObjectID) (*models.WeeklySchedule, error) {
	log := s.deps.Logger
	acc, err := s.deps.Store.Accounts().FindByID(ctx, doctorID)
	if err != nil || acc.Role != role.Doctor {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Error("error loading doctor", zap.Error(err))
			return nil, util.InternalError(err)
		}
		return nil, util.NewError(util.KindNotFound, util.DOCTOR_NOT_FOUND)
	}
	return s.template(ctx, doctorID)
}

func (s *ScheduleService) template(ctx context.Context, doctorID primitive.ObjectID) (*models.WeeklySchedule, error) {
	log := s.deps.Logger
	key := cache.ScheduleKey(doctorID.Hex())
	var cached models.WeeklySchedule
	hit, err := s.deps.Cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("schedule cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	sched, err := s.deps.Store.Schedules().Get(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) {
		sched = &models.WeeklySchedule{DoctorID: doctorID, Days: []models.DaySchedule{}}
	} else if err != nil {
		log.Error("error loading schedule", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if err := s.deps.Cache.Set(ctx, key, sched, s.deps.Config.Redis.CacheTTL); err != nil {
		log.Warn("schedule cache write failed", zap.Error(err))
	}
	return sched, nil
}

// parseBookingDate accepts dates from today through the end of the booking horizon.
func (s *ScheduleService) parseBookingDate(date string) (time.Time, error) {
	loc := s.deps.Config.Location()
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, util.ValidationError(util.INVALID_DATE)
	}
	now := s.deps.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := today.AddDate(0, 0, s.deps.Config.Booking.HorizonDays)
	if day.Before(today) || !day.Before(end) {
		return time.Time{}, util.ValidationError(util.DATE_OUTSIDE_BOOKING_HORIZON).
			WithDetail("from", today.Format(dateLayout)).
			WithDetail("to", end.AddDate(0, 0, -1).Format(dateLayout))
	}
	return day, nil
}

func slotStart(day time.Time, slotNumber int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), models.SlotHour(slotNumber), 0, 0, 0, day.Location())
}

func (s *ScheduleService) freeSlots(ctx context.Context, doctorID primitive.ObjectID, day time.Time) ([]models.Slot, error) {
	sched, err := s.template(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	tmpl := sched.Day(day.Weekday().String())
	if tmpl == nil {
		return []models.Slot{}, nil
	}
	held, err := s.deps.Store.Appointments().HeldSlots(ctx, doctorID, day.Format(dateLayout))
	if err != nil {
		s.deps.Logger.Error("error loading held slots", zap.Error(err))
		return nil, util.InternalError(err)
	}
	taken := make(map[int]bool, len(held))
	for _, n := range held {
		taken[n] = true
	}
	now := s.deps.Now()
	free := make([]models.Slot, 0, len(tmpl.Slots))
	for _, sl := range tmpl.Slots {
		if !sl.IsAvailable || taken[sl.SlotNumber] {
			continue
		}
		if !slotStart(day, sl.SlotNumber).After(now) {
			continue
		}
		free = append(free, sl)
	}
	return free, nil
}

/*
* Validate the date against the booking horizon
* Weekday template minus held slots and, for today, slots that already started
 */
func (s *ScheduleService) GetAvailableSlots(ctx context.Context, doctorID primitive.ObjectID, date string) ([]models.Slot, error) {
	day, err := s.parseBookingDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := bookableDoctor(ctx, s.deps, doctorID); err != nil {
		return nil, err
	}
	return s.freeSlots(ctx, doctorID, day)
}
