package services

import (
	"HealthConnect/metrics"
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type AppointmentService struct {
	deps      *Deps
	schedules *ScheduleService
}

type BookInput struct {
	DoctorID   primitive.ObjectID
	Date       string
	SlotNumber int
	Reason     string
}

type StatusInput struct {
	Status             string
	Comment            string
	Notes              string
	CancellationReason string
}

type AppointmentQuery struct {
	Status   string
	Date     string
	Upcoming bool
	Page     int
	Limit    int
}

// Actor is the authenticated caller.
type Actor struct {
	ID   primitive.ObjectID
	Role role.Role
}

func appointmentsOf(r role.Role, id primitive.ObjectID) repository.AppointmentFilter {
	if r == role.Doctor {
		return repository.AppointmentFilter{DoctorID: &id}
	}
	return repository.AppointmentFilter{PatientID: &id}
}

/*
* Only patients book
* The date must be inside the horizon and the doctor bookable
* The slot must be offered and free, the unique slot key settles races
 */
func (s *AppointmentService) Book(ctx context.Context, patientID primitive.ObjectID, in BookInput) (*models.Appointment, error) {
	log := s.deps.Logger
	patient, err := s.deps.Store.Accounts().FindByID(ctx, patientID)
	if err != nil {
		return nil, storeError(err, util.USER_NOT_FOUND)
	}
	if patient.Role != role.Patient {
		return nil, util.NewError(util.KindNotAuthorized, util.NOT_A_PATIENT)
	}
	if !models.ValidSlotNumber(in.SlotNumber) {
		return nil, util.ValidationError(util.INVALID_SLOT_NUMBER)
	}
	day, err := s.schedules.parseBookingDate(in.Date)
	if err != nil {
		return nil, err
	}
	if _, err := bookableDoctor(ctx, s.deps, in.DoctorID); err != nil {
		return nil, err
	}

	free, err := s.schedules.freeSlots(ctx, in.DoctorID, day)
	if err != nil {
		return nil, err
	}
	var slot *models.Slot
	for i := range free {
		if free[i].SlotNumber == in.SlotNumber {
			slot = &free[i]
			break
		}
	}
	if slot == nil {
		return nil, util.ErrSlotUnavailable
	}

	now := s.deps.Now()
	date := day.Format(dateLayout)
	appt := &models.Appointment{
		DoctorID:      in.DoctorID,
		PatientID:     patientID,
		Date:          date,
		SlotNumber:    slot.SlotNumber,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		StartsAt:      slotStart(day, slot.SlotNumber),
		Status:        models.StatusPending,
		Reason:        strings.TrimSpace(in.Reason),
		ActiveSlotKey: models.SlotKey(in.DoctorID, date, slot.SlotNumber),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.deps.Store.Appointments().Create(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info("slot taken concurrently", zap.String("slotKey", appt.ActiveSlotKey))
			return nil, util.ErrSlotUnavailable
		}
		log.Error("error creating appointment", zap.Error(err))
		return nil, util.InternalError(err)
	}
	metrics.AppointmentsBooked.Inc()
	return appt, nil
}

func (s *AppointmentService) load(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	appt, err := s.deps.Store.Appointments().FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.deps.Logger.Error("error loading appointment", zap.Error(err))
		}
		return nil, storeError(err, util.APPOINTMENT_NOT_FOUND)
	}
	return appt, nil
}

func (s *AppointmentService) loadAsParty(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsParty(actor.ID) {
		return nil, util.NewError(util.KindNotAuthorized, util.NOT_APPOINTMENT_PARTY)
	}
	return appt, nil
}

/*
* Only the doctor and the patient of the appointment
* Patients may only cancel, doctors walk the rest of the state machine
* Cancelling releases the slot
 */
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor Actor, id primitive.ObjectID, in StatusInput) (*models.Appointment, error) {
	next := models.AppointmentStatus(in.Status)
	if !next.Valid() {
		return nil, util.ValidationError(util.INVALID_STATUS)
	}
	appt, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	isDoctor := appt.DoctorID == actor.ID
	if !isDoctor && next != models.StatusCancelled {
		return nil, util.NewError(util.KindNotAuthorized, util.PATIENT_CAN_ONLY_CANCEL)
	}
	prev := appt.Status
	if !prev.CanTransitionTo(next) {
		return nil, util.ErrInvalidStatusTransition.WithDetail("from", string(prev)).WithDetail("to", string(next))
	}

	now := s.deps.Now()
	switch next {
	case models.StatusCancelled:
		by := models.CancelledByPatient
		if isDoctor {
			by = models.CancelledByDoctor
		}
		appt.Cancel(by, strings.TrimSpace(in.CancellationReason), now)
	case models.StatusScheduled:
		if c := strings.TrimSpace(in.Comment); c != "" {
			appt.Comment = c
		}
	case models.StatusCompleted:
		if n := strings.TrimSpace(in.Notes); n != "" {
			appt.Notes = n
		}
	}
	appt.Status = next
	appt.UpdatedAt = now
	err = s.deps.Store.Appointments().Update(ctx, appt, prev)
	if errors.Is(err, repository.ErrConflict) {
		return nil, util.ErrInvalidStatusTransition.WithDetail("from", string(prev)).WithDetail("to", string(next))
	}
	if err != nil {
		s.deps.Logger.Error("error updating appointment status", zap.Error(err))
		return nil, util.InternalError(err)
	}
	metrics.AppointmentTransitions.WithLabelValues(string(prev), string(next)).Inc()
	return appt, nil
}

/*
* Doctors see their calendar, patients their bookings, admins everything
 */
func (s *AppointmentService) List(ctx context.Context, actor Actor, q AppointmentQuery) (Page[*models.Appointment], error) {
	page, limit, skip := normalizePage(q.Page, q.Limit)
	var f repository.AppointmentFilter
	if actor.Role != role.Admin {
		f = appointmentsOf(actor.Role, actor.ID)
	}
	if q.Status != "" {
		st := models.AppointmentStatus(q.Status)
		if !st.Valid() {
			return Page[*models.Appointment]{}, util.ValidationError(util.INVALID_STATUS)
		}
		f.Statuses = []models.AppointmentStatus{st}
	}
	f.Date = q.Date
	if q.Upcoming {
		now := s.deps.Now()
		f.StartsFrom = &now
	}
	total, err := s.deps.Store.Appointments().Count(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error counting appointments", zap.Error(err))
		return Page[*models.Appointment]{}, util.InternalError(err)
	}
	f.Skip, f.Limit = skip, limit
	list, err := s.deps.Store.Appointments().List(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error listing appointments", zap.Error(err))
		return Page[*models.Appointment]{}, util.InternalError(err)
	}
	return newPage(list, page, limit, total), nil
}

func (s *AppointmentService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Appointment, error) {
	if actor.Role == role.Admin {
		return s.load(ctx, id)
	}
	return s.loadAsParty(ctx, actor, id)
}

/*
* Patients may change the reason while the request is pending
* Doctors may change the comment and the notes
* Nothing else is writable
 */
func (s *AppointmentService) UpdateDetails(ctx context.Context, actor Actor, id primitive.ObjectID, fields map[string]json.RawMessage) (*models.Appointment, error) {
	appt, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	isDoctor := appt.DoctorID == actor.ID
	status := appt.Status
	for k, raw := range fields {
		var v string
		switch {
		case k == "reason" && !isDoctor:
			if appt.Status != models.StatusPending {
				return nil, util.ValidationError(util.REASON_EDITABLE_WHILE_PENDING)
			}
			if err := decodeField(k, raw, &v); err != nil {
				return nil, err
			}
			appt.Reason = strings.TrimSpace(v)
		case k == "comment" && isDoctor:
			if err := decodeField(k, raw, &v); err != nil {
				return nil, err
			}
			appt.Comment = strings.TrimSpace(v)
		case k == "notes" && isDoctor:
			if err := decodeField(k, raw, &v); err != nil {
				return nil, err
			}
			appt.Notes = strings.TrimSpace(v)
		default:
			return nil, fieldError(k)
		}
	}
	appt.UpdatedAt = s.deps.Now()
	err = s.deps.Store.Appointments().Update(ctx, appt, status)
	if errors.Is(err, repository.ErrConflict) {
		return nil, util.ErrInvalidStatusTransition.WithDetail("from", string(status))
	}
	if err != nil {
		s.deps.Logger.Error("error updating appointment", zap.Error(err))
		return nil, util.InternalError(err)
	}
	return appt, nil
}

func (s *AppointmentService) Delete(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	appt, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.deps.Store.Appointments().Delete(ctx, appt.ID); err != nil {
		s.deps.Logger.Error("error deleting appointment", zap.Error(err))
		return storeError(err, util.APPOINTMENT_NOT_FOUND)
	}
	return nil
}
