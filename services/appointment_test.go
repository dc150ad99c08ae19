package services

import (
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type bookingFixture struct {
	*harness
	doctor  *models.Account
	patient *models.Account
	other   *models.Account
}

func newBookingFixture(t *testing.T) *bookingFixture {
	h := newHarness(t)
	return &bookingFixture{
		harness: h,
		doctor:  h.doctorWithWeek(t, "who@x.com"),
		patient: h.register(t, "Ann", "a@x.com", role.Patient),
		other:   h.register(t, "Bob", "b@x.com", role.Patient),
	}
}

func (f *bookingFixture) book(t *testing.T, patient *models.Account, daysAhead, slot int) *models.Appointment {
	t.Helper()
	appt, err := f.svc.Appointments.Book(f.ctx, patient.ID, BookInput{
		DoctorID: f.doctor.ID, Date: f.date(daysAhead), SlotNumber: slot, Reason: "checkup",
	})
	require.NoError(t, err)
	return appt
}

func (f *bookingFixture) setStatus(actor *models.Account, id primitive.ObjectID, status models.AppointmentStatus) (*models.Appointment, error) {
	return f.svc.Appointments.UpdateStatus(f.ctx, actorOf(actor), id, StatusInput{Status: string(status)})
}

func TestBookAppointment(t *testing.T) {
	f := newBookingFixture(t)

	appt := f.book(t, f.patient, 2, 4)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, "2026-10-21", appt.Date)
	assert.Equal(t, "12:00", appt.StartTime)
	assert.Equal(t, "13:00", appt.EndTime)
	assert.Equal(t, time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC), appt.StartsAt)
	assert.Equal(t, "checkup", appt.Reason)

	slots, err := f.svc.Schedules.GetAvailableSlots(f.ctx, f.doctor.ID, f.date(2))
	require.NoError(t, err)
	assert.NotContains(t, slotNumbers(slots), 4)
	assert.Len(t, slots, 11)

	_, err = f.svc.Appointments.Book(f.ctx, f.other.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(2), SlotNumber: 4})
	assert.ErrorIs(t, err, util.ErrSlotUnavailable)
}

func TestBookAppointmentRejections(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.Appointments.Book(f.ctx, f.doctor.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(1), SlotNumber: 1})
	assertKind(t, err, util.KindNotAuthorized)

	_, err = f.svc.Appointments.Book(f.ctx, f.patient.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(1), SlotNumber: 13})
	appErr := assertKind(t, err, util.KindValidation)
	assert.Equal(t, util.INVALID_SLOT_NUMBER, appErr.Message)

	_, err = f.svc.Appointments.Book(f.ctx, f.patient.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(7), SlotNumber: 1})
	appErr = assertKind(t, err, util.KindValidation)
	assert.Equal(t, util.DATE_OUTSIDE_BOOKING_HORIZON, appErr.Message)

	_, err = f.svc.Appointments.Book(f.ctx, f.patient.ID, BookInput{DoctorID: primitive.NewObjectID(), Date: f.date(1), SlotNumber: 1})
	assertKind(t, err, util.KindNotFound)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Appointments.Book(f.ctx, f.patient.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(0), SlotNumber: 1})
	assert.ErrorIs(t, err, util.ErrSlotUnavailable)
}

func TestBookOnlyOfferedSlots(t *testing.T) {
	h := newHarness(t)
	doc := h.register(t, "Dr Who", "who@x.com", role.Doctor)
	ann := h.register(t, "Ann", "a@x.com", role.Patient)
	_, err := h.svc.Schedules.SetSchedule(h.ctx, doc.ID, []DayInput{{Day: "Tuesday", Slots: []SlotInput{{SlotNumber: 2}}}})
	require.NoError(t, err)

	_, err = h.svc.Appointments.Book(h.ctx, ann.ID, BookInput{DoctorID: doc.ID, Date: h.date(1), SlotNumber: 3})
	assert.ErrorIs(t, err, util.ErrSlotUnavailable)
	_, err = h.svc.Appointments.Book(h.ctx, ann.ID, BookInput{DoctorID: doc.ID, Date: h.date(2), SlotNumber: 2})
	assert.ErrorIs(t, err, util.ErrSlotUnavailable)
	_, err = h.svc.Appointments.Book(h.ctx, ann.ID, BookInput{DoctorID: doc.ID, Date: h.date(1), SlotNumber: 2})
	assert.NoError(t, err)
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	f := newBookingFixture(t)
	patients := []*models.Account{f.patient, f.other}
	for i := 0; i < 6; i++ {
		patients = append(patients, f.register(t, "P", "p"+string(rune('a'+i))+"@x.com", role.Patient))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, p := range patients {
		wg.Add(1)
		go func(p *models.Account) {
			defer wg.Done()
			_, err := f.svc.Appointments.Book(f.ctx, p.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(3), SlotNumber: 6})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, util.ErrSlotUnavailable)
		}(p)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestCancelReleasesSlotRescheduleKeepsIt(t *testing.T) {
	f := newBookingFixture(t)

	first := f.book(t, f.patient, 1, 1)
	cancelled, err := f.svc.Appointments.UpdateStatus(f.ctx, actorOf(f.patient), first.ID,
		StatusInput{Status: "cancelled", CancellationReason: "travel"})
	require.NoError(t, err)
	assert.Equal(t, models.CancelledByPatient, cancelled.CancelledBy)
	assert.Equal(t, "travel", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	second := f.book(t, f.other, 1, 1)

	_, err = f.setStatus(f.doctor, second.ID, models.StatusScheduled)
	require.NoError(t, err)
	_, err = f.setStatus(f.doctor, second.ID, models.StatusRescheduled)
	require.NoError(t, err)

	_, err = f.svc.Appointments.Book(f.ctx, f.patient.ID, BookInput{DoctorID: f.doctor.ID, Date: f.date(1), SlotNumber: 1})
	assert.ErrorIs(t, err, util.ErrSlotUnavailable)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []models.AppointmentStatus
		next  models.AppointmentStatus
		allow bool
	}{
		{"pending to scheduled", nil, models.StatusScheduled, true},
		{"pending to cancelled", nil, models.StatusCancelled, true},
		{"pending to completed", nil, models.StatusCompleted, false},
		{"pending to rescheduled", nil, models.StatusRescheduled, false},
		{"scheduled to completed", []models.AppointmentStatus{models.StatusScheduled}, models.StatusCompleted, true},
		{"scheduled to rescheduled", []models.AppointmentStatus{models.StatusScheduled}, models.StatusRescheduled, true},
		{"scheduled to pending", []models.AppointmentStatus{models.StatusScheduled}, models.StatusPending, false},
		{"completed is terminal", []models.AppointmentStatus{models.StatusScheduled, models.StatusCompleted}, models.StatusCancelled, false},
		{"cancelled is terminal", []models.AppointmentStatus{models.StatusCancelled}, models.StatusScheduled, false},
		{"rescheduled is terminal", []models.AppointmentStatus{models.StatusScheduled, models.StatusRescheduled}, models.StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			appt := f.book(t, f.patient, 1, 2)
			for _, st := range tt.path {
				_, err := f.setStatus(f.doctor, appt.ID, st)
				require.NoError(t, err)
			}
			got, err := f.setStatus(f.doctor, appt.ID, tt.next)
			if tt.allow {
				require.NoError(t, err)
				assert.Equal(t, tt.next, got.Status)
				return
			}
			appErr := assertKind(t, err, util.KindInvalidStatusTransition)
			assert.Equal(t, string(tt.next), appErr.Details["to"])
		})
	}
}

func TestStatusUpdatePermissions(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t, f.patient, 1, 3)

	_, err := f.setStatus(f.patient, appt.ID, models.StatusScheduled)
	appErr := assertKind(t, err, util.KindNotAuthorized)
	assert.Equal(t, util.PATIENT_CAN_ONLY_CANCEL, appErr.Message)

	_, err = f.setStatus(f.other, appt.ID, models.StatusCancelled)
	appErr = assertKind(t, err, util.KindNotAuthorized)
	assert.Equal(t, util.NOT_APPOINTMENT_PARTY, appErr.Message)

	_, err = f.svc.Appointments.UpdateStatus(f.ctx, actorOf(f.doctor), appt.ID, StatusInput{Status: "archived"})
	appErr = assertKind(t, err, util.KindValidation)
	assert.Equal(t, util.INVALID_STATUS, appErr.Message)

	_, err = f.setStatus(f.doctor, primitive.NewObjectID(), models.StatusScheduled)
	assertKind(t, err, util.KindNotFound)

	scheduled, err := f.svc.Appointments.UpdateStatus(f.ctx, actorOf(f.doctor), appt.ID,
		StatusInput{Status: "scheduled", Comment: "bring reports"})
	require.NoError(t, err)
	assert.Equal(t, "bring reports", scheduled.Comment)

	cancelled, err := f.setStatus(f.doctor, appt.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.CancelledByDoctor, cancelled.CancelledBy)
}

func TestUpdateDetailsAllowList(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t, f.patient, 1, 5)

	got, err := f.svc.Appointments.UpdateDetails(f.ctx, actorOf(f.patient), appt.ID,
		map[string]json.RawMessage{"reason": json.RawMessage(`"  headache "`)})
	require.NoError(t, err)
	assert.Equal(t, "headache", got.Reason)

	for _, field := range []string{"status", "slotNumber", "doctorId", "comment"} {
		_, err = f.svc.Appointments.UpdateDetails(f.ctx, actorOf(f.patient), appt.ID,
			map[string]json.RawMessage{field: json.RawMessage(`"x"`)})
		appErr := assertKind(t, err, util.KindValidation)
		assert.Equal(t, field, appErr.Details["field"])
	}

	_, err = f.svc.Appointments.UpdateDetails(f.ctx, actorOf(f.doctor), appt.ID,
		map[string]json.RawMessage{"reason": json.RawMessage(`"x"`)})
	assertKind(t, err, util.KindValidation)

	got, err = f.svc.Appointments.UpdateDetails(f.ctx, actorOf(f.doctor), appt.ID,
		map[string]json.RawMessage{"notes": json.RawMessage(`"bp normal"`), "comment": json.RawMessage(`"fasting"`)})
	require.NoError(t, err)
	assert.Equal(t, "bp normal", got.Notes)
	assert.Equal(t, "fasting", got.Comment)

	_, err = f.setStatus(f.doctor, appt.ID, models.StatusScheduled)
	require.NoError(t, err)
	_, err = f.svc.Appointments.UpdateDetails(f.ctx, actorOf(f.patient), appt.ID,
		map[string]json.RawMessage{"reason": json.RawMessage(`"later"`)})
	appErr := assertKind(t, err, util.KindValidation)
	assert.Equal(t, util.REASON_EDITABLE_WHILE_PENDING, appErr.Message)

	stored, err := f.store.Appointments().FindByID(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, stored.Status)
	assert.Equal(t, 5, stored.SlotNumber)
}

func TestListAppointments(t *testing.T) {
	f := newBookingFixture(t)
	a1 := f.book(t, f.patient, 1, 1)
	f.book(t, f.patient, 2, 1)
	f.book(t, f.other, 1, 2)
	_, err := f.setStatus(f.patient, a1.ID, models.StatusCancelled)
	require.NoError(t, err)

	mine, err := f.svc.Appointments.List(f.ctx, actorOf(f.patient), AppointmentQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	pending, err := f.svc.Appointments.List(f.ctx, actorOf(f.patient), AppointmentQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Total)

	calendar, err := f.svc.Appointments.List(f.ctx, actorOf(f.doctor), AppointmentQuery{Date: f.date(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calendar.Total)
	assert.Equal(t, 1, calendar.Items[0].SlotNumber)

	all, err := f.svc.Appointments.List(f.ctx, Actor{ID: primitive.NewObjectID(), Role: role.Admin}, AppointmentQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, int64(2), all.TotalPages)

	_, err = f.svc.Appointments.List(f.ctx, actorOf(f.patient), AppointmentQuery{Status: "bogus"})
	assertKind(t, err, util.KindValidation)

	_, err = f.svc.Appointments.Get(f.ctx, actorOf(f.other), a1.ID)
	assertKind(t, err, util.KindNotAuthorized)
	got, err := f.svc.Appointments.Get(f.ctx, actorOf(f.doctor), a1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestDeleteAccountCancelsUpcoming(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t, f.patient, 1, 7)
	f.login(t, "a@x.com", role.Patient)

	err := f.svc.Auth.DeleteAccount(f.ctx, f.doctor.ID)
	appErr := assertKind(t, err, util.KindNotAuthorized)
	assert.Equal(t, util.ONLY_PATIENT_CAN_DELETE, appErr.Message)

	require.NoError(t, f.svc.Auth.DeleteAccount(f.ctx, f.patient.ID))

	_, err = f.store.Accounts().FindByID(f.ctx, f.patient.ID)
	assert.Error(t, err)
	stored, err := f.store.Appointments().FindByID(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	sessions, err := f.svc.Sessions.List(f.ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	f.book(t, f.other, 1, 7)
}

// interleavedStore runs hook once, right before the first appointment write.
type interleavedStore struct {
	repository.Store
	once sync.Once
	hook func()
}

func (s *interleavedStore) Appointments() repository.AppointmentRepository {
	return interleavedAppointments{s.Store.Appointments(), s}
}

type interleavedAppointments struct {
	repository.AppointmentRepository
	s *interleavedStore
}

func (r interleavedAppointments) Update(ctx context.Context, a *models.Appointment, expected models.AppointmentStatus) error {
	r.s.once.Do(r.s.hook)
	return r.AppointmentRepository.Update(ctx, a, expected)
}

func TestStatusUpdateLosesToSuspensionCascade(t *testing.T) {
	f := newBookingFixture(t)
	root := f.admin(t)
	appt := f.book(t, f.patient, 2, 4)

	f.svc.Appointments.deps.Store = &interleavedStore{Store: f.store, hook: func() {
		_, err := f.svc.Admin.ToggleUserStatus(f.ctx, root.ID, f.doctor.ID,
			ToggleInput{UserType: "doctor", Action: ActionSuspend, Reason: "License expired"}, RequestMeta{})
		require.NoError(t, err)
	}}

	_, err := f.setStatus(f.doctor, appt.ID, models.StatusScheduled)
	assertKind(t, err, util.KindInvalidStatusTransition)

	got, err := f.store.Appointments().FindByID(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, models.CancelledBySystem, got.CancelledBy)
	assert.Empty(t, got.ActiveSlotKey)
}

func TestUpdateDetailsLosesToCancellation(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t, f.patient, 2, 4)

	f.svc.Appointments.deps.Store = &interleavedStore{Store: f.store, hook: func() {
		cur, err := f.store.Appointments().FindByID(f.ctx, appt.ID)
		require.NoError(t, err)
		cur.Cancel(models.CancelledByPatient, "", f.clock.Now())
		require.NoError(t, f.store.Appointments().Update(f.ctx, cur, models.StatusPending))
	}}

	_, err := f.svc.Appointments.UpdateDetails(f.ctx, actorOf(f.doctor), appt.ID,
		map[string]json.RawMessage{"comment": json.RawMessage(`"see you soon"`)})
	assertKind(t, err, util.KindInvalidStatusTransition)

	got, err := f.store.Appointments().FindByID(f.ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Empty(t, got.Comment)
}
