package repository

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var base = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// Compile-time interface checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)

func testMongoStore(t *testing.T) Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s, err := NewMongoStore(ctx, MongoOptions{URI: uri, Database: "healthconnect_test"}, zap.NewNop())
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	require.NoError(t, s.Drop(context.Background()))
	require.NoError(t, s.EnsureIndexes(context.Background()))
	t.Cleanup(func() {
		s.Drop(context.Background())
		s.Close(context.Background())
	})
	return s
}

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"mongo":  testMongoStore,
	}
}

func newPatient(email string) *models.Account {
	return &models.Account{
		Name:               "Pat",
		Email:              email,
		PasswordHash:       "hash",
		Role:               role.Patient,
		IsActive:           true,
		VerificationStatus: models.VerificationPending,
		Patient:            &models.PatientProfile{Gender: "female"},
		CreatedAt:          base,
		UpdatedAt:          base,
	}
}

func TestAccountsUniqueEmailAcrossRoles(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			p := newPatient("a@x.com")
			require.NoError(t, s.Accounts().Create(ctx, p))
			assert.False(t, p.ID.IsZero())

			d := &models.Account{Name: "Doc", Email: "a@x.com", Role: role.Doctor, Doctor: &models.DoctorProfile{}}
			err := s.Accounts().Create(ctx, d)
			assert.True(t, errors.Is(err, ErrDuplicate))

			got, err := s.Accounts().FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			assert.Equal(t, role.Patient, got.Role)

			_, err = s.Accounts().FindByEmail(ctx, "missing@x.com")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestAccountsUpdateDoesNotAlias(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			p := newPatient("b@x.com")
			require.NoError(t, s.Accounts().Create(ctx, p))

			loaded, err := s.Accounts().FindByID(ctx, p.ID)
			require.NoError(t, err)
			loaded.Patient.Gender = "male"

			again, err := s.Accounts().FindByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "female", again.Patient.Gender)

			require.NoError(t, s.Accounts().Update(ctx, loaded))
			again, err = s.Accounts().FindByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "male", again.Patient.Gender)
		})
	}
}

func TestAccountsFilterAndCount(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			for i, email := range []string{"one@x.com", "two@x.com", "three@x.com"} {
				a := newPatient(email)
				a.CreatedAt = base.Add(time.Duration(i) * time.Hour)
				a.IsActive = i != 1
				require.NoError(t, s.Accounts().Create(ctx, a))
			}

			active := true
			n, err := s.Accounts().Count(ctx, AccountFilter{Role: role.Patient, Active: &active})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			list, err := s.Accounts().List(ctx, AccountFilter{Search: "TWO"})
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "two@x.com", list[0].Email)

			list, err = s.Accounts().List(ctx, AccountFilter{Limit: 2})
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "three@x.com", list[0].Email, "newest first")
		})
	}
}

func TestCodesLatestActiveAndConsume(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			old := &models.OneTimeCode{Email: "a@x.com", Purpose: models.PurposeLogin, CodeHash: "h1", ExpiresAt: base.Add(10 * time.Minute), CreatedAt: base}
			fresh := &models.OneTimeCode{Email: "a@x.com", Purpose: models.PurposeLogin, CodeHash: "h2", ExpiresAt: base.Add(11 * time.Minute), CreatedAt: base.Add(time.Minute)}
			require.NoError(t, s.Codes().Create(ctx, old))
			require.NoError(t, s.Codes().Create(ctx, fresh))

			got, err := s.Codes().FindLatestActive(ctx, "a@x.com", models.PurposeLogin, base.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, "h2", got.CodeHash)

			_, err = s.Codes().FindLatestActive(ctx, "a@x.com", models.PurposeLogin, base.Add(11*time.Minute))
			assert.True(t, errors.Is(err, ErrNotFound), "expiry boundary is exclusive")

			attempts, err := s.Codes().ReserveAttempt(ctx, fresh.ID, 2)
			require.NoError(t, err)
			assert.Equal(t, 1, attempts)
			attempts, err = s.Codes().ReserveAttempt(ctx, fresh.ID, 2)
			require.NoError(t, err)
			assert.Equal(t, 2, attempts)
			_, err = s.Codes().ReserveAttempt(ctx, fresh.ID, 2)
			assert.True(t, errors.Is(err, ErrNotFound), "no attempt left")

			ok, err := s.Codes().Consume(ctx, fresh.ID)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.Codes().Consume(ctx, fresh.ID)
			require.NoError(t, err)
			assert.False(t, ok, "second consume loses")

			n, err := s.Codes().DeleteExpired(ctx, base.Add(10*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestSessionsRevokeAllExcept(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			acc := primitive.NewObjectID()
			for _, tok := range []string{"t1", "t2", "t3"} {
				require.NoError(t, s.Sessions().Create(ctx, &models.Session{
					AccountID: acc, Role: role.Patient, TokenID: tok, IsActive: true,
					ExpiresAt: base.Add(time.Hour), LastActivity: base, CreatedAt: base, UpdatedAt: base,
				}))
			}

			n, err := s.Sessions().RevokeAll(ctx, acc, "t3", "New device login - single device enforcement", base)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			active, err := s.Sessions().ListActive(ctx, acc, base)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "t3", active[0].TokenID)

			n, err = s.Sessions().RevokeExpired(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = s.Sessions().DeleteInactiveBefore(ctx, base.Add(2*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
		})
	}
}

func TestAppointmentsActiveSlotKeyAndCancelFuture(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			doctor, other := primitive.NewObjectID(), primitive.NewObjectID()
			patient := primitive.NewObjectID()

			mk := func(doc primitive.ObjectID, slot int, startsAt time.Time, status models.AppointmentStatus) *models.Appointment {
				a := &models.Appointment{
					DoctorID: doc, PatientID: patient, Date: startsAt.Format("2006-01-02"), SlotNumber: slot,
					StartsAt: startsAt, Status: status, CreatedAt: base, UpdatedAt: base,
				}
				if status.HoldsSlot() {
					a.ActiveSlotKey = models.SlotKey(doc, a.Date, slot)
				}
				return a
			}

			first := mk(doctor, 3, base.Add(24*time.Hour), models.StatusPending)
			require.NoError(t, s.Appointments().Create(ctx, first))
			clash := mk(doctor, 3, base.Add(24*time.Hour), models.StatusPending)
			assert.True(t, errors.Is(s.Appointments().Create(ctx, clash), ErrDuplicate))

			require.NoError(t, s.Appointments().Create(ctx, mk(doctor, 4, base.Add(25*time.Hour), models.StatusScheduled)))
			require.NoError(t, s.Appointments().Create(ctx, mk(doctor, 1, base.Add(-24*time.Hour), models.StatusScheduled)))
			require.NoError(t, s.Appointments().Create(ctx, mk(other, 3, base.Add(24*time.Hour), models.StatusPending)))

			held, err := s.Appointments().HeldSlots(ctx, doctor, first.Date)
			require.NoError(t, err)
			assert.Equal(t, []int{3, 4}, held)

			n, err := s.Appointments().CancelFuture(ctx, AppointmentFilter{DoctorID: &doctor}, base, models.CancelledBySystem, "Account doctor suspended by admin", base)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			cancelled, err := s.Appointments().FindByID(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, cancelled.Status)
			assert.Empty(t, cancelled.ActiveSlotKey)

			remaining, err := s.Appointments().Count(ctx, AppointmentFilter{Statuses: []models.AppointmentStatus{models.StatusPending, models.StatusScheduled}})
			require.NoError(t, err)
			assert.Equal(t, int64(2), remaining, "past appointment and other doctor untouched")

			stale := *first
			stale.Status = models.StatusScheduled
			assert.ErrorIs(t, s.Appointments().Update(ctx, &stale, models.StatusPending), ErrConflict, "cancelled since it was read")

			rebook := mk(doctor, 3, base.Add(24*time.Hour), models.StatusPending)
			assert.NoError(t, s.Appointments().Create(ctx, rebook), "cancelled slot can be booked again")
		})
	}
}

func TestSchedulesUpsertKeepsIdentity(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			doctor := primitive.NewObjectID()
			w := &models.WeeklySchedule{DoctorID: doctor, Days: []models.DaySchedule{{Day: "Monday", Slots: []models.Slot{models.NewSlot(1)}}}, CreatedAt: base, UpdatedAt: base}
			require.NoError(t, s.Schedules().Upsert(ctx, w))
			firstID := w.ID

			w2 := &models.WeeklySchedule{DoctorID: doctor, Days: []models.DaySchedule{{Day: "Tuesday", Slots: []models.Slot{models.NewSlot(2)}}}, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}
			require.NoError(t, s.Schedules().Upsert(ctx, w2))
			assert.Equal(t, firstID, w2.ID)

			got, err := s.Schedules().Get(ctx, doctor)
			require.NoError(t, err)
			require.Len(t, got.Days, 1)
			assert.Equal(t, "Tuesday", got.Days[0].Day)
		})
	}
}

func TestAuditAppendAndFilter(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			admin, target := primitive.NewObjectID(), primitive.NewObjectID()
			require.NoError(t, s.Audit().Append(ctx, &models.AdminActionLog{AdminID: admin, TargetUserID: target, ActionType: models.ActionUserSuspension, TargetUserType: "Doctor", CreatedAt: base}))
			require.NoError(t, s.Audit().Append(ctx, &models.AdminActionLog{AdminID: admin, TargetUserID: target, ActionType: models.ActionUserActivation, TargetUserType: "Doctor", CreatedAt: base.Add(time.Minute)}))

			logs, err := s.Audit().List(ctx, AuditFilter{TargetUserID: &target})
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Equal(t, models.ActionUserActivation, logs[0].ActionType, "newest first")

			n, err := s.Audit().Count(ctx, AuditFilter{ActionType: models.ActionUserSuspension})
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestMemoryTransactionRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPatient("tx@x.com")
	require.NoError(t, s.Accounts().Create(ctx, p))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		p.IsActive = false
		if err := s.Accounts().Update(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Accounts().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestMemoryTransactionRollbackKeepsConcurrentWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := newPatient("tx@x.com")
	require.NoError(t, s.Accounts().Create(ctx, p))

	other := newPatient("other@x.com")
	done := make(chan error, 1)
	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(txCtx context.Context) error {
		p.IsActive = false
		if err := s.Accounts().Update(txCtx, p); err != nil {
			return err
		}
		go func() { done <- s.Accounts().Create(ctx, other) }()
		select {
		case <-done:
			t.Error("plain write landed inside a running transaction")
		case <-time.After(50 * time.Millisecond):
		}
		// nested calls join the running transaction
		return s.RunInTransaction(txCtx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("plain write never completed")
	}

	got, err := s.Accounts().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive, "transaction write rolled back")
	_, err = s.Accounts().FindByID(ctx, other.ID)
	assert.NoError(t, err, "write made after the transaction survives its rollback")
}
