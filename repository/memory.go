package repository

import (
	"HealthConnect/models"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps everything in maps guarded by one mutex. It backs the tests and
// the dev mode without MongoDB. Transactions are serialised and rolled back by
// restoring a snapshot taken when they started. Writes outside a transaction hold
// txMu shared, so none of them can land between a snapshot and its restore.
type MemoryStore struct {
	mu   sync.Mutex
	txMu sync.RWMutex

	accounts     map[primitive.ObjectID]models.Account
	codes        map[primitive.ObjectID]models.OneTimeCode
	sessions     map[primitive.ObjectID]models.Session
	schedules    map[primitive.ObjectID]models.WeeklySchedule
	appointments map[primitive.ObjectID]models.Appointment
	logs         []models.AdminActionLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[primitive.ObjectID]models.Account),
		codes:        make(map[primitive.ObjectID]models.OneTimeCode),
		sessions:     make(map[primitive.ObjectID]models.Session),
		schedules:    make(map[primitive.ObjectID]models.WeeklySchedule),
		appointments: make(map[primitive.ObjectID]models.Appointment),
	}
}

func (s *MemoryStore) Accounts() AccountRepository         { return memAccounts{s} }
func (s *MemoryStore) Codes() CodeRepository               { return memCodes{s} }
func (s *MemoryStore) Sessions() SessionRepository         { return memSessions{s} }
func (s *MemoryStore) Schedules() ScheduleRepository       { return memSchedules{s} }
func (s *MemoryStore) Appointments() AppointmentRepository { return memAppointments{s} }
func (s *MemoryStore) Audit() AuditRepository              { return memAudit{s} }

func (s *MemoryStore) Close(context.Context) error { return nil }

type memSnapshot struct {
	accounts     map[primitive.ObjectID]models.Account
	codes        map[primitive.ObjectID]models.OneTimeCode
	sessions     map[primitive.ObjectID]models.Session
	schedules    map[primitive.ObjectID]models.WeeklySchedule
	appointments map[primitive.ObjectID]models.Appointment
	logs         []models.AdminActionLog
}

type memTxKey struct{}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryStore)
	return owner == s
}

// write is taken by every mutating call. The returned func releases it.
func (s *MemoryStore) write(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		accounts:     make(map[primitive.ObjectID]models.Account, len(s.accounts)),
		codes:        make(map[primitive.ObjectID]models.OneTimeCode, len(s.codes)),
		sessions:     make(map[primitive.ObjectID]models.Session, len(s.sessions)),
		schedules:    make(map[primitive.ObjectID]models.WeeklySchedule, len(s.schedules)),
		appointments: make(map[primitive.ObjectID]models.Appointment, len(s.appointments)),
		logs:         append([]models.AdminActionLog(nil), s.logs...),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.codes {
		snap.codes[k] = v
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v
	}
	for k, v := range s.schedules {
		snap.schedules[k] = v
	}
	for k, v := range s.appointments {
		snap.appointments[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.codes = snap.codes
	s.sessions = snap.sessions
	s.schedules = snap.schedules
	s.appointments = snap.appointments
	s.logs = snap.logs
}

// Stored values never share pointers with values handed to callers.

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAccount(a models.Account) models.Account {
	if a.Suspension != nil {
		v := *a.Suspension
		a.Suspension = &v
	}
	if a.VerifiedBy != nil {
		v := *a.VerifiedBy
		a.VerifiedBy = &v
	}
	a.VerifiedAt = cloneTime(a.VerifiedAt)
	a.PasswordResetExpires = cloneTime(a.PasswordResetExpires)
	a.PasswordResetUsedAt = cloneTime(a.PasswordResetUsedAt)
	a.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	a.LastLogin = cloneTime(a.LastLogin)
	a.LastLogout = cloneTime(a.LastLogout)
	if a.Doctor != nil {
		v := *a.Doctor
		a.Doctor = &v
	}
	if a.Patient != nil {
		v := *a.Patient
		v.DateOfBirth = cloneTime(v.DateOfBirth)
		v.Allergies = append([]string(nil), v.Allergies...)
		v.EmergencyContacts = append([]models.EmergencyContact(nil), v.EmergencyContacts...)
		if v.MedicalHistory != nil {
			h := *v.MedicalHistory
			h.Conditions = append([]string(nil), h.Conditions...)
			h.Allergies = append([]string(nil), h.Allergies...)
			h.Medications = append([]string(nil), h.Medications...)
			v.MedicalHistory = &h
		}
		a.Patient = &v
	}
	if a.Admin != nil {
		v := *a.Admin
		v.Permissions = append([]string(nil), v.Permissions...)
		a.Admin = &v
	}
	return a
}

func cloneSchedule(w models.WeeklySchedule) models.WeeklySchedule {
	days := make([]models.DaySchedule, len(w.Days))
	for i, d := range w.Days {
		days[i] = models.DaySchedule{Day: d.Day, Slots: append([]models.Slot(nil), d.Slots...)}
	}
	w.Days = days
	return w
}

func cloneAppointment(a models.Appointment) models.Appointment {
	a.CancelledAt = cloneTime(a.CancelledAt)
	return a
}

func cloneSession(v models.Session) models.Session {
	v.RevokedAt = cloneTime(v.RevokedAt)
	return v
}

func page[T any](items []T, skip, limit int) []T {
	if skip > len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ---------------------------------------------------------------------------
// accounts

type memAccounts struct{ s *MemoryStore }

func (r memAccounts) Create(ctx context.Context, a *models.Account) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	r.s.accounts[a.ID] = cloneAccount(*a)
	return nil
}

func (r memAccounts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAccount(a)
	return &out, nil
}

func (r memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Email == email {
			out := cloneAccount(a)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memAccounts) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if tokenHash != "" && a.PasswordResetTokenHash == tokenHash &&
			a.PasswordResetExpires != nil && now.Before(*a.PasswordResetExpires) {
			out := cloneAccount(a)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memAccounts) Update(ctx context.Context, a *models.Account) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range r.s.accounts {
		if id != a.ID && existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	r.s.accounts[a.ID] = cloneAccount(*a)
	return nil
}

func (r memAccounts) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

func (r memAccounts) match(f AccountFilter) []models.Account {
	var out []models.Account
	search := strings.ToLower(f.Search)
	for _, a := range r.s.accounts {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Active != nil && a.IsActive != *f.Active {
			continue
		}
		if f.EmailVerified != nil && a.IsEmailVerified != *f.EmailVerified {
			continue
		}
		if f.VerificationStatus != "" && a.VerificationStatus != f.VerificationStatus {
			continue
		}
		if f.Specialization != "" && (a.Doctor == nil || !strings.EqualFold(a.Doctor.Specialization, f.Specialization)) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) && !strings.Contains(strings.ToLower(a.Email), search) {
			continue
		}
		if f.CreatedSince != nil && a.CreatedAt.Before(*f.CreatedSince) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r memAccounts) List(_ context.Context, f AccountFilter) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := page(r.match(f), f.Skip, f.Limit)
	out := make([]*models.Account, 0, len(matched))
	for _, a := range matched {
		c := cloneAccount(a)
		out = append(out, &c)
	}
	return out, nil
}

func (r memAccounts) Count(_ context.Context, f AccountFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.match(f))), nil
}

// ---------------------------------------------------------------------------
// one-time codes

type memCodes struct{ s *MemoryStore }

func (r memCodes) Create(ctx context.Context, c *models.OneTimeCode) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.s.codes[c.ID] = *c
	return nil
}

func (r memCodes) FindLatestActive(_ context.Context, email string, purpose models.CodePurpose, now time.Time) (*models.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.OneTimeCode
	for _, c := range r.s.codes {
		if c.Email != email || c.Purpose != purpose || c.Verified || !now.Before(c.ExpiresAt) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID.Hex() > latest.ID.Hex()) {
			v := c
			latest = &v
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (r memCodes) ReserveAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[id]
	if !ok || c.Verified || c.Attempts >= max {
		return 0, ErrNotFound
	}
	c.Attempts++
	r.s.codes[id] = c
	return c.Attempts, nil
}

func (r memCodes) Consume(ctx context.Context, id primitive.ObjectID) (bool, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[id]
	if !ok || c.Verified {
		return false, nil
	}
	delete(r.s.codes, id)
	return true, nil
}

func (r memCodes) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.codes, id)
	return nil
}

func (r memCodes) DeleteUnverified(ctx context.Context, email string, purpose models.CodePurpose) (int64, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.codes {
		if c.Email == email && c.Purpose == purpose && !c.Verified {
			delete(r.s.codes, id)
			n++
		}
	}
	return n, nil
}

func (r memCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.codes {
		if !now.Before(c.ExpiresAt) {
			delete(r.s.codes, id)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// sessions

type memSessions struct{ s *MemoryStore }

func (r memSessions) Create(ctx context.Context, v *models.Session) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.TokenID == v.TokenID {
			return ErrDuplicate
		}
	}
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	r.s.sessions[v.ID] = cloneSession(*v)
	return nil
}

func (r memSessions) FindByID(_ context.Context, id primitive.ObjectID) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSession(v)
	return &out, nil
}

func (r memSessions) FindByTokenID(_ context.Context, tokenID string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.sessions {
		if v.TokenID == tokenID {
			out := cloneSession(v)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memSessions) ListActive(_ context.Context, accountID primitive.ObjectID, now time.Time) ([]*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Session{}
	for _, v := range r.s.sessions {
		if v.AccountID == accountID && v.Valid(now) {
			c := cloneSession(v)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r memSessions) Touch(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	v.LastActivity = now
	r.s.sessions[id] = v
	return nil
}

func (r memSessions) Revoke(ctx context.Context, id primitive.ObjectID, reason string, now time.Time) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	revokeSession(&v, reason, now)
	r.s.sessions[id] = v
	return nil
}

func revokeSession(v *models.Session, reason string, now time.Time) {
	v.IsActive = false
	v.RevokedReason = reason
	t := now
	v.RevokedAt = &t
	v.UpdatedAt = now
}

func (r memSessions) RevokeAll(ctx context.Context, accountID primitive.ObjectID, exceptTokenID, reason string, now time.Time) (int64, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.sessions {
		if v.AccountID != accountID || !v.IsActive || (exceptTokenID != "" && v.TokenID == exceptTokenID) {
			continue
		}
		revokeSession(&v, reason, now)
		r.s.sessions[id] = v
		n++
	}
	return n, nil
}

func (r memSessions) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.sessions {
		if v.IsActive && !now.Before(v.ExpiresAt) {
			revokeSession(&v, "Session expired", now)
			r.s.sessions[id] = v
			n++
		}
	}
	return n, nil
}

func (r memSessions) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.sessions {
		if !v.IsActive && v.UpdatedAt.Before(cutoff) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// schedules

type memSchedules struct{ s *MemoryStore }

func (r memSchedules) Get(_ context.Context, doctorID primitive.ObjectID) (*models.WeeklySchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.schedules[doctorID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSchedule(w)
	return &out, nil
}

func (r memSchedules) Upsert(ctx context.Context, w *models.WeeklySchedule) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.schedules[w.DoctorID]; ok {
		w.ID = existing.ID
		w.CreatedAt = existing.CreatedAt
	} else if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	r.s.schedules[w.DoctorID] = cloneSchedule(*w)
	return nil
}

func (r memSchedules) Delete(ctx context.Context, doctorID primitive.ObjectID) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.schedules, doctorID)
	return nil
}

// ---------------------------------------------------------------------------
// appointments

type memAppointments struct{ s *MemoryStore }

func (r memAppointments) slotTaken(a *models.Appointment) bool {
	if a.ActiveSlotKey == "" {
		return false
	}
	for id, existing := range r.s.appointments {
		if id != a.ID && existing.ActiveSlotKey == a.ActiveSlotKey {
			return true
		}
	}
	return false
}

func (r memAppointments) Create(ctx context.Context, a *models.Appointment) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if r.slotTaken(a) {
		return ErrDuplicate
	}
	r.s.appointments[a.ID] = cloneAppointment(*a)
	return nil
}

func (r memAppointments) FindByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAppointment(a)
	return &out, nil
}

func (r memAppointments) Update(ctx context.Context, a *models.Appointment, expected models.AppointmentStatus) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.appointments[a.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != expected {
		return ErrConflict
	}
	if r.slotTaken(a) {
		return ErrDuplicate
	}
	r.s.appointments[a.ID] = cloneAppointment(*a)
	return nil
}

func (r memAppointments) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func appointmentMatches(a models.Appointment, f AppointmentFilter) bool {
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.StartsFrom != nil && a.StartsAt.Before(*f.StartsFrom) {
		return false
	}
	if f.StartsBefore != nil && !a.StartsAt.Before(*f.StartsBefore) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r memAppointments) match(f AppointmentFilter) []models.Appointment {
	var out []models.Appointment
	for _, a := range r.s.appointments {
		if appointmentMatches(a, f) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

func (r memAppointments) List(_ context.Context, f AppointmentFilter) ([]*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := page(r.match(f), f.Skip, f.Limit)
	out := make([]*models.Appointment, 0, len(matched))
	for _, a := range matched {
		c := cloneAppointment(a)
		out = append(out, &c)
	}
	return out, nil
}

func (r memAppointments) Count(_ context.Context, f AppointmentFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.match(f))), nil
}

func (r memAppointments) HeldSlots(_ context.Context, doctorID primitive.ObjectID, date string) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	held := []int{}
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Status.HoldsSlot() {
			held = append(held, a.SlotNumber)
		}
	}
	sort.Ints(held)
	return held, nil
}

func (r memAppointments) CancelFuture(ctx context.Context, f AppointmentFilter, from time.Time, by, reason string, now time.Time) (int64, error) {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f.Statuses = []models.AppointmentStatus{models.StatusPending, models.StatusScheduled}
	f.StartsFrom = &from
	var n int64
	for id, a := range r.s.appointments {
		if !appointmentMatches(a, f) {
			continue
		}
		a.Cancel(by, reason, now)
		r.s.appointments[id] = a
		n++
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// audit

type memAudit struct{ s *MemoryStore }

func (r memAudit) Append(ctx context.Context, l *models.AdminActionLog) error {
	defer r.s.write(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	r.s.logs = append(r.s.logs, *l)
	return nil
}

func (r memAudit) match(f AuditFilter) []models.AdminActionLog {
	var out []models.AdminActionLog
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		l := r.s.logs[i]
		if f.AdminID != nil && l.AdminID != *f.AdminID {
			continue
		}
		if f.TargetUserID != nil && l.TargetUserID != *f.TargetUserID {
			continue
		}
		if f.ActionType != "" && l.ActionType != f.ActionType {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (r memAudit) List(_ context.Context, f AuditFilter) ([]*models.AdminActionLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := page(r.match(f), f.Skip, f.Limit)
	out := make([]*models.AdminActionLog, 0, len(matched))
	for i := range matched {
		out = append(out, &matched[i])
	}
	return out, nil
}

func (r memAudit) Count(_ context.Context, f AuditFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.match(f))), nil
}
