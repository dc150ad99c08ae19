// Package repository defines the storage contracts for accounts, codes, sessions,
// schedules, appointments and the admin audit trail, with MongoDB and in-memory
// implementations.
package repository

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrConflict means the document no longer matches the state the caller read.
	ErrConflict = errors.New("repository: document changed")
)

type AccountFilter struct {
	Role               role.Role
	Active             *bool
	EmailVerified      *bool
	VerificationStatus models.VerificationStatus
	Specialization     string
	// Search matches name or email, case-insensitive.
	Search       string
	CreatedSince *time.Time
	Skip         int
	Limit        int
}

type AccountRepository interface {
	// Create fails with ErrDuplicate when the email is already taken by any role.
	Create(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	// FindByResetToken returns the account whose unexpired reset token hashes to tokenHash.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)
	Update(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, f AccountFilter) ([]*models.Account, error)
	Count(ctx context.Context, f AccountFilter) (int64, error)
}

type CodeRepository interface {
	Create(ctx context.Context, c *models.OneTimeCode) error
	// FindLatestActive returns the newest unverified code for email and purpose that
	// expires strictly after now.
	FindLatestActive(ctx context.Context, email string, purpose models.CodePurpose, now time.Time) (*models.OneTimeCode, error)
	// ReserveAttempt counts one attempt against an unverified code that still has fewer
	// than max attempts and returns the new count. ErrNotFound when no attempt is left.
	ReserveAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error)
	// Consume deletes the code only if it is still unverified; false means someone else consumed it.
	Consume(ctx context.Context, id primitive.ObjectID) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteUnverified(ctx context.Context, email string, purpose models.CodePurpose) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Session, error)
	FindByTokenID(ctx context.Context, tokenID string) (*models.Session, error)
	ListActive(ctx context.Context, accountID primitive.ObjectID, now time.Time) ([]*models.Session, error)
	Touch(ctx context.Context, id primitive.ObjectID, now time.Time) error
	Revoke(ctx context.Context, id primitive.ObjectID, reason string, now time.Time) error
	// RevokeAll deactivates every active session of the account except exceptTokenID, if set.
	RevokeAll(ctx context.Context, accountID primitive.ObjectID, exceptTokenID, reason string, now time.Time) (int64, error)
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ScheduleRepository interface {
	Get(ctx context.Context, doctorID primitive.ObjectID) (*models.WeeklySchedule, error)
	Upsert(ctx context.Context, s *models.WeeklySchedule) error
	Delete(ctx context.Context, doctorID primitive.ObjectID) error
}

type AppointmentFilter struct {
	DoctorID     *primitive.ObjectID
	PatientID    *primitive.ObjectID
	Statuses     []models.AppointmentStatus
	Date         string
	StartsFrom   *time.Time
	StartsBefore *time.Time
	Skip         int
	Limit        int
}

type AppointmentRepository interface {
	// Create and Update fail with ErrDuplicate when another appointment holds the same slot key.
	Create(ctx context.Context, a *models.Appointment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	// Update writes a only while the stored status is still expected, ErrConflict otherwise.
	Update(ctx context.Context, a *models.Appointment, expected models.AppointmentStatus) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, f AppointmentFilter) ([]*models.Appointment, error)
	Count(ctx context.Context, f AppointmentFilter) (int64, error)
	// HeldSlots returns the slot numbers held by non-cancelled appointments.
	HeldSlots(ctx context.Context, doctorID primitive.ObjectID, date string) ([]int, error)
	// CancelFuture cancels every pending or scheduled appointment matching the
	// party filter that starts at or after from.
	CancelFuture(ctx context.Context, f AppointmentFilter, from time.Time, by, reason string, now time.Time) (int64, error)
}

type AuditFilter struct {
	AdminID      *primitive.ObjectID
	TargetUserID *primitive.ObjectID
	ActionType   models.AdminActionType
	Skip         int
	Limit        int
}

type AuditRepository interface {
	Append(ctx context.Context, l *models.AdminActionLog) error
	List(ctx context.Context, f AuditFilter) ([]*models.AdminActionLog, error)
	Count(ctx context.Context, f AuditFilter) (int64, error)
}

// Store groups the repositories and the transactional boundary across them.
type Store interface {
	Accounts() AccountRepository
	Codes() CodeRepository
	Sessions() SessionRepository
	Schedules() ScheduleRepository
	Appointments() AppointmentRepository
	Audit() AuditRepository
	// RunInTransaction runs fn so that its writes commit together or not at all.
	// Repository calls inside fn must use the ctx passed to fn.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Close(ctx context.Context) error
}
