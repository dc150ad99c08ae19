package services

import (
	"HealthConnect/cache"
	"HealthConnect/metrics"
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/role"
	"HealthConnect/util"
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	ActionSuspend  = "suspend"
	ActionActivate = "activate"

	defaultRejectionReason = "Account verification rejected by admin"
	registrationWindow     = 30 * 24 * time.Hour
)

type AdminService struct {
	deps *Deps
}

type ToggleInput struct {
	UserType string
	Action   string
	Reason   string
}

type VerifyInput struct {
	UserType string
	Status   string
	Reason   string
}

type RoleChangeInput struct {
	UserType string
	NewRole  string
	Reason   string
}

type RoleChangeResult struct {
	User                  *models.Account `json:"user"`
	CancelledAppointments int64           `json:"cancelledAppointments"`
	RevokedSessions       int64           `json:"revokedSessions"`
}

type ToggleResult struct {
	User                  *models.Account `json:"user"`
	CancelledAppointments int64           `json:"cancelledAppointments"`
	RevokedSessions       int64           `json:"revokedSessions"`
}

type UserQuery struct {
	Role               string
	Status             string
	VerificationStatus string
	Search             string
	Page               int
	Limit              int
}

type LogQuery struct {
	ActionType   string
	TargetUserID string
	AdminID      string
	Page         int
	Limit        int
}

type RoleStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Pending   int64 `json:"pending"`
	Suspended int64 `json:"suspended"`
}

type AppointmentStats struct {
	Today    int64            `json:"today"`
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

type DashboardStats struct {
	Doctors             RoleStats        `json:"doctors"`
	Patients            RoleStats        `json:"patients"`
	Appointments        AppointmentStats `json:"appointments"`
	RecentRegistrations int64            `json:"recentRegistrations"`
}

func parseTargetType(s string) (role.Role, error) {
	r, ok := role.Parse(s)
	if !ok || !r.SelfRegistrable() {
		return "", util.ValidationError(util.INVALID_TARGET_TYPE)
	}
	return r, nil
}

func (s *AdminService) loadTarget(ctx context.Context, id primitive.ObjectID, r role.Role) (*models.Account, error) {
	acc, err := s.deps.Store.Accounts().FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.deps.Logger.Error("error loading target user", zap.Error(err))
		}
		return nil, storeError(err, util.USER_NOT_FOUND)
	}
	if acc.Role != r {
		return nil, util.NewError(util.KindNotFound, util.USER_NOT_FOUND)
	}
	return acc, nil
}

/*
* Suspend or reactivate a doctor or patient
* Suspension ends the target's sessions and, for doctors, cancels their upcoming appointments
* Everything, audit entry included, commits together
 */
func (s *AdminService) ToggleUserStatus(ctx context.Context, adminID, targetID primitive.ObjectID, in ToggleInput, meta RequestMeta) (*ToggleResult, error) {
	log := s.deps.Logger
	r, err := parseTargetType(in.UserType)
	if err != nil {
		return nil, err
	}
	if in.Action != ActionSuspend && in.Action != ActionActivate {
		return nil, util.ValidationError(util.INVALID_TOGGLE_ACTION)
	}
	target, err := s.loadTarget(ctx, targetID, r)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	reason := strings.TrimSpace(in.Reason)
	res := &ToggleResult{User: target}
	actionType := models.ActionUserActivation
	if in.Action == ActionSuspend {
		actionType = models.ActionUserSuspension
		if reason == "" {
			reason = util.DEFAULT_SUSPENSION_REASON
		}
	}

	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		before := target.Snapshot()
		res.CancelledAppointments, res.RevokedSessions = 0, 0
		if in.Action == ActionSuspend {
			target.IsActive = false
			target.Suspension = &models.Suspension{Reason: reason, SuspendedAt: now, SuspendedBy: adminID}
			n, err := s.deps.Store.Sessions().RevokeAll(ctx, target.ID, "", RevokeSuspended, now)
			if err != nil {
				return err
			}
			res.RevokedSessions = n
			if target.Role == role.Doctor {
				n, err := s.deps.Store.Appointments().CancelFuture(ctx, appointmentsOf(role.Doctor, target.ID),
					now, models.CancelledBySystem, util.SUSPENSION_CANCEL_REASON, now)
				if err != nil {
					return err
				}
				res.CancelledAppointments = n
			}
		} else {
			target.IsActive = true
			target.Suspension = nil
		}
		target.UpdatedAt = now
		if err := s.deps.Store.Accounts().Update(ctx, target); err != nil {
			return err
		}
		after := target.Snapshot()
		if res.CancelledAppointments > 0 {
			after["cancelledAppointments"] = res.CancelledAppointments
		}
		return s.deps.Store.Audit().Append(ctx, &models.AdminActionLog{
			AdminID:        adminID,
			ActionType:     actionType,
			TargetUserID:   target.ID,
			TargetUserType: target.Role.TargetType(),
			PreviousData:   before,
			NewData:        after,
			Reason:         reason,
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, txError(log, "error toggling user status", err)
	}
	countRevoked(RevokeSuspended, res.RevokedSessions)
	metrics.AdminActions.WithLabelValues(string(actionType)).Inc()
	log.Info("user status changed",
		zap.String("target", target.ID.Hex()),
		zap.String("action", in.Action),
		zap.Int64("cancelledAppointments", res.CancelledAppointments))
	return res, nil
}

/*
* Set the verification status of a doctor or patient
* Rejection also deactivates the account and ends its sessions
 */
func (s *AdminService) VerifyUser(ctx context.Context, adminID, targetID primitive.ObjectID, in VerifyInput, meta RequestMeta) (*models.Account, error) {
	log := s.deps.Logger
	r, err := parseTargetType(in.UserType)
	if err != nil {
		return nil, err
	}
	status := models.VerificationStatus(in.Status)
	if !status.Valid() {
		return nil, util.ValidationError(util.INVALID_VERIFICATION_STATUS)
	}
	target, err := s.loadTarget(ctx, targetID, r)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	reason := strings.TrimSpace(in.Reason)
	var revoked int64
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		before := target.Snapshot()
		target.VerificationStatus = status
		target.VerifiedBy = &adminID
		target.VerifiedAt = &now
		if status == models.VerificationRejected {
			if reason == "" {
				reason = defaultRejectionReason
			}
			target.IsActive = false
			target.Suspension = &models.Suspension{Reason: reason, SuspendedAt: now, SuspendedBy: adminID}
			n, err := s.deps.Store.Sessions().RevokeAll(ctx, target.ID, "", RevokeRejected, now)
			if err != nil {
				return err
			}
			revoked = n
		}
		target.UpdatedAt = now
		if err := s.deps.Store.Accounts().Update(ctx, target); err != nil {
			return err
		}
		return s.deps.Store.Audit().Append(ctx, &models.AdminActionLog{
			AdminID:        adminID,
			ActionType:     models.ActionUserVerification,
			TargetUserID:   target.ID,
			TargetUserType: target.Role.TargetType(),
			PreviousData:   before,
			NewData:        target.Snapshot(),
			Reason:         reason,
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, txError(log, "error verifying user", err)
	}
	countRevoked(RevokeRejected, revoked)
	metrics.AdminActions.WithLabelValues(string(models.ActionUserVerification)).Inc()
	return target, nil
}

/*
* Super admins only
* Move a doctor or patient to the other role
* Upcoming appointments on the old side are cancelled, a former doctor loses the schedule
* A new doctor waits for verification, and every session ends since tokens carry the role
 */
func (s *AdminService) UpdateUserRole(ctx context.Context, adminID, targetID primitive.ObjectID, in RoleChangeInput, meta RequestMeta) (*RoleChangeResult, error) {
	log := s.deps.Logger
	actor, err := s.deps.Store.Accounts().FindByID(ctx, adminID)
	if err != nil {
		return nil, storeError(err, util.USER_NOT_FOUND)
	}
	if !actor.IsSuperAdmin() {
		return nil, util.NewError(util.KindNotAuthorized, util.SUPER_ADMIN_REQUIRED)
	}
	from, err := parseTargetType(in.UserType)
	if err != nil {
		return nil, err
	}
	to, ok := role.Parse(in.NewRole)
	if !ok || !to.SelfRegistrable() {
		return nil, util.ValidationError(util.INVALID_NEW_ROLE)
	}
	if to == from {
		return nil, util.ValidationError(util.ROLE_UNCHANGED)
	}
	target, err := s.loadTarget(ctx, targetID, from)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	res := &RoleChangeResult{User: target}
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		before := target.Snapshot()
		before["role"] = string(from)
		n, err := s.deps.Store.Appointments().CancelFuture(ctx, appointmentsOf(from, target.ID),
			now, models.CancelledBySystem, util.ROLE_CHANGE_CANCEL_REASON, now)
		if err != nil {
			return err
		}
		res.CancelledAppointments = n
		if from == role.Doctor {
			if err := s.deps.Store.Schedules().Delete(ctx, target.ID); err != nil {
				return err
			}
		}
		if res.RevokedSessions, err = s.deps.Store.Sessions().RevokeAll(ctx, target.ID, "", RevokeRoleChanged, now); err != nil {
			return err
		}

		target.SwitchRole(to)
		if to == role.Doctor {
			target.VerificationStatus = models.VerificationPending
			target.VerifiedBy, target.VerifiedAt = nil, nil
		}
		target.UpdatedAt = now
		if err := s.deps.Store.Accounts().Update(ctx, target); err != nil {
			return err
		}
		after := target.Snapshot()
		after["role"] = string(to)
		if n > 0 {
			after["cancelledAppointments"] = n
		}
		return s.deps.Store.Audit().Append(ctx, &models.AdminActionLog{
			AdminID:        adminID,
			ActionType:     models.ActionRoleChange,
			TargetUserID:   target.ID,
			TargetUserType: from.TargetType(),
			PreviousData:   before,
			NewData:        after,
			Reason:         strings.TrimSpace(in.Reason),
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, txError(log, "error changing user role", err)
	}
	if from == role.Doctor {
		if err := s.deps.Cache.Delete(ctx, cache.ScheduleKey(target.ID.Hex())); err != nil {
			log.Warn("error invalidating schedule cache", zap.Error(err))
		}
	}
	countRevoked(RevokeRoleChanged, res.RevokedSessions)
	metrics.AdminActions.WithLabelValues(string(models.ActionRoleChange)).Inc()
	log.Info("user role changed",
		zap.String("target", target.ID.Hex()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("cancelledAppointments", res.CancelledAppointments))
	return res, nil
}

func (s *AdminService) roleStats(ctx context.Context, r role.Role) (RoleStats, error) {
	accounts := s.deps.Store.Accounts()
	var st RoleStats
	var err error
	if st.Total, err = accounts.Count(ctx, repository.AccountFilter{Role: r}); err != nil {
		return st, err
	}
	if st.Active, err = accounts.Count(ctx, repository.AccountFilter{Role: r, Active: boolPtr(true)}); err != nil {
		return st, err
	}
	if st.Suspended, err = accounts.Count(ctx, repository.AccountFilter{Role: r, Active: boolPtr(false)}); err != nil {
		return st, err
	}
	st.Pending, err = accounts.Count(ctx, repository.AccountFilter{Role: r, VerificationStatus: models.VerificationPending})
	return st, err
}

/*
* Per role counts, today's and all appointments, registrations over the last 30 days
 */
func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	log := s.deps.Logger
	var out DashboardStats
	var err error
	if out.Doctors, err = s.roleStats(ctx, role.Doctor); err != nil {
		log.Error("error counting doctors", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if out.Patients, err = s.roleStats(ctx, role.Patient); err != nil {
		log.Error("error counting patients", zap.Error(err))
		return nil, util.InternalError(err)
	}

	appts := s.deps.Store.Appointments()
	now := s.deps.Now()
	today := now.In(s.deps.Config.Location()).Format(dateLayout)
	if out.Appointments.Today, err = appts.Count(ctx, repository.AppointmentFilter{Date: today}); err != nil {
		log.Error("error counting today's appointments", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if out.Appointments.Total, err = appts.Count(ctx, repository.AppointmentFilter{}); err != nil {
		log.Error("error counting appointments", zap.Error(err))
		return nil, util.InternalError(err)
	}
	out.Appointments.ByStatus = make(map[string]int64)
	for _, st := range []models.AppointmentStatus{models.StatusPending, models.StatusScheduled, models.StatusCompleted, models.StatusCancelled, models.StatusRescheduled} {
		n, err := appts.Count(ctx, repository.AppointmentFilter{Statuses: []models.AppointmentStatus{st}})
		if err != nil {
			log.Error("error counting appointments by status", zap.Error(err))
			return nil, util.InternalError(err)
		}
		out.Appointments.ByStatus[string(st)] = n
	}

	since := now.Add(-registrationWindow)
	if out.RecentRegistrations, err = s.deps.Store.Accounts().Count(ctx, repository.AccountFilter{CreatedSince: &since}); err != nil {
		log.Error("error counting registrations", zap.Error(err))
		return nil, util.InternalError(err)
	}
	return &out, nil
}

func (s *AdminService) ListUsers(ctx context.Context, q UserQuery) (Page[*models.Account], error) {
	page, limit, skip := normalizePage(q.Page, q.Limit)
	f := repository.AccountFilter{Search: strings.TrimSpace(q.Search)}
	if q.Role != "" {
		r, ok := role.Parse(q.Role)
		if !ok {
			return Page[*models.Account]{}, util.ValidationError(util.INVALID_LOGIN_ROLE)
		}
		f.Role = r
	}
	switch q.Status {
	case "":
	case "active":
		f.Active = boolPtr(true)
	case "suspended":
		f.Active = boolPtr(false)
	default:
		return Page[*models.Account]{}, util.ValidationError("status must be active or suspended")
	}
	if q.VerificationStatus != "" {
		vs := models.VerificationStatus(q.VerificationStatus)
		if !vs.Valid() {
			return Page[*models.Account]{}, util.ValidationError(util.INVALID_VERIFICATION_STATUS)
		}
		f.VerificationStatus = vs
	}

	total, err := s.deps.Store.Accounts().Count(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error counting users", zap.Error(err))
		return Page[*models.Account]{}, util.InternalError(err)
	}
	f.Skip, f.Limit = skip, limit
	list, err := s.deps.Store.Accounts().List(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error listing users", zap.Error(err))
		return Page[*models.Account]{}, util.InternalError(err)
	}
	return newPage(list, page, limit, total), nil
}

func parseOptionalID(s string) (*primitive.ObjectID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, util.ValidationError("invalid id: " + s)
	}
	return &id, nil
}

func (s *AdminService) ListLogs(ctx context.Context, q LogQuery) (Page[*models.AdminActionLog], error) {
	page, limit, skip := normalizePage(q.Page, q.Limit)
	var f repository.AuditFilter
	if q.ActionType != "" {
		at := models.AdminActionType(q.ActionType)
		if !at.Valid() {
			return Page[*models.AdminActionLog]{}, util.ValidationError("invalid actionType")
		}
		f.ActionType = at
	}
	var err error
	if f.TargetUserID, err = parseOptionalID(q.TargetUserID); err != nil {
		return Page[*models.AdminActionLog]{}, err
	}
	if f.AdminID, err = parseOptionalID(q.AdminID); err != nil {
		return Page[*models.AdminActionLog]{}, err
	}

	total, err := s.deps.Store.Audit().Count(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error counting logs", zap.Error(err))
		return Page[*models.AdminActionLog]{}, util.InternalError(err)
	}
	f.Skip, f.Limit = skip, limit
	list, err := s.deps.Store.Audit().List(ctx, f)
	if err != nil {
		s.deps.Logger.Error("error listing logs", zap.Error(err))
		return Page[*models.AdminActionLog]{}, util.InternalError(err)
	}
	return newPage(list, page, limit, total), nil
}
