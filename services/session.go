package services

import (
	"HealthConnect/metrics"
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/util"
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	RevokeSingleDevice   = "New device login - single device enforcement"
	RevokeLogout         = "User logout"
	RevokeByUser         = "Revoked by user"
	RevokePasswordChange = "Password changed"
	RevokePasswordReset  = "Password reset"
	RevokeSuspended      = "Account suspended by admin"
	RevokeRejected       = "Account rejected by admin"
	RevokeAccountDeleted = "Account deleted"
	RevokeRoleChanged    = "Account role changed by admin"
	RevokeExpired        = "Session expired"
)

var revokeLabels = map[string]string{
	RevokeSingleDevice:   "single_device",
	RevokeLogout:         "logout",
	RevokeByUser:         "user",
	RevokePasswordChange: "password_change",
	RevokePasswordReset:  "password_reset",
	RevokeSuspended:      "suspended",
	RevokeRejected:       "rejected",
	RevokeAccountDeleted: "account_deleted",
	RevokeRoleChanged:    "role_changed",
	RevokeExpired:        "expired",
}

func countRevoked(reason string, n int64) {
	if n <= 0 {
		return
	}
	label, ok := revokeLabels[reason]
	if !ok {
		label = "other"
	}
	metrics.SessionsRevoked.WithLabelValues(label).Add(float64(n))
}

type SessionService struct {
	deps *Deps
}

func (s *SessionService) create(ctx context.Context, acc *models.Account, meta RequestMeta) (*models.Session, error) {
	now := s.deps.Now()
	sess := &models.Session{
		AccountID:    acc.ID,
		Role:         acc.Role,
		TokenID:      uuid.NewString(),
		Device:       ParseDevice(meta.UserAgent),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		LastActivity: now,
		ExpiresAt:    now.Add(s.deps.Config.Session.TTL),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Store.Sessions().Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

/*
* Find the session behind a token id
* Expired sessions are revoked on sight
* Record the activity
 */
func (s *SessionService) Authenticate(ctx context.Context, tokenID string) (*models.Session, error) {
	log := s.deps.Logger
	sess, err := s.deps.Store.Sessions().FindByTokenID(ctx, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.NewError(util.KindUnauthenticated, util.SESSION_EXPIRED)
	}
	if err != nil {
		log.Error("error loading session", zap.Error(err))
		return nil, util.InternalError(err)
	}
	now := s.deps.Now()
	if !sess.Valid(now) {
		if sess.IsActive {
			if err := s.deps.Store.Sessions().Revoke(ctx, sess.ID, RevokeExpired, now); err != nil {
				log.Warn("error revoking expired session", zap.Error(err))
			} else {
				countRevoked(RevokeExpired, 1)
			}
		}
		return nil, util.NewError(util.KindUnauthenticated, util.SESSION_EXPIRED)
	}
	if err := s.deps.Store.Sessions().Touch(ctx, sess.ID, now); err != nil {
		log.Warn("error touching session", zap.Error(err))
	}
	return sess, nil
}

func (s *SessionService) List(ctx context.Context, accountID primitive.ObjectID) ([]*models.Session, error) {
	list, err := s.deps.Store.Sessions().ListActive(ctx, accountID, s.deps.Now())
	if err != nil {
		s.deps.Logger.Error("error listing sessions", zap.Error(err))
		return nil, util.InternalError(err)
	}
	if list == nil {
		list = []*models.Session{}
	}
	return list, nil
}

// Revoke ends one of the caller's own sessions. Someone else's session looks absent.
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID primitive.ObjectID) error {
	sess, err := s.deps.Store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.deps.Logger.Error("error loading session", zap.Error(err))
		}
		return storeError(err, util.SESSION_NOT_FOUND)
	}
	if sess.AccountID != accountID || !sess.IsActive {
		return util.NewError(util.KindNotFound, util.SESSION_NOT_FOUND)
	}
	if err := s.deps.Store.Sessions().Revoke(ctx, sess.ID, RevokeByUser, s.deps.Now()); err != nil {
		s.deps.Logger.Error("error revoking session", zap.Error(err))
		return util.InternalError(err)
	}
	countRevoked(RevokeByUser, 1)
	return nil
}

// RevokeAll ends every active session of the account except exceptTokenID.
func (s *SessionService) RevokeAll(ctx context.Context, accountID primitive.ObjectID, exceptTokenID, reason string) (int64, error) {
	n, err := s.deps.Store.Sessions().RevokeAll(ctx, accountID, exceptTokenID, reason, s.deps.Now())
	if err != nil {
		s.deps.Logger.Error("error revoking sessions", zap.String("reason", reason), zap.Error(err))
		return 0, err
	}
	countRevoked(reason, n)
	return n, nil
}

// CleanupExpired soft-revokes sessions whose expiry has passed.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.deps.Store.Sessions().RevokeExpired(ctx, s.deps.Now())
	if err != nil {
		s.deps.Logger.Error("error revoking expired sessions", zap.Error(err))
		return 0, err
	}
	countRevoked(RevokeExpired, n)
	return n, nil
}

// DeleteOld hard-deletes inactive sessions older than the retention window.
func (s *SessionService) DeleteOld(ctx context.Context) (int64, error) {
	cutoff := s.deps.Now().Add(-s.deps.Config.Session.Retention)
	n, err := s.deps.Store.Sessions().DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		s.deps.Logger.Error("error deleting old sessions", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// ParseDevice derives a coarse browser, OS and device class from a user agent.
func ParseDevice(ua string) models.Device {
	d := models.Device{Browser: "Unknown", OS: "Unknown", Device: "Desktop"}
	if ua == "" {
		return d
	}
	l := strings.ToLower(ua)

	switch {
	case strings.Contains(l, "edg/"):
		d.Browser = "Edge"
	case strings.Contains(l, "opr/") || strings.Contains(l, "opera"):
		d.Browser = "Opera"
	case strings.Contains(l, "firefox/"):
		d.Browser = "Firefox"
	case strings.Contains(l, "chrome/"):
		d.Browser = "Chrome"
	case strings.Contains(l, "safari/"):
		d.Browser = "Safari"
	case strings.Contains(l, "curl/"):
		d.Browser = "curl"
	}

	switch {
	case strings.Contains(l, "windows"):
		d.OS = "Windows"
	case strings.Contains(l, "android"):
		d.OS = "Android"
	case strings.Contains(l, "iphone") || strings.Contains(l, "ipad") || strings.Contains(l, "ios"):
		d.OS = "iOS"
	case strings.Contains(l, "mac os") || strings.Contains(l, "macintosh"):
		d.OS = "macOS"
	case strings.Contains(l, "linux"):
		d.OS = "Linux"
	}

	switch {
	case strings.Contains(l, "ipad") || strings.Contains(l, "tablet"):
		d.Device = "Tablet"
	case strings.Contains(l, "mobile") || strings.Contains(l, "iphone") || strings.Contains(l, "android"):
		d.Device = "Mobile"
	}
	return d
}
