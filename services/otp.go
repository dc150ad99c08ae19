package services

import (
	"HealthConnect/metrics"
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/util"
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type OTPService struct {
	deps *Deps
}

func codeLimitKey(purpose models.CodePurpose, email string) string {
	return "otp:" + string(purpose) + ":" + email
}

/*
* Check the per email and purpose cooldown
* Generate the code and store only its bcrypt hash
* Earlier unverified codes for the same email and purpose are dropped
 */
func (s *OTPService) Issue(ctx context.Context, email string, purpose models.CodePurpose) (string, error) {
	log := s.deps.Logger
	res, err := s.deps.CodeLimiter.Allow(ctx, codeLimitKey(purpose, email))
	if err != nil {
		log.Warn("code limiter unavailable, issuing anyway", zap.String("purpose", string(purpose)), zap.Error(err))
	} else if !res.Allowed {
		log.Info("code issue throttled", zap.String("email", email), zap.String("purpose", string(purpose)))
		return "", util.ErrRateLimited.WithDetail("retryAfter", res.RetrySeconds())
	}

	code, err := s.deps.GenerateCode(s.deps.Config.OTP.Length)
	if err != nil {
		log.Error("error generating code", zap.Error(err))
		return "", util.InternalError(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.deps.Config.BcryptCost)
	if err != nil {
		log.Error("error hashing code", zap.Error(err))
		return "", util.InternalError(err)
	}

	now := s.deps.Now()
	if _, err := s.deps.Store.Codes().DeleteUnverified(ctx, email, purpose); err != nil {
		log.Error("error dropping previous codes", zap.Error(err))
		return "", util.InternalError(err)
	}
	rec := &models.OneTimeCode{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.deps.Config.OTP.TTL),
		CreatedAt: now,
	}
	if err := s.deps.Store.Codes().Create(ctx, rec); err != nil {
		log.Error("error saving code", zap.Error(err))
		return "", util.InternalError(err)
	}
	metrics.CodesIssued.WithLabelValues(string(purpose)).Inc()
	return code, nil
}

/*
* Find the newest unverified code that has not expired
* Reserve an attempt before comparing, so parallel guesses share the same budget
* A wrong value on the last reserved attempt discards the code
* The returned record still has to be consumed
 */
func (s *OTPService) Check(ctx context.Context, email, code string, purpose models.CodePurpose) (*models.OneTimeCode, error) {
	log := s.deps.Logger
	codes := s.deps.Store.Codes()
	maxAttempts := s.deps.Config.OTP.MaxAttempts

	rec, err := codes.FindLatestActive(ctx, email, purpose, s.deps.Now())
	if errors.Is(err, repository.ErrNotFound) {
		metrics.CodeVerifications.WithLabelValues(string(purpose), "missing").Inc()
		return nil, util.ErrInvalidOrExpiredCode
	}
	if err != nil {
		log.Error("error loading code", zap.Error(err))
		return nil, util.InternalError(err)
	}
	attempts, err := codes.ReserveAttempt(ctx, rec.ID, maxAttempts)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.CodeVerifications.WithLabelValues(string(purpose), "exhausted").Inc()
		return nil, util.NewError(util.KindInvalidOrExpiredCode, util.OTP_ATTEMPTS_EXHAUSTED)
	}
	if err != nil {
		log.Error("error counting attempt", zap.Error(err))
		return nil, util.InternalError(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		metrics.CodeVerifications.WithLabelValues(string(purpose), "mismatch").Inc()
		if attempts >= maxAttempts {
			log.Warn("code discarded after failed attempts", zap.String("email", email), zap.String("purpose", string(purpose)))
			s.discard(ctx, rec)
			return nil, util.NewError(util.KindInvalidOrExpiredCode, util.OTP_ATTEMPTS_EXHAUSTED)
		}
		return nil, util.ErrInvalidOrExpiredCode.WithDetail("attemptsLeft", maxAttempts-attempts)
	}
	return rec, nil
}

// Consume deletes a checked code. Only one caller can win, so a replayed code fails.
func (s *OTPService) Consume(ctx context.Context, rec *models.OneTimeCode) error {
	ok, err := s.deps.Store.Codes().Consume(ctx, rec.ID)
	if err != nil {
		s.deps.Logger.Error("error consuming code", zap.Error(err))
		return util.InternalError(err)
	}
	if !ok {
		metrics.CodeVerifications.WithLabelValues(string(rec.Purpose), "replayed").Inc()
		return util.ErrInvalidOrExpiredCode
	}
	metrics.CodeVerifications.WithLabelValues(string(rec.Purpose), "ok").Inc()
	if err := s.deps.CodeLimiter.Reset(ctx, codeLimitKey(rec.Purpose, rec.Email)); err != nil {
		s.deps.Logger.Warn("error resetting code limiter", zap.Error(err))
	}
	return nil
}

// discard deletes an exhausted code. The issue cooldown stays in place.
func (s *OTPService) discard(ctx context.Context, rec *models.OneTimeCode) {
	if err := s.deps.Store.Codes().Delete(ctx, rec.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.deps.Logger.Error("error discarding code", zap.Error(err))
	}
}

// PurgeExpired removes codes past their expiry.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.deps.Store.Codes().DeleteExpired(ctx, s.deps.Now())
	if err != nil {
		s.deps.Logger.Error("error purging expired codes", zap.Error(err))
		return 0, err
	}
	return n, nil
}
