package services

import (
	"HealthConnect/models"
	"HealthConnect/repository"
	"HealthConnect/util"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenBytes = 32

func newResetToken() (token, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validateNewPassword(newPassword, confirmPassword string) error {
	if len(newPassword) < minPasswordLength {
		return util.ValidationError(util.PASSWORD_TOO_SHORT)
	}
	if newPassword != confirmPassword {
		return util.ValidationError(util.PASSWORDS_DO_NOT_MATCH)
	}
	return nil
}

/*
* Account must exist and still have a reset left
* Throttle through the password-reset code namespace
* Store only the token hash and mail the link, a failed mail clears the token again
 */
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	log := s.deps.Logger
	email = normalizeEmail(email)
	if !validEmail(email) {
		return util.ValidationError(util.INVALID_EMAIL)
	}
	accounts := s.deps.Store.Accounts()
	acc, err := accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("error loading account", zap.Error(err))
		}
		return storeError(err, util.USER_NOT_FOUND)
	}
	if acc.PasswordResetCount >= s.deps.Config.PasswordReset.MaxResets {
		return util.ErrResetLimitExceeded
	}

	limitKey := codeLimitKey(models.PurposePasswordReset, email)
	res, err := s.deps.CodeLimiter.Allow(ctx, limitKey)
	if err != nil {
		log.Warn("reset limiter unavailable", zap.Error(err))
	} else if !res.Allowed {
		return util.ErrRateLimited.WithDetail("retryAfter", res.RetrySeconds())
	}

	token, hash, err := newResetToken()
	if err != nil {
		log.Error("error generating reset token", zap.Error(err))
		return util.InternalError(err)
	}
	now := s.deps.Now()
	expires := now.Add(s.deps.Config.PasswordReset.TokenTTL)
	acc.PasswordResetTokenHash = hash
	acc.PasswordResetExpires = &expires
	acc.UpdatedAt = now
	if err := accounts.Update(ctx, acc); err != nil {
		log.Error("error saving reset token", zap.Error(err))
		return util.InternalError(err)
	}

	url := strings.TrimRight(s.deps.Config.Mail.FrontendURL, "/") + "/reset-password/" + token
	if err := s.deps.Notifier.SendPasswordReset(ctx, acc.Email, acc.Name, url); err != nil {
		log.Error("error sending reset mail, clearing token", zap.String("email", acc.Email), zap.Error(err))
		acc.ClearResetToken()
		if err := accounts.Update(ctx, acc); err != nil {
			log.Error("error clearing reset token", zap.Error(err))
		}
		if err := s.deps.CodeLimiter.Reset(ctx, limitKey); err != nil {
			log.Warn("error resetting reset limiter", zap.Error(err))
		}
		return util.WrapError(util.KindInternal, util.FAILED_TO_SEND_RESET_EMAIL, err)
	}
	log.Info("password reset requested", zap.String("email", acc.Email))
	return nil
}

/*
* Look the account up by the token hash
* Enforce the reset cap again, a token issued before the cap was reached is useless
* Replace the password, burn the token and sign out every session
 */
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	log := s.deps.Logger
	if strings.TrimSpace(token) == "" {
		return util.NewError(util.KindInvalidOrExpiredCode, util.INVALID_OR_EXPIRED_TOKEN)
	}
	if err := validateNewPassword(newPassword, confirmPassword); err != nil {
		return err
	}
	now := s.deps.Now()
	accounts := s.deps.Store.Accounts()
	acc, err := accounts.FindByResetToken(ctx, hashResetToken(token), now)
	if errors.Is(err, repository.ErrNotFound) {
		return util.NewError(util.KindInvalidOrExpiredCode, util.INVALID_OR_EXPIRED_TOKEN)
	}
	if err != nil {
		log.Error("error loading account by reset token", zap.Error(err))
		return util.InternalError(err)
	}
	if acc.PasswordResetCount >= s.deps.Config.PasswordReset.MaxResets {
		acc.ClearResetToken()
		if err := accounts.Update(ctx, acc); err != nil {
			log.Error("error clearing reset token", zap.Error(err))
		}
		return util.ErrResetLimitExceeded
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(newPassword)) == nil {
		return util.ValidationError(util.PASSWORD_SAME_AS_CURRENT)
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		log.Error("error hashing password", zap.Error(err))
		return util.InternalError(err)
	}

	var revoked int64
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		acc.PasswordHash = hash
		acc.PasswordChangedAt = &now
		acc.PasswordResetCount++
		acc.PasswordResetUsedAt = &now
		acc.ClearResetToken()
		acc.UpdatedAt = now
		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}
		n, err := s.deps.Store.Sessions().RevokeAll(ctx, acc.ID, "", RevokePasswordReset, now)
		revoked = n
		return err
	})
	if err != nil {
		return txError(log, "error resetting password", err)
	}
	countRevoked(RevokePasswordReset, revoked)
	log.Info("password reset", zap.String("email", acc.Email))
	if err := s.deps.Notifier.SendPasswordChanged(ctx, acc.Email, acc.Name); err != nil {
		log.Warn("could not send password changed mail", zap.Error(err))
	}
	return nil
}

/*
* Verify the current password
* Store the new hash and sign out every other session
 */
func (s *AuthService) ChangePassword(ctx context.Context, accountID primitive.ObjectID, currentTokenID, currentPassword, newPassword, confirmPassword string) error {
	log := s.deps.Logger
	if currentPassword == "" {
		return util.ValidationError(util.CURRENT_PASSWORD_INCORRECT)
	}
	if err := validateNewPassword(newPassword, confirmPassword); err != nil {
		return err
	}
	accounts := s.deps.Store.Accounts()
	acc, err := accounts.FindByID(ctx, accountID)
	if err != nil {
		return storeError(err, util.USER_NOT_FOUND)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(currentPassword)) != nil {
		return util.ValidationError(util.CURRENT_PASSWORD_INCORRECT)
	}
	if currentPassword == newPassword {
		return util.ValidationError(util.PASSWORD_SAME_AS_CURRENT)
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		log.Error("error hashing password", zap.Error(err))
		return util.InternalError(err)
	}

	now := s.deps.Now()
	var revoked int64
	err = s.deps.inTx(ctx, func(ctx context.Context) error {
		acc.PasswordHash = hash
		acc.PasswordChangedAt = &now
		acc.UpdatedAt = now
		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}
		n, err := s.deps.Store.Sessions().RevokeAll(ctx, acc.ID, currentTokenID, RevokePasswordChange, now)
		revoked = n
		return err
	})
	if err != nil {
		return txError(log, "error changing password", err)
	}
	countRevoked(RevokePasswordChange, revoked)
	if err := s.deps.Notifier.SendPasswordChanged(ctx, acc.Email, acc.Name); err != nil {
		log.Warn("could not send password changed mail", zap.Error(err))
	}
	return nil
}
