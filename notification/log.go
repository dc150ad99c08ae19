package notification

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes notifications to the log instead of sending them. Used when
// SMTP is not configured; the code is logged so local sign-ups can be completed.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) SendOTP(_ context.Context, to, name, code string, purpose models.CodePurpose) error {
	d.log.Info("mail disabled: otp", zap.String("to", to), zap.String("purpose", string(purpose)), zap.String("code", code))
	return nil
}

func (d *LogDispatcher) SendWelcome(_ context.Context, to, name string, r role.Role) error {
	d.log.Info("mail disabled: welcome", zap.String("to", to), zap.String("role", string(r)))
	return nil
}

func (d *LogDispatcher) SendPasswordReset(_ context.Context, to, name, resetURL string) error {
	d.log.Info("mail disabled: password reset", zap.String("to", to), zap.String("url", resetURL))
	return nil
}

func (d *LogDispatcher) SendPasswordChanged(_ context.Context, to, name string) error {
	d.log.Info("mail disabled: password changed", zap.String("to", to))
	return nil
}
