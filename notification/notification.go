// Package notification renders and delivers transactional email.
package notification

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"context"
)

type Dispatcher interface {
	SendOTP(ctx context.Context, to, name, code string, purpose models.CodePurpose) error
	SendWelcome(ctx context.Context, to, name string, r role.Role) error
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
}

type Template string

const (
	TemplateOTP             Template = "otp"
	TemplateWelcome         Template = "welcome"
	TemplatePasswordReset   Template = "password_reset"
	TemplatePasswordChanged Template = "password_changed"
)

// Message is a rendered email ready for a transport.
type Message struct {
	Template Template
	To       string
	Subject  string
	HTML     string
}
