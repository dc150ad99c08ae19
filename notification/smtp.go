package notification

import (
	"HealthConnect/config"
	"HealthConnect/metrics"
	"HealthConnect/models"
	"HealthConnect/role"
	"context"
	"fmt"
	"time"

	"github.com/go-gomail/gomail"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(m Message) error
}

type gomailSender struct {
	dialer *gomail.Dialer
	from   string
}

func (s gomailSender) Send(m Message) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)
	return s.dialer.DialAndSend(msg)
}

// Mailer renders templates and sends them through a circuit breaker, so a dead SMTP
// relay fails fast instead of stalling every registration.
type Mailer struct {
	sender Sender
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
}

func NewSMTPMailer(cfg config.MailConfig, log *zap.Logger) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return NewMailer(gomailSender{dialer: d, from: cfg.From}, log)
}

func NewMailer(sender Sender, log *zap.Logger) *Mailer {
	st := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &Mailer{sender: sender, cb: gobreaker.NewCircuitBreaker(st), log: log}
}

func (m *Mailer) deliver(t Template, to string, data interface{}) error {
	msg, err := Render(t, to, data)
	if err != nil {
		return err
	}
	_, err = m.cb.Execute(func() (interface{}, error) {
		return nil, m.sender.Send(msg)
	})
	if err != nil {
		metrics.MailFailures.WithLabelValues(string(t)).Inc()
		m.log.Error("mail send failed", zap.String("template", string(t)), zap.String("to", to), zap.Error(err))
		return fmt.Errorf("notification: send %s: %w", t, err)
	}
	m.log.Info("mail sent", zap.String("template", string(t)), zap.String("to", to))
	return nil
}

func (m *Mailer) SendOTP(_ context.Context, to, name, code string, purpose models.CodePurpose) error {
	return m.deliver(TemplateOTP, to, map[string]string{"Name": name, "Code": code, "Purpose": purposeLabel(purpose)})
}

func (m *Mailer) SendWelcome(_ context.Context, to, name string, r role.Role) error {
	return m.deliver(TemplateWelcome, to, map[string]string{"Name": name, "Role": string(r)})
}

func (m *Mailer) SendPasswordReset(_ context.Context, to, name, resetURL string) error {
	return m.deliver(TemplatePasswordReset, to, map[string]string{"Name": name, "URL": resetURL})
}

func (m *Mailer) SendPasswordChanged(_ context.Context, to, name string) error {
	return m.deliver(TemplatePasswordChanged, to, map[string]string{"Name": name})
}
