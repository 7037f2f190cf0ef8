// Package email implements ports.Mailer over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/digipilot/account-service/internal/api/metrics"
)

// Config holds the SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer renders the lifecycle emails from embedded templates and
// dispatches them through gomail. Sends are synchronous; a transport
// failure propagates to the caller with no retry.
type SMTPMailer struct {
	cfg       Config
	dialer    *gomail.Dialer
	templates *template.Template
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	tmpl, err := template.New("emails").Parse(emailTemplates)
	if err != nil {
		return nil, fmt.Errorf("email: parse templates: %w", err)
	}
	return &SMTPMailer{
		cfg:       cfg,
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		templates: tmpl,
	}, nil
}

func (m *SMTPMailer) SendNewAccount(ctx context.Context, to, setupLink string) error {
	body, err := m.render(KindNewAccount, newAccountData{SetupLink: setupLink})
	if err != nil {
		return err
	}
	return m.send(ctx, KindNewAccount, to, "Your Digipilot Account!", body)
}

func (m *SMTPMailer) SendPasswordRecovery(ctx context.Context, to, name, resetLink string) error {
	body, err := m.render(KindPasswordRecovery, passwordRecoveryData{Name: name, ResetLink: resetLink})
	if err != nil {
		return err
	}
	return m.send(ctx, KindPasswordRecovery, to, "Reset your password", body)
}

func (m *SMTPMailer) SendPasswordChanged(ctx context.Context, to, name string) error {
	body, err := m.render(KindPasswordChanged, passwordChangedData{Name: name})
	if err != nil {
		return err
	}
	return m.send(ctx, KindPasswordChanged, to, "Password modification", body)
}

func (m *SMTPMailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("email: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (m *SMTPMailer) send(ctx context.Context, kind, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		metrics.EmailsFailedTotal.WithLabelValues(kind).Inc()
		return fmt.Errorf("email: send %s: %w", kind, err)
	}
	metrics.EmailsSentTotal.WithLabelValues(kind).Inc()
	return nil
}
