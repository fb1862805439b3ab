package utils

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/cppla/blog/config"
)

// Email is a plain text message.
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers outgoing mail.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer sends mail through the configured SMTP relay. STARTTLS is negotiated when offered.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer from SMTP settings.
func NewSMTPMailer(cfg config.AppConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.MailSender,
	}
}

// Send delivers one message. The context only guards against starting after cancellation;
// gomail itself has no cancellation hook.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return errors.New("no recipients specified")
	}
	if m.dialer.Host == "" {
		return errors.New("smtp not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := email.From
	if from == "" {
		from = m.from
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %v: %w", email.To, err)
	}
	return nil
}
