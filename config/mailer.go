package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Mailer hands HTML messages to the configured SMTP relay.
type Mailer struct {
	cfg MailConfig
}

func NewMailer(cfg MailConfig) *Mailer {
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	return &Mailer{cfg: cfg}
}

func (m *Mailer) SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.cfg.Enabled() {
		return fmt.Errorf("smtp not configured (mail.smtp_host/mail.from)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.Username, m.cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.cfg.SMTPHost,
		InsecureSkipVerify: m.cfg.SkipTLSVerify, // dev only
	}

	return d.DialAndSend(msg)
}
