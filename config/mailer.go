package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// SMTPConfig addresses the outgoing mail server.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string // e.g. "Loan Desk <no-reply@your.org>"
	SkipTLSVerify bool
	NotifyTo      []string
}

// Mailer sends HTML mail through SMTP.
type Mailer struct {
	cfg  SMTPConfig
	send func(d *mail.Dialer, m ...*mail.Message) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, send: (*mail.Dialer).DialAndSend}
}

// Configured reports whether SMTP_HOST and SMTP_FROM are set.
func (m *Mailer) Configured() bool {
	return m != nil && m.cfg.Host != "" && m.cfg.From != ""
}

func (m *Mailer) Send(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipTLSVerify,
	}

	return m.send(d, msg)
}
