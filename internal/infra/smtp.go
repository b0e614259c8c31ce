package infra

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/config"
	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending the authorized DANFE.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Enabled is false when no SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// SendDocument mails a document with an in-memory attachment. An empty
// attachment sends the text only.
func (m *Mailer) SendDocument(to, subject, body, fileName string, attachment []byte) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if len(attachment) > 0 {
		if _, err := e.Attach(bytes.NewReader(attachment), fileName, "application/pdf"); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
