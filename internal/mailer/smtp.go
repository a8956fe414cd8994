package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	Addr     string // host:port
	Username string
	Password string
}

// NewSMTPMailer creates an SMTP mailer. Username may be empty for relays
// that accept unauthenticated local delivery.
func NewSMTPMailer(addr, username, password string) *SMTPMailer {
	return &SMTPMailer{Addr: addr, Username: username, Password: password}
}

// Send delivers the email. net/smtp has no context support, so
// cancellation is checked up front only.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.To) == 0 {
		return fmt.Errorf("smtp: no recipients")
	}

	var auth smtp.Auth
	if m.Username != "" {
		host, _, err := net.SplitHostPort(m.Addr)
		if err != nil {
			host = m.Addr
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	body := e.Text
	contentType := "text/plain; charset=utf-8"
	if e.HTML != "" {
		body = e.HTML
		contentType = "text/html; charset=utf-8"
	}

	msg := strings.Join([]string{
		"From: " + e.From,
		"To: " + strings.Join(e.To, ", "),
		"Subject: " + e.Subject,
		"MIME-Version: 1.0",
		"Content-Type: " + contentType,
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(m.Addr, auth, e.From, e.To, []byte(msg))
}
