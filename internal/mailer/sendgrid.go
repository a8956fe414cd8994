package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer delivers through the SendGrid API.
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
}

// NewSendGridMailer creates a SendGrid mailer.
func NewSendGridMailer(apiKey, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
	}
}

// Send delivers the email.
func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail(m.fromName, e.From))
	message.Subject = e.Subject

	p := sgmail.NewPersonalization()
	for _, to := range e.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	message.AddPersonalizations(p)

	if e.Text != "" {
		message.AddContent(sgmail.NewContent("text/plain", e.Text))
	}
	if e.HTML != "" {
		message.AddContent(sgmail.NewContent("text/html", e.HTML))
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
