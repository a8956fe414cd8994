package mailer

import "context"

// Email is one outbound message.
type Email struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email. SMTPMailer and SendGridMailer implement it; the
// SEND_EMAIL automation action is its only caller.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}
