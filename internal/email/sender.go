// Package email delivers farmer-facing notification emails over SMTP.
package email

import "context"

// Sender delivers a rendered notification email.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail, recipientName, subject, message string) error
}

// NoopSender is used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(context.Context, string, string, string, string) error {
	return nil
}
