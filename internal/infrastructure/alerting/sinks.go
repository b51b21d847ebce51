package alerting

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/beampay-service/beampay_service/internal/adapters/telegram"
)

// TelegramSink posts alerts to the operators' Telegram chat
type TelegramSink struct {
	client *telegram.Client
}

// NewTelegramSink wraps a configured Telegram client
func NewTelegramSink(client *telegram.Client) *TelegramSink {
	return &TelegramSink{client: client}
}

func (s *TelegramSink) Name() string {
	return "telegram"
}

func (s *TelegramSink) Send(ctx context.Context, subject, body string) error {
	return s.client.SendMessage(ctx, fmt.Sprintf("*%s*\n\n%s", subject, body))
}

// EmailSink mails alerts through SendGrid
type EmailSink struct {
	client *sendgrid.Client
	from   string
	to     string
}

// NewEmailSink creates a SendGrid-backed sink
func NewEmailSink(apiKey, from, to string) *EmailSink {
	return &EmailSink{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (s *EmailSink) Name() string {
	return "email"
}

func (s *EmailSink) Send(ctx context.Context, subject, body string) error {
	// SendGrid rejects empty content parts, so the plain body doubles as HTML
	message := mail.NewSingleEmail(
		mail.NewEmail("BeamPay Alerts", s.from),
		subject,
		mail.NewEmail("", s.to),
		body,
		body,
	)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
