package provider

import "context"

// EmailPayload is a single outbound email message.
type EmailPayload struct {
	To      string
	Subject string
	Text    string
}

// SMSPayload is a single outbound text message.
type SMSPayload struct {
	To      string
	Message string
}

// SendResult stores provider call metadata for audit and persistence.
type SendResult struct {
	Provider  string
	MessageID string
}

// EmailProvider is the outbound email delivery port.
type EmailProvider interface {
	Name() string
	SendEmail(ctx context.Context, payload EmailPayload) (*SendResult, error)
}

// SMSProvider is the outbound SMS delivery port.
type SMSProvider interface {
	Name() string
	SendSMS(ctx context.Context, payload SMSPayload) (*SendResult, error)
}
