package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/go-resty/resty/v2"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	resendEndpoint     = "https://api.resend.com/emails"
)

// SMTPConfig holds the credentials for direct SMTP delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPProvider delivers email over plain SMTP with optional auth.
type SMTPProvider struct {
	cfg      SMTPConfig
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPProvider(cfg SMTPConfig) (*SMTPProvider, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}

	return &SMTPProvider{cfg: cfg, sendMail: smtp.SendMail}, nil
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) SendEmail(ctx context.Context, payload EmailPayload) (*SendResult, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var auth smtp.Auth
	if p.cfg.User != "" {
		auth = smtp.PlainAuth("", p.cfg.User, p.cfg.Password, p.cfg.Host)
	}

	addr := net.JoinHostPort(p.cfg.Host, fmt.Sprintf("%d", p.cfg.Port))
	msg := buildMIMEMessage(p.cfg.From, payload)

	if err := p.sendMail(addr, auth, p.cfg.From, []string{payload.To}, msg); err != nil {
		return nil, classifySMTPError(err)
	}

	return &SendResult{Provider: p.Name()}, nil
}

func buildMIMEMessage(from string, payload EmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", payload.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", payload.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(payload.Text)
	return []byte(b.String())
}

func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		// SMTP 4xx replies mean "try again later".
		return &ProviderError{
			StatusCode: protoErr.Code,
			Message:    protoErr.Msg,
			Transient:  protoErr.Code >= 400 && protoErr.Code < 500,
			Cause:      err,
		}
	}

	return &ProviderError{
		Message:   "smtp delivery failed",
		Transient: true,
		Cause:     err,
	}
}

type gatewayEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// HTTPEmailProvider posts email payloads to a JSON gateway endpoint.
type HTTPEmailProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewHTTPEmailProvider(endpoint, apiKey string) (*HTTPEmailProvider, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("email gateway endpoint is required")
	}

	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return &HTTPEmailProvider{client: client, endpoint: trimmed, apiKey: apiKey}, nil
}

func (p *HTTPEmailProvider) Name() string { return "email-gateway" }

func (p *HTTPEmailProvider) SendEmail(ctx context.Context, payload EmailPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	req := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(gatewayEmailRequest{To: payload.To, Subject: payload.Subject, Message: payload.Text})
	if p.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+p.apiKey)
	}

	response, err := req.Post(p.endpoint)
	if err != nil {
		return nil, requestFailedError(err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, statusError(statusCode, strings.TrimSpace(response.String()))
	}

	return &SendResult{Provider: p.Name(), MessageID: headerMessageID(response)}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// ResendProvider delivers email through the Resend HTTP API.
type ResendProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	from     string
}

func NewResendProvider(apiKey, from string) (*ResendProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("resend sender address is required")
	}

	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return &ResendProvider{client: client, endpoint: resendEndpoint, apiKey: apiKey, from: from}, nil
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) SendEmail(ctx context.Context, payload EmailPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	var body resendResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+p.apiKey).
		SetBody(resendRequest{From: p.from, To: []string{payload.To}, Subject: payload.Subject, Text: payload.Text}).
		SetResult(&body).
		Post(p.endpoint)
	if err != nil {
		return nil, requestFailedError(err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, statusError(statusCode, strings.TrimSpace(response.String()))
	}

	return &SendResult{Provider: p.Name(), MessageID: body.ID}, nil
}

type sesAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESProvider delivers email through Amazon SES.
type SESProvider struct {
	client sesAPI
	from   string
}

func NewSESProvider(ctx context.Context, region, from string) (*SESProvider, error) {
	if strings.TrimSpace(region) == "" {
		return nil, fmt.Errorf("ses region is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("ses sender address is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &SESProvider{client: ses.NewFromConfig(cfg), from: from}, nil
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) SendEmail(ctx context.Context, payload EmailPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(p.from),
		Destination: &types.Destination{ToAddresses: []string{payload.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(payload.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(payload.Text)},
			},
		},
	}

	output, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return nil, &ProviderError{
			Message:   "ses send failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	result := &SendResult{Provider: p.Name()}
	if output != nil && output.MessageId != nil {
		result.MessageID = *output.MessageId
	}
	return result, nil
}

func headerMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
