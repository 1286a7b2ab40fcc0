package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/visitflow/visitflow/internal/domain"
)

// Env carries provider credentials taken from the process environment.
// Stored settings take priority over these during resolution.
type Env struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	ResendAPIKey string
	SESRegion    string
	SNSRegion    string

	SMSBaseURL string
	SMSAPIKey  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

type emailFactory struct {
	available func(domain.Settings, Env) bool
	build     func(context.Context, domain.Settings, Env) (EmailProvider, error)
}

type smsFactory struct {
	available func(domain.Settings, Env) bool
	build     func(context.Context, domain.Settings, Env) (SMSProvider, error)
}

var emailFactories = []emailFactory{
	{
		available: func(s domain.Settings, _ Env) bool {
			return s.SMTPHost != "" && s.SMTPPort > 0 && s.SMTPUser != "" && s.SMTPPassword != ""
		},
		build: func(_ context.Context, s domain.Settings, env Env) (EmailProvider, error) {
			from := env.EmailFrom
			if from == "" {
				from = s.SMTPUser
			}
			return NewSMTPProvider(SMTPConfig{
				Host:     s.SMTPHost,
				Port:     s.SMTPPort,
				User:     s.SMTPUser,
				Password: s.SMTPPassword,
				From:     from,
			})
		},
	},
	{
		available: func(_ domain.Settings, env Env) bool {
			return env.SMTPHost != "" && env.SMTPPort > 0 && env.SMTPUser != "" && env.SMTPPassword != ""
		},
		build: func(_ context.Context, _ domain.Settings, env Env) (EmailProvider, error) {
			from := env.EmailFrom
			if from == "" {
				from = env.SMTPUser
			}
			return NewSMTPProvider(SMTPConfig{
				Host:     env.SMTPHost,
				Port:     env.SMTPPort,
				User:     env.SMTPUser,
				Password: env.SMTPPassword,
				From:     from,
			})
		},
	},
	{
		available: func(_ domain.Settings, env Env) bool {
			return env.ResendAPIKey != "" && env.EmailFrom != ""
		},
		build: func(_ context.Context, _ domain.Settings, env Env) (EmailProvider, error) {
			return NewResendProvider(env.ResendAPIKey, env.EmailFrom)
		},
	},
	{
		available: func(s domain.Settings, _ Env) bool {
			return s.EmailGatewayURL != ""
		},
		build: func(_ context.Context, s domain.Settings, _ Env) (EmailProvider, error) {
			return NewHTTPEmailProvider(s.EmailGatewayURL, s.EmailAPIKey)
		},
	},
	{
		available: func(_ domain.Settings, env Env) bool {
			return env.SESRegion != "" && env.EmailFrom != ""
		},
		build: func(ctx context.Context, _ domain.Settings, env Env) (EmailProvider, error) {
			return NewSESProvider(ctx, env.SESRegion, env.EmailFrom)
		},
	},
}

var smsFactories = []smsFactory{
	{
		available: func(s domain.Settings, _ Env) bool {
			return s.SMSGatewayURL != ""
		},
		build: func(_ context.Context, s domain.Settings, _ Env) (SMSProvider, error) {
			return NewHTTPSMSProvider(s.SMSGatewayURL, s.SMSAPIKey)
		},
	},
	{
		available: func(_ domain.Settings, env Env) bool {
			return env.SMSBaseURL != ""
		},
		build: func(_ context.Context, _ domain.Settings, env Env) (SMSProvider, error) {
			baseURL := env.SMSBaseURL
			if env.SMSAPIKey != "" {
				separator := "?"
				if strings.Contains(baseURL, "?") {
					separator = "&"
				}
				baseURL = fmt.Sprintf("%s%skey=%s", baseURL, separator, env.SMSAPIKey)
			}
			return NewQuerySMSProvider(baseURL)
		},
	},
	{
		available: func(_ domain.Settings, env Env) bool {
			return env.TwilioAccountSID != "" && env.TwilioAuthToken != "" && env.TwilioFrom != ""
		},
		build: func(_ context.Context, _ domain.Settings, env Env) (SMSProvider, error) {
			return NewTwilioProvider(env.TwilioAccountSID, env.TwilioAuthToken, env.TwilioFrom)
		},
	},
	{
		available: func(_ domain.Settings, env Env) bool {
			return env.SNSRegion != ""
		},
		build: func(ctx context.Context, _ domain.Settings, env Env) (SMSProvider, error) {
			return NewSNSProvider(ctx, env.SNSRegion)
		},
	},
}

// ResolveEmail returns the first configured email provider. Stored settings
// win over environment credentials; no match yields ErrNotConfigured.
func ResolveEmail(ctx context.Context, settings domain.Settings, env Env) (EmailProvider, error) {
	for _, factory := range emailFactories {
		if !factory.available(settings, env) {
			continue
		}
		return factory.build(ctx, settings, env)
	}

	return nil, fmt.Errorf("%w: no email provider", domain.ErrNotConfigured)
}

// ResolveSMS returns the first configured SMS provider.
func ResolveSMS(ctx context.Context, settings domain.Settings, env Env) (SMSProvider, error) {
	for _, factory := range smsFactories {
		if !factory.available(settings, env) {
			continue
		}
		return factory.build(ctx, settings, env)
	}

	return nil, fmt.Errorf("%w: no sms provider", domain.ErrNotConfigured)
}
