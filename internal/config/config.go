package config

import (
	"fmt"
	"strings"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// Shared secret guarding the job-trigger endpoints.
	DispatchSecret string `env:"DISPATCH_SECRET"`

	WorkerConcurrency    int `env:"WORKER_CONCURRENCY,default=8"`
	ReminderScanInterval int `env:"REMINDER_SCAN_INTERVAL_SEC,default=3600"`

	AppBaseURL string `env:"APP_BASE_URL"`

	// Environment provider credentials; stored Settings take priority.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	EmailFrom    string `env:"EMAIL_FROM"`

	ResendAPIKey string `env:"RESEND_API_KEY"`

	SESRegion string `env:"SES_REGION"`
	SNSRegion string `env:"SNS_REGION"`

	SMSBaseURL string `env:"SMS_BASE_URL"`
	SMSAPIKey  string `env:"SMS_API_KEY"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `env:"TWILIO_FROM"`

	// Comma-separated E.164 numbers notified on emergency panic.
	SecurityPhonesRaw string `env:"SECURITY_PHONES"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// SecurityPhones splits the configured panic recipient list.
func (c *Config) SecurityPhones() []string {
	if strings.TrimSpace(c.SecurityPhonesRaw) == "" {
		return nil
	}

	parts := strings.Split(c.SecurityPhonesRaw, ",")
	phones := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			phones = append(phones, trimmed)
		}
	}
	return phones
}
