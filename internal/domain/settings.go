package domain

import "fmt"

// Settings is an immutable snapshot of workflow and channel configuration.
// Callers fetch a snapshot and pass it into each workflow or emission call;
// changes take effect on the next evaluation, never retroactively.
type Settings struct {
	ApprovalSteps           int
	EmailNotifications      bool
	SMSNotifications        bool
	CheckInOutNotifications bool
	Gates                   []string

	// Stored provider credentials; resolved before environment config.
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	EmailGatewayURL string
	EmailAPIKey     string
	SMSGatewayURL   string
	SMSAPIKey       string
}

func (s *Settings) Validate() error {
	if s.ApprovalSteps != 1 && s.ApprovalSteps != 2 {
		return fmt.Errorf("%w: approval steps must be 1 or 2", ErrValidation)
	}
	return nil
}

// SingleStage reports whether stage 1 is also the final stage.
func (s *Settings) SingleStage() bool { return s.ApprovalSteps == 1 }

// DefaultSettings mirrors the seeded configuration row.
func DefaultSettings() Settings {
	return Settings{
		ApprovalSteps:           2,
		EmailNotifications:      true,
		SMSNotifications:        true,
		CheckInOutNotifications: true,
		Gates:                   []string{"228", "229", "230"},
	}
}
