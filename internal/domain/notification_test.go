package domain

import (
	"errors"
	"testing"
)

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Channel
		wantErr bool
	}{
		{name: "email", input: "email", want: ChannelEmail},
		{name: "sms uppercase with spaces", input: " SMS ", want: ChannelSMS},
		{name: "push unsupported", input: "push", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseChannelFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChannelFromString(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseChannelFromString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDispatchValidate(t *testing.T) {
	t.Parallel()

	valid := NotificationDispatch{
		NotificationID: "n1",
		Channel:        ChannelEmail,
		Recipient:      "guest@example.com",
		Body:           "hello",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid dispatch: %v", err)
	}

	noRecipient := valid
	noRecipient.Recipient = " "
	if err := noRecipient.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing recipient error = %v, want ErrValidation", err)
	}

	badChannel := valid
	badChannel.Channel = "push"
	if err := badChannel.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad channel error = %v, want ErrValidation", err)
	}
}

func TestDispatchCanRetry(t *testing.T) {
	t.Parallel()

	d := NotificationDispatch{Attempts: 2}
	if !d.CanRetry() {
		t.Fatal("attempts=2 should still be retryable")
	}
	d.Attempts = MaxDispatchAttempts
	if d.CanRetry() {
		t.Fatal("attempts at cap should not be retryable")
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings: %v", err)
	}
	if s.SingleStage() {
		t.Fatal("default settings should be 2-step")
	}

	s.ApprovalSteps = 3
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("steps=3 error = %v, want ErrValidation", err)
	}
}
