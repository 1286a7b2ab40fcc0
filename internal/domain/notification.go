package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents the delivery channel of a dispatch row.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// DispatchStatus represents the delivery state of one outbox row.
type DispatchStatus string

const (
	DispatchQueued DispatchStatus = "queued"
	DispatchSent   DispatchStatus = "sent"
	DispatchFailed DispatchStatus = "failed"
)

func (s DispatchStatus) String() string { return string(s) }

func (s DispatchStatus) IsValid() bool {
	switch s {
	case DispatchQueued, DispatchSent, DispatchFailed:
		return true
	}
	return false
}

// In-app notification type tags.
const (
	NotificationRequestApproved       = "request_approved"
	NotificationRequestRejected       = "request_rejected"
	NotificationRequestForwarded      = "request_forwarded"
	NotificationBlacklistAlert        = "blacklist_alert"
	NotificationStage1PendingReminder = "stage1_pending_reminder"
	NotificationGuestCheckIn          = "guest_checkin"
	NotificationGuestCheckoutConfirm  = "guest_checkout_confirmation_sent"
	NotificationEmergencyAlert        = "emergency_alert"
)

// MaxDispatchAttempts bounds delivery attempts across all processing runs.
const MaxDispatchAttempts = 3

// Notification is an in-app notification shown to one user.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Message   string
	RequestID string
	Read      bool
	CreatedAt time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(n.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}

// NotificationDispatch is one outbox row: one channel attempt for one
// recipient of one notification. Rows are never deleted; they are the
// delivery audit trail.
type NotificationDispatch struct {
	ID             string
	NotificationID string
	Channel        Channel
	Recipient      string
	Subject        *string
	Body           string
	Status         DispatchStatus
	Attempts       int
	LastError      *string
	Provider       *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d *NotificationDispatch) Validate() error {
	if strings.TrimSpace(d.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !d.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, d.Channel)
	}
	return nil
}

// CanRetry reports whether a failed send may be re-queued for a later
// processing pass.
func (d *NotificationDispatch) CanRetry() bool {
	return d.Attempts < MaxDispatchAttempts
}

// NotificationBundle groups a notification with its outbox rows so both are
// persisted in the same transaction as the state change that caused them.
type NotificationBundle struct {
	Notification Notification
	Dispatches   []NotificationDispatch
}
