package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/observability"
	"github.com/visitflow/visitflow/internal/repository"
	"go.uber.org/zap"
)

const (
	// reminderWindow is the idempotency window for stage-1 reminders.
	reminderWindow = 20 * time.Hour

	// reminderAge is how long a request may sit at stage 1 before the
	// sweep picks it up.
	reminderAge = 24 * time.Hour

	reminderSweepLimit = 200
)

type BlacklistAttemptEvent struct {
	RequestID     string
	RequesterName string
	GuestName     string
	MatchedFields []string
}

type EmergencyPanicEvent struct {
	ReportedBy string
	Location   string
	Message    string
}

// EventService turns domain events into notification bundles and hands them
// to the dispatcher.
type EventService struct {
	users          repository.UserRepository
	notifications  repository.NotificationRepository
	requests       repository.RequestRepository
	scheduler      ProcessingScheduler
	securityPhones []string
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
	newID          func() string
}

func NewEventService(
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	requests repository.RequestRepository,
	scheduler ProcessingScheduler,
	securityPhones []string,
	logger *zap.Logger,
) (*EventService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventService{
		users:          users,
		notifications:  notifications,
		requests:       requests,
		scheduler:      scheduler,
		securityPhones: securityPhones,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
	}, nil
}

func (s *EventService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// EmitBlacklistAttempt alerts every active admin that a blacklisted visitor
// was named on a submission.
func (s *EventService) EmitBlacklistAttempt(ctx context.Context, settings domain.Settings, event BlacklistAttemptEvent) error {
	admins, err := s.users.ActiveByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to load admins: %w", err)
	}

	message := fmt.Sprintf("Blocked submission by %s: guest %q matched the blacklist on %s.",
		event.RequesterName, event.GuestName, strings.Join(event.MatchedFields, ", "))

	for i := range admins {
		bundle := domain.NotificationBundle{
			Notification: domain.Notification{
				ID:        s.newID(),
				UserID:    admins[i].ID,
				Type:      domain.NotificationBlacklistAlert,
				Message:   message,
				RequestID: event.RequestID,
				CreatedAt: s.now(),
			},
		}
		if settings.EmailNotifications && admins[i].Email != "" {
			subj := "Blacklist attempt blocked"
			bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
				ID:             s.newID(),
				NotificationID: bundle.Notification.ID,
				Channel:        domain.ChannelEmail,
				Recipient:      admins[i].Email,
				Subject:        &subj,
				Body:           message,
				Status:         domain.DispatchQueued,
				CreatedAt:      s.now(),
			})
		}

		if err := s.createAndSchedule(ctx, &bundle); err != nil {
			return err
		}
	}

	return nil
}

// EmitPendingReminder nudges every active stage-1 approver about one stale
// request. A reminder created within the last 20 hours suppresses the next.
func (s *EventService) EmitPendingReminder(ctx context.Context, settings domain.Settings, req domain.Request) (bool, error) {
	already, err := s.notifications.ReminderSentSince(ctx, req.ID, s.now().Add(-reminderWindow))
	if err != nil {
		return false, fmt.Errorf("failed to check reminder window: %w", err)
	}
	if already {
		return false, nil
	}

	approvers, err := s.users.ActiveByRole(ctx, domain.StageApproverRole(domain.Stage1))
	if err != nil {
		return false, fmt.Errorf("failed to load approvers: %w", err)
	}
	if len(approvers) == 0 {
		return false, nil
	}

	message := fmt.Sprintf("Visit request from %s to %s has been awaiting first review since %s.",
		req.RequesterName, req.Destination, req.CreatedAt.Format("2006-01-02"))

	for i := range approvers {
		bundle := domain.NotificationBundle{
			Notification: domain.Notification{
				ID:        s.newID(),
				UserID:    approvers[i].ID,
				Type:      domain.NotificationStage1PendingReminder,
				Message:   message,
				RequestID: req.ID,
				CreatedAt: s.now(),
			},
		}
		if settings.EmailNotifications && approvers[i].Email != "" {
			subj := "Pending visit request reminder"
			bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
				ID:             s.newID(),
				NotificationID: bundle.Notification.ID,
				Channel:        domain.ChannelEmail,
				Recipient:      approvers[i].Email,
				Subject:        &subj,
				Body:           message,
				Status:         domain.DispatchQueued,
				CreatedAt:      s.now(),
			})
		}

		if err := s.createAndSchedule(ctx, &bundle); err != nil {
			return false, err
		}
	}

	if s.metrics != nil {
		s.metrics.IncPendingReminder()
	}

	return true, nil
}

// SweepPendingReminders scans stale stage-1 requests and emits reminders.
// Returns how many requests received one.
func (s *EventService) SweepPendingReminders(ctx context.Context, settings domain.Settings) (int, error) {
	stale, err := s.requests.StalePendingStage1(ctx, s.now().Add(-reminderAge), reminderSweepLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale requests: %w", err)
	}

	emitted := 0
	for i := range stale {
		sent, err := s.EmitPendingReminder(ctx, settings, stale[i])
		if err != nil {
			s.logger.Warn("failed to emit pending reminder",
				zap.String("requestId", stale[i].ID),
				zap.Error(err),
			)
			continue
		}
		if sent {
			emitted++
		}
	}

	return emitted, nil
}

// EmitEmergencyPanic texts the configured security numbers and records an
// audit notification per active admin.
func (s *EventService) EmitEmergencyPanic(ctx context.Context, settings domain.Settings, event EmergencyPanicEvent) error {
	message := strings.TrimSpace(event.Message)
	if message == "" {
		message = "Emergency reported"
	}
	if event.Location != "" {
		message = fmt.Sprintf("%s at %s", message, event.Location)
	}

	admins, err := s.users.ActiveByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to load admins: %w", err)
	}
	if len(admins) == 0 && event.ReportedBy == "" {
		return fmt.Errorf("%w: no recipient for emergency alert", domain.ErrNotConfigured)
	}

	// SMS dispatches ride on the first notification created.
	smsCarried := false
	recipients := admins
	if len(recipients) == 0 {
		recipients = []domain.User{{ID: event.ReportedBy}}
	}

	for i := range recipients {
		bundle := domain.NotificationBundle{
			Notification: domain.Notification{
				ID:        s.newID(),
				UserID:    recipients[i].ID,
				Type:      domain.NotificationEmergencyAlert,
				Message:   message,
				CreatedAt: s.now(),
			},
		}

		if !smsCarried && settings.SMSNotifications {
			for _, phone := range s.securityPhones {
				bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
					ID:             s.newID(),
					NotificationID: bundle.Notification.ID,
					Channel:        domain.ChannelSMS,
					Recipient:      phone,
					Body:           message,
					Status:         domain.DispatchQueued,
					CreatedAt:      s.now(),
				})
			}
			smsCarried = true
		}

		if err := s.createAndSchedule(ctx, &bundle); err != nil {
			return err
		}
	}

	return nil
}

func (s *EventService) createAndSchedule(ctx context.Context, bundle *domain.NotificationBundle) error {
	if err := s.notifications.CreateBundle(ctx, bundle); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	if s.scheduler != nil {
		s.scheduler.ScheduleProcessing(ctx, bundle.Notification.ID)
	}
	return nil
}
