package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/visitflow/visitflow/internal/domain"
)

// NotificationProcessor drains the queued dispatches of one notification.
type NotificationProcessor interface {
	ProcessNotification(ctx context.Context, notificationID string) error
}

// ReminderSweeper emits reminders for requests stuck at stage 1.
type ReminderSweeper interface {
	SweepPendingReminders(ctx context.Context, settings domain.Settings) (int, error)
}

// JobHandler exposes the job-trigger endpoints used by external schedulers.
// Calls authenticate with a bearer secret, not a user session.
type JobHandler struct {
	processor NotificationProcessor
	sweeper   ReminderSweeper
	settings  SettingsSource
	secret    string
}

func NewJobHandler(processor NotificationProcessor, sweeper ReminderSweeper, settings SettingsSource, secret string) (*JobHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("notification processor is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("reminder sweeper is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	return &JobHandler{
		processor: processor,
		sweeper:   sweeper,
		settings:  settings,
		secret:    secret,
	}, nil
}

func RegisterJobRoutes(router fiber.Router, processor NotificationProcessor, sweeper ReminderSweeper, settings SettingsSource, secret string) error {
	h, err := NewJobHandler(processor, sweeper, settings, secret)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/jobs/dispatch", h.TriggerDispatch)
	v1.Post("/jobs/reminders", h.TriggerReminderSweep)

	return nil
}

type triggerDispatchRequest struct {
	NotificationID string `json:"notificationId"`
}

// authorize distinguishes a server misconfiguration from a bad caller: a
// missing secret is a 500, a wrong token a 401.
func (h *JobHandler) authorize(c *fiber.Ctx) error {
	if strings.TrimSpace(h.secret) == "" {
		return fmt.Errorf("%w: dispatch secret is not set", domain.ErrNotConfigured)
	}

	token := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer"))
	if token != h.secret {
		return fmt.Errorf("%w: invalid job token", domain.ErrUnauthorized)
	}
	return nil
}

func (h *JobHandler) TriggerDispatch(c *fiber.Ctx) error {
	if err := h.authorize(c); err != nil {
		return toHTTPError(err)
	}

	var req triggerDispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	notificationID := strings.TrimSpace(req.NotificationID)
	if notificationID == "" {
		return toHTTPError(fmt.Errorf("%w: notificationId is required", domain.ErrValidation))
	}

	if err := h.processor.ProcessNotification(c.Context(), notificationID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": notificationID,
		"processed":      true,
	})
}

func (h *JobHandler) TriggerReminderSweep(c *fiber.Ctx) error {
	if err := h.authorize(c); err != nil {
		return toHTTPError(err)
	}

	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}

	emitted, err := h.sweeper.SweepPendingReminders(c.Context(), settings)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"emitted": emitted,
	})
}
