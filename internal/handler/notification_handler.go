package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/repository"
)

const defaultNotificationLimit = 50

type NotificationHandler struct {
	notifications repository.NotificationRepository
}

func NewNotificationHandler(notifications repository.NotificationRepository) (*NotificationHandler, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	return &NotificationHandler{notifications: notifications}, nil
}

func RegisterNotificationRoutes(router fiber.Router, notifications repository.NotificationRepository) error {
	h, err := NewNotificationHandler(notifications)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications", h.ListNotifications)
	v1.Post("/notifications/:id/read", h.MarkRead)
	v1.Post("/notifications/read-all", h.MarkAllRead)

	return nil
}

type notificationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return toHTTPError(fmt.Errorf("%w: userId is required", domain.ErrValidation))
	}

	unreadOnly := c.QueryBool("unread", false)
	limit := c.QueryInt("limit", defaultNotificationLimit)

	notifications, err := h.notifications.ListByUser(c.Context(), userID, unreadOnly, limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		data = append(data, notificationResponse{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      n.Type,
			Message:   n.Message,
			RequestID: n.RequestID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.notifications.MarkRead(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"read":           true,
	})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return toHTTPError(fmt.Errorf("%w: userId is required", domain.ErrValidation))
	}

	if err := h.notifications.MarkAllRead(c.Context(), userID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"userId": userID,
		"read":   true,
	})
}
