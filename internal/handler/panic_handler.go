package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/service"
)

// PanicEmitter fans an emergency alert out to security and admins.
type PanicEmitter interface {
	EmitEmergencyPanic(ctx context.Context, settings domain.Settings, event service.EmergencyPanicEvent) error
}

type PanicHandler struct {
	emitter  PanicEmitter
	settings SettingsSource
}

func NewPanicHandler(emitter PanicEmitter, settings SettingsSource) (*PanicHandler, error) {
	if emitter == nil {
		return nil, fmt.Errorf("panic emitter is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	return &PanicHandler{emitter: emitter, settings: settings}, nil
}

func RegisterPanicRoutes(router fiber.Router, emitter PanicEmitter, settings SettingsSource) error {
	h, err := NewPanicHandler(emitter, settings)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/panic", h.TriggerPanic)

	return nil
}

type panicRequest struct {
	ReportedBy string `json:"reportedBy"`
	Location   string `json:"location"`
	Message    string `json:"message"`
}

func (h *PanicHandler) TriggerPanic(c *fiber.Ctx) error {
	var req panicRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}

	err = h.emitter.EmitEmergencyPanic(c.Context(), settings, service.EmergencyPanicEvent{
		ReportedBy: strings.TrimSpace(req.ReportedBy),
		Location:   strings.TrimSpace(req.Location),
		Message:    strings.TrimSpace(req.Message),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "alerted",
	})
}
