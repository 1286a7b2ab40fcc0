package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/repository"
	"github.com/visitflow/visitflow/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

// SettingsSource yields the settings snapshot a request is evaluated under.
type SettingsSource interface {
	Get(ctx context.Context) (domain.Settings, error)
}

type WorkflowService interface {
	SubmitRequest(ctx context.Context, settings domain.Settings, req *domain.Request) error
	ApplyStageAction(ctx context.Context, settings domain.Settings, input service.ApplyStageActionInput) (*domain.Request, error)
	CheckInGuest(ctx context.Context, settings domain.Settings, requestID, guestID string) (*domain.Request, error)
	CheckOutGuest(ctx context.Context, settings domain.Settings, requestID, guestID string) (*domain.Request, error)
	GetRequests(ctx context.Context, params repository.ListRequestParams) ([]domain.Request, int64, error)
	GetRequestByID(ctx context.Context, id string) (*domain.Request, error)
}

type RequestHandler struct {
	workflow WorkflowService
	settings SettingsSource
}

func NewRequestHandler(workflow WorkflowService, settings SettingsSource) (*RequestHandler, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow service is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	return &RequestHandler{workflow: workflow, settings: settings}, nil
}

func RegisterRequestRoutes(router fiber.Router, workflow WorkflowService, settings SettingsSource) error {
	h, err := NewRequestHandler(workflow, settings)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/requests", h.SubmitRequest)
	v1.Get("/requests", h.ListRequests)
	v1.Get("/requests/:id", h.GetRequest)
	v1.Post("/requests/:id/stage/:stage/action", h.ApplyStageAction)
	v1.Post("/requests/:id/guests/:guestId/check-in", h.CheckInGuest)
	v1.Post("/requests/:id/guests/:guestId/check-out", h.CheckOutGuest)

	return nil
}

type submitGuestRequest struct {
	Name                   string `json:"name"`
	Organization           string `json:"organization"`
	Email                  string `json:"email"`
	Phone                  string `json:"phone"`
	Laptop                 bool   `json:"laptop"`
	Mobile                 bool   `json:"mobile"`
	FlashDrive             bool   `json:"flashDrive"`
	OtherDevice            bool   `json:"otherDevice"`
	OtherDeviceDescription string `json:"otherDeviceDescription"`
	IDPhotoURL             string `json:"idPhotoUrl"`
}

type submitRequestRequest struct {
	RequesterID    string               `json:"requesterId"`
	RequesterName  string               `json:"requesterName"`
	RequesterEmail string               `json:"requesterEmail"`
	Destination    string               `json:"destination"`
	Gate           string               `json:"gate"`
	FromDate       time.Time            `json:"fromDate"`
	ToDate         time.Time            `json:"toDate"`
	Purpose        string               `json:"purpose"`
	Guests         []submitGuestRequest `json:"guests"`
}

type stageActionRequest struct {
	Action    string   `json:"action"`
	GuestIDs  []string `json:"guestIds"`
	Comment   string   `json:"comment"`
	ActorID   string   `json:"actorId"`
	ActorName string   `json:"actorName"`
}

type guestResponse struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	Organization           string     `json:"organization,omitempty"`
	Email                  string     `json:"email,omitempty"`
	Phone                  string     `json:"phone,omitempty"`
	Laptop                 bool       `json:"laptop"`
	Mobile                 bool       `json:"mobile"`
	FlashDrive             bool       `json:"flashDrive"`
	OtherDevice            bool       `json:"otherDevice"`
	OtherDeviceDescription string     `json:"otherDeviceDescription,omitempty"`
	IDPhotoURL             string     `json:"idPhotoUrl,omitempty"`
	CheckInAt              *time.Time `json:"checkInAt,omitempty"`
	CheckOutAt             *time.Time `json:"checkOutAt,omitempty"`
	Stage1Decision         string     `json:"stage1Decision,omitempty"`
	Stage1Comment          string     `json:"stage1Comment,omitempty"`
	Stage2Decision         string     `json:"stage2Decision,omitempty"`
	Stage2Comment          string     `json:"stage2Comment,omitempty"`
}

type stageMetaResponse struct {
	Comment   string     `json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	DecidedBy string     `json:"decidedBy,omitempty"`
}

type requestResponse struct {
	ID             string             `json:"id"`
	ApprovalNumber *string            `json:"approvalNumber,omitempty"`
	RequesterID    string             `json:"requesterId"`
	RequesterName  string             `json:"requesterName"`
	RequesterEmail string             `json:"requesterEmail"`
	Destination    string             `json:"destination"`
	Gate           string             `json:"gate"`
	FromDate       time.Time          `json:"fromDate"`
	ToDate         time.Time          `json:"toDate"`
	Purpose        string             `json:"purpose,omitempty"`
	Status         string             `json:"status"`
	Stage1         *stageMetaResponse `json:"stage1,omitempty"`
	Stage2         *stageMetaResponse `json:"stage2,omitempty"`
	Guests         []guestResponse    `json:"guests"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

type listRequestsResponse struct {
	Data []requestResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *RequestHandler) SubmitRequest(c *fiber.Ctx) error {
	var req submitRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}

	request := requestToDomain(req)
	if err := h.workflow.SubmitRequest(c.Context(), settings, request); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toRequestResponse(request))
}

func (h *RequestHandler) ListRequests(c *fiber.Ctx) error {
	params, err := parseListRequestParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	requests, total, err := h.workflow.GetRequests(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]requestResponse, 0, len(requests))
	for i := range requests {
		data = append(data, toRequestResponse(&requests[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listRequestsResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	request, err := h.workflow.GetRequestByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRequestResponse(request))
}

func (h *RequestHandler) ApplyStageAction(c *fiber.Ctx) error {
	stage, err := parseStageParam(c.Params("stage"))
	if err != nil {
		return toHTTPError(err)
	}

	var body stageActionRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	action, err := domain.ParseStageActionFromString(body.Action)
	if err != nil {
		return toHTTPError(err)
	}

	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}

	updated, err := h.workflow.ApplyStageAction(c.Context(), settings, service.ApplyStageActionInput{
		RequestID: strings.TrimSpace(c.Params("id")),
		Stage:     stage,
		Action:    action,
		GuestIDs:  body.GuestIDs,
		Comment:   body.Comment,
		ActorID:   strings.TrimSpace(body.ActorID),
		ActorName: strings.TrimSpace(body.ActorName),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRequestResponse(updated))
}

func (h *RequestHandler) CheckInGuest(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}

	updated, err := h.workflow.CheckInGuest(c.Context(),
		settings,
		strings.TrimSpace(c.Params("id")),
		strings.TrimSpace(c.Params("guestId")),
	)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRequestResponse(updated))
}

func (h *RequestHandler) CheckOutGuest(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}

	updated, err := h.workflow.CheckOutGuest(c.Context(),
		settings,
		strings.TrimSpace(c.Params("id")),
		strings.TrimSpace(c.Params("guestId")),
	)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRequestResponse(updated))
}

func parseStageParam(raw string) (domain.Stage, error) {
	switch strings.TrimSpace(raw) {
	case "1":
		return domain.Stage1, nil
	case "2":
		return domain.Stage2, nil
	}
	return 0, fmt.Errorf("%w: stage must be 1 or 2", domain.ErrValidation)
}

func parseListRequestParams(c *fiber.Ctx) (repository.ListRequestParams, error) {
	params := repository.ListRequestParams{
		Gate:        strings.TrimSpace(c.Query("gate")),
		RequesterID: strings.TrimSpace(c.Query("requesterId")),
		Page:        c.QueryInt("page", defaultPage),
		PageSize:    c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListRequestParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListRequestParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListRequestParams{}, err
		}
		params.Status = &status
	}

	return params, nil
}

func requestToDomain(req submitRequestRequest) *domain.Request {
	guests := make([]domain.Guest, 0, len(req.Guests))
	for _, g := range req.Guests {
		guests = append(guests, domain.Guest{
			Name:                   strings.TrimSpace(g.Name),
			Organization:           strings.TrimSpace(g.Organization),
			Email:                  strings.TrimSpace(g.Email),
			Phone:                  strings.TrimSpace(g.Phone),
			Laptop:                 g.Laptop,
			Mobile:                 g.Mobile,
			FlashDrive:             g.FlashDrive,
			OtherDevice:            g.OtherDevice,
			OtherDeviceDescription: strings.TrimSpace(g.OtherDeviceDescription),
			IDPhotoURL:             strings.TrimSpace(g.IDPhotoURL),
		})
	}

	return &domain.Request{
		RequesterID:    strings.TrimSpace(req.RequesterID),
		RequesterName:  strings.TrimSpace(req.RequesterName),
		RequesterEmail: strings.TrimSpace(req.RequesterEmail),
		Destination:    strings.TrimSpace(req.Destination),
		Gate:           strings.TrimSpace(req.Gate),
		FromDate:       req.FromDate,
		ToDate:         req.ToDate,
		Purpose:        strings.TrimSpace(req.Purpose),
		Guests:         guests,
	}
}

func toRequestResponse(req *domain.Request) requestResponse {
	if req == nil {
		return requestResponse{}
	}

	guests := make([]guestResponse, 0, len(req.Guests))
	for i := range req.Guests {
		g := &req.Guests[i]
		guests = append(guests, guestResponse{
			ID:                     g.ID,
			Name:                   g.Name,
			Organization:           g.Organization,
			Email:                  g.Email,
			Phone:                  g.Phone,
			Laptop:                 g.Laptop,
			Mobile:                 g.Mobile,
			FlashDrive:             g.FlashDrive,
			OtherDevice:            g.OtherDevice,
			OtherDeviceDescription: g.OtherDeviceDescription,
			IDPhotoURL:             g.IDPhotoURL,
			CheckInAt:              g.CheckInAt,
			CheckOutAt:             g.CheckOutAt,
			Stage1Decision:         string(g.Stage1Decision),
			Stage1Comment:          g.Stage1Comment,
			Stage2Decision:         string(g.Stage2Decision),
			Stage2Comment:          g.Stage2Comment,
		})
	}

	return requestResponse{
		ID:             req.ID,
		ApprovalNumber: req.ApprovalNumber,
		RequesterID:    req.RequesterID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		Destination:    req.Destination,
		Gate:           req.Gate,
		FromDate:       req.FromDate,
		ToDate:         req.ToDate,
		Purpose:        req.Purpose,
		Status:         req.Status.String(),
		Stage1:         toStageMetaResponse(req.Stage1),
		Stage2:         toStageMetaResponse(req.Stage2),
		Guests:         guests,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
}

func toStageMetaResponse(meta domain.StageDecisionMeta) *stageMetaResponse {
	if meta.DecidedAt == nil && meta.Comment == "" && meta.DecidedBy == "" {
		return nil
	}
	return &stageMetaResponse{
		Comment:   meta.Comment,
		DecidedAt: meta.DecidedAt,
		DecidedBy: meta.DecidedBy,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidSelection),
		errors.Is(err, domain.ErrCommentRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		return err
	}
}
