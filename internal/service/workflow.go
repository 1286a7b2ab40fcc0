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

// ProcessingScheduler hands a notification off to the async delivery path.
type ProcessingScheduler interface {
	ScheduleProcessing(ctx context.Context, notificationID string)
}

// BlacklistAlerter emits the admin alert for a blocked submission.
type BlacklistAlerter interface {
	EmitBlacklistAttempt(ctx context.Context, settings domain.Settings, event BlacklistAttemptEvent) error
}

type ApplyStageActionInput struct {
	RequestID string
	Stage     domain.Stage
	Action    domain.StageAction
	GuestIDs  []string
	Comment   string
	ActorID   string
	ActorName string
}

type WorkflowService struct {
	requests  repository.RequestRepository
	blacklist repository.BlacklistRepository
	alerter   BlacklistAlerter
	scheduler ProcessingScheduler
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newID     func() string
}

func NewWorkflowService(
	requests repository.RequestRepository,
	blacklist repository.BlacklistRepository,
	alerter BlacklistAlerter,
	scheduler ProcessingScheduler,
	logger *zap.Logger,
) (*WorkflowService, error) {
	if requests == nil {
		return nil, fmt.Errorf("request repository is required")
	}
	if blacklist == nil {
		return nil, fmt.Errorf("blacklist repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkflowService{
		requests:  requests,
		blacklist: blacklist,
		alerter:   alerter,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

func (s *WorkflowService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SubmitRequest screens every guest against the active blacklist and stores
// the request. A blacklist match blocks the submission, alerts admins, and
// surfaces a validation error naming the guest.
func (s *WorkflowService) SubmitRequest(ctx context.Context, settings domain.Settings, req *domain.Request) error {
	if req == nil {
		return fmt.Errorf("%w: request is required", domain.ErrValidation)
	}

	if req.ID == "" {
		req.ID = s.newID()
	}
	req.Status = domain.StatusSubmitted
	for i := range req.Guests {
		if req.Guests[i].ID == "" {
			req.Guests[i].ID = s.newID()
		}
		req.Guests[i].RequestID = req.ID
	}

	if err := req.Validate(); err != nil {
		return err
	}

	entries, err := s.blacklist.ActiveEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load blacklist: %w", err)
	}

	for i := range req.Guests {
		guest := &req.Guests[i]
		fp := domain.GuestFingerprint{
			Name:         guest.Name,
			Organization: guest.Organization,
			Email:        guest.Email,
			Phone:        guest.Phone,
		}

		for j := range entries {
			matched := entries[j].MatchedFields(fp)
			if len(matched) == 0 {
				continue
			}

			s.alertBlacklistAttempt(ctx, settings, req, guest, matched)
			return fmt.Errorf("%w: guest %q is blacklisted", domain.ErrValidation, guest.Name)
		}
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncWorkflowTransition(domain.StatusSubmitted.String())
	}

	return nil
}

// alertBlacklistAttempt is best effort: a failed alert never blocks the
// rejection of the submission itself.
func (s *WorkflowService) alertBlacklistAttempt(ctx context.Context, settings domain.Settings, req *domain.Request, guest *domain.Guest, matched []string) {
	if s.alerter == nil {
		return
	}

	event := BlacklistAttemptEvent{
		RequestID:     req.ID,
		RequesterName: req.RequesterName,
		GuestName:     guest.Name,
		MatchedFields: matched,
	}
	if err := s.alerter.EmitBlacklistAttempt(ctx, settings, event); err != nil {
		s.logger.Warn("failed to emit blacklist attempt alert",
			zap.String("requestId", req.ID),
			zap.Error(err),
		)
	}
}

// ApplyStageAction stamps the action's decision on the selected guests and
// recomputes the request status, all within one transaction on a locked
// request row. Blacklist upserts run before the transaction so they survive
// a later rollback.
func (s *WorkflowService) ApplyStageAction(ctx context.Context, settings domain.Settings, input ApplyStageActionInput) (*domain.Request, error) {
	if !input.Stage.IsValid() {
		return nil, fmt.Errorf("%w: invalid stage %d", domain.ErrValidation, input.Stage)
	}
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("%w: invalid action %q", domain.ErrValidation, input.Action)
	}
	if input.Stage == domain.Stage2 && settings.SingleStage() {
		return nil, fmt.Errorf("%w: stage 2 is not enabled", domain.ErrValidation)
	}
	if len(input.GuestIDs) == 0 {
		return nil, fmt.Errorf("%w: no guests selected", domain.ErrInvalidSelection)
	}

	comment := strings.TrimSpace(input.Comment)
	if input.Action.RequiresComment() && comment == "" {
		return nil, fmt.Errorf("%w: action %q needs a comment", domain.ErrCommentRequired, input.Action)
	}

	if input.Action == domain.ActionBlacklist {
		s.upsertBlacklistEntries(ctx, input.RequestID, input.GuestIDs, comment)
	}

	var scheduleIDs []string

	updated, err := s.requests.Mutate(ctx, input.RequestID, func(req *domain.Request) ([]domain.NotificationBundle, error) {
		if req.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: request is %s", domain.ErrConflict, req.Status)
		}
		if input.Stage == domain.Stage2 && req.Status != domain.StatusStage2Pending {
			return nil, fmt.Errorf("%w: request is not awaiting final approval", domain.ErrConflict)
		}

		for _, guestID := range input.GuestIDs {
			guest := req.GuestByID(guestID)
			if guest == nil {
				return nil, fmt.Errorf("%w: unknown guest %q", domain.ErrInvalidSelection, guestID)
			}
			if guest.DecisionFor(input.Stage).IsTerminal() {
				return nil, fmt.Errorf("%w: guest %q already processed", domain.ErrInvalidSelection, guestID)
			}
		}

		for _, guestID := range input.GuestIDs {
			req.GuestByID(guestID).SetDecision(input.Stage, input.Action.Decision(), comment)
		}

		if !req.AllProcessed(input.Stage) {
			if req.Status == domain.StatusSubmitted {
				req.Status = input.Stage.PendingStatus()
			}
			return nil, nil
		}

		s.stampStageMeta(req, input.Stage, comment, input.ActorName)
		s.transition(req, input.Stage, settings)

		bundle := s.requesterNotification(req, settings)
		if bundle == nil {
			return nil, nil
		}

		scheduleIDs = append(scheduleIDs, bundle.Notification.ID)
		return []domain.NotificationBundle{*bundle}, nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncWorkflowTransition(updated.Status.String())
	}
	s.schedule(ctx, scheduleIDs)

	return updated, nil
}

func (s *WorkflowService) stampStageMeta(req *domain.Request, stage domain.Stage, comment, actor string) {
	now := s.now()
	meta := domain.StageDecisionMeta{Comment: comment, DecidedAt: &now, DecidedBy: actor}
	if stage == domain.Stage2 {
		req.Stage2 = meta
		return
	}
	req.Stage1 = meta
}

// transition applies the all-processed branch of the state machine. At a
// two-step stage 1 the request always advances: stage 2 owns the final
// disposition even for guests stage 1 rejected.
func (s *WorkflowService) transition(req *domain.Request, stage domain.Stage, settings domain.Settings) {
	switch {
	case stage == domain.Stage1 && settings.SingleStage():
		if req.AnyApproved(domain.Stage1) {
			req.Status = domain.StatusStage2Approved
			s.ensureApprovalNumber(req)
		} else {
			req.Status = domain.StatusStage1Rejected
		}
	case stage == domain.Stage1:
		req.Status = domain.StatusStage2Pending
		s.ensureApprovalNumber(req)
	default:
		if req.AnyApproved(domain.Stage2) {
			req.Status = domain.StatusStage2Approved
		} else {
			req.Status = domain.StatusStage2Rejected
		}
	}
}

func (s *WorkflowService) ensureApprovalNumber(req *domain.Request) {
	if req.ApprovalNumber != nil {
		return
	}
	number := domain.NewApprovalNumber(s.now())
	req.ApprovalNumber = &number
}

// requesterNotification builds the terminal/forwarding notification for the
// requester, or nil when the transition has none.
func (s *WorkflowService) requesterNotification(req *domain.Request, settings domain.Settings) *domain.NotificationBundle {
	var notifType, subject, message string

	switch req.Status {
	case domain.StatusStage2Approved:
		notifType = domain.NotificationRequestApproved
		subject = "Visit request approved"
		message = fmt.Sprintf("Your visit request to %s was approved. Approval number: %s.",
			req.Destination, derefOrEmpty(req.ApprovalNumber))
	case domain.StatusStage1Rejected, domain.StatusStage2Rejected:
		notifType = domain.NotificationRequestRejected
		subject = "Visit request rejected"
		message = fmt.Sprintf("Your visit request to %s was rejected.", req.Destination)
	case domain.StatusStage2Pending:
		notifType = domain.NotificationRequestForwarded
		subject = "Visit request forwarded"
		message = fmt.Sprintf("Your visit request to %s passed the first review and awaits final approval.",
			req.Destination)
	default:
		return nil
	}

	bundle := &domain.NotificationBundle{
		Notification: domain.Notification{
			ID:        s.newID(),
			UserID:    req.RequesterID,
			Type:      notifType,
			Message:   message,
			RequestID: req.ID,
			CreatedAt: s.now(),
		},
	}

	if settings.EmailNotifications && req.RequesterEmail != "" {
		subj := subject
		bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
			ID:             s.newID(),
			NotificationID: bundle.Notification.ID,
			Channel:        domain.ChannelEmail,
			Recipient:      req.RequesterEmail,
			Subject:        &subj,
			Body:           message,
			Status:         domain.DispatchQueued,
			CreatedAt:      s.now(),
		})
	}

	return bundle
}

// upsertBlacklistEntries runs before the workflow transaction and is not
// rolled back with it. Failures are logged and ignored.
func (s *WorkflowService) upsertBlacklistEntries(ctx context.Context, requestID string, guestIDs []string, comment string) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		s.logger.Warn("failed to load request for blacklist upsert",
			zap.String("requestId", requestID),
			zap.Error(err),
		)
		return
	}

	reason := comment
	if reason == "" {
		reason = "blacklisted during visit approval"
	}

	for _, guestID := range guestIDs {
		guest := req.GuestByID(guestID)
		if guest == nil {
			continue
		}

		entry := domain.BlacklistEntry{
			ID:           s.newID(),
			Name:         guest.Name,
			Organization: guest.Organization,
			Email:        guest.Email,
			Phone:        guest.Phone,
			Reason:       reason,
			Active:       true,
			CreatedAt:    s.now(),
		}
		if err := s.blacklist.Upsert(ctx, &entry); err != nil {
			s.logger.Warn("failed to upsert blacklist entry",
				zap.String("requestId", requestID),
				zap.String("guestId", guestID),
				zap.Error(err),
			)
		}
	}
}

// CheckInGuest stamps the arrival time and alerts the requester.
func (s *WorkflowService) CheckInGuest(ctx context.Context, settings domain.Settings, requestID, guestID string) (*domain.Request, error) {
	var scheduleIDs []string

	updated, err := s.requests.Mutate(ctx, requestID, func(req *domain.Request) ([]domain.NotificationBundle, error) {
		if req.Status != domain.StatusStage2Approved {
			return nil, fmt.Errorf("%w: request is not approved", domain.ErrConflict)
		}

		guest := req.GuestByID(guestID)
		if guest == nil {
			return nil, fmt.Errorf("%w: guest", domain.ErrNotFound)
		}
		if guest.CheckInAt != nil {
			return nil, fmt.Errorf("%w: guest already checked in", domain.ErrConflict)
		}

		now := s.now()
		guest.CheckInAt = &now

		if !settings.CheckInOutNotifications {
			return nil, nil
		}

		message := fmt.Sprintf("%s checked in at gate %s.", guest.Name, req.Gate)
		bundle := domain.NotificationBundle{
			Notification: domain.Notification{
				ID:        s.newID(),
				UserID:    req.RequesterID,
				Type:      domain.NotificationGuestCheckIn,
				Message:   message,
				RequestID: req.ID,
				CreatedAt: now,
			},
		}
		if settings.EmailNotifications && req.RequesterEmail != "" {
			subj := "Guest checked in"
			bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
				ID:             s.newID(),
				NotificationID: bundle.Notification.ID,
				Channel:        domain.ChannelEmail,
				Recipient:      req.RequesterEmail,
				Subject:        &subj,
				Body:           message,
				Status:         domain.DispatchQueued,
				CreatedAt:      now,
			})
		}

		scheduleIDs = append(scheduleIDs, bundle.Notification.ID)
		return []domain.NotificationBundle{bundle}, nil
	})
	if err != nil {
		return nil, err
	}

	s.schedule(ctx, scheduleIDs)
	return updated, nil
}

// CheckOutGuest stamps the departure time, confirms to the guest over the
// enabled channels, and records an in-app notification for the requester.
func (s *WorkflowService) CheckOutGuest(ctx context.Context, settings domain.Settings, requestID, guestID string) (*domain.Request, error) {
	var scheduleIDs []string

	updated, err := s.requests.Mutate(ctx, requestID, func(req *domain.Request) ([]domain.NotificationBundle, error) {
		guest := req.GuestByID(guestID)
		if guest == nil {
			return nil, fmt.Errorf("%w: guest", domain.ErrNotFound)
		}
		if guest.CheckInAt == nil {
			return nil, fmt.Errorf("%w: guest never checked in", domain.ErrConflict)
		}
		if guest.CheckOutAt != nil {
			return nil, fmt.Errorf("%w: guest already checked out", domain.ErrConflict)
		}

		now := s.now()
		guest.CheckOutAt = &now

		if !settings.CheckInOutNotifications {
			return nil, nil
		}

		message := fmt.Sprintf("%s checked out at gate %s.", guest.Name, req.Gate)
		bundle := domain.NotificationBundle{
			Notification: domain.Notification{
				ID:        s.newID(),
				UserID:    req.RequesterID,
				Type:      domain.NotificationGuestCheckoutConfirm,
				Message:   message,
				RequestID: req.ID,
				CreatedAt: now,
			},
		}

		confirmation := fmt.Sprintf("Thank you for your visit to %s. Your checkout was recorded.", req.Destination)
		if settings.EmailNotifications && guest.Email != "" {
			subj := "Checkout confirmation"
			bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
				ID:             s.newID(),
				NotificationID: bundle.Notification.ID,
				Channel:        domain.ChannelEmail,
				Recipient:      guest.Email,
				Subject:        &subj,
				Body:           confirmation,
				Status:         domain.DispatchQueued,
				CreatedAt:      now,
			})
		}
		if settings.SMSNotifications && guest.Phone != "" {
			bundle.Dispatches = append(bundle.Dispatches, domain.NotificationDispatch{
				ID:             s.newID(),
				NotificationID: bundle.Notification.ID,
				Channel:        domain.ChannelSMS,
				Recipient:      guest.Phone,
				Body:           confirmation,
				Status:         domain.DispatchQueued,
				CreatedAt:      now,
			})
		}

		scheduleIDs = append(scheduleIDs, bundle.Notification.ID)
		return []domain.NotificationBundle{bundle}, nil
	})
	if err != nil {
		return nil, err
	}

	s.schedule(ctx, scheduleIDs)
	return updated, nil
}

func (s *WorkflowService) GetRequests(ctx context.Context, params repository.ListRequestParams) ([]domain.Request, int64, error) {
	return s.requests.List(ctx, params)
}

func (s *WorkflowService) GetRequestByID(ctx context.Context, id string) (*domain.Request, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *WorkflowService) schedule(ctx context.Context, notificationIDs []string) {
	if s.scheduler == nil {
		return
	}
	for _, id := range notificationIDs {
		s.scheduler.ScheduleProcessing(ctx, id)
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
