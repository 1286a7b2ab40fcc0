package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/repository"
	"go.uber.org/zap"
)

func newTestWorkflow(t *testing.T, requests *fakeRequestRepo, blacklist *fakeBlacklistRepo, alerter *fakeAlerter, scheduler *fakeScheduler) *WorkflowService {
	t.Helper()

	svc, err := NewWorkflowService(requests, blacklist, alerter, scheduler, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkflowService() error = %v", err)
	}

	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }
	counter := 0
	svc.newID = func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	return svc
}

func twoStepSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.ApprovalSteps = 2
	return s
}

func singleStepSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.ApprovalSteps = 1
	return s
}

func twoGuestRequest(status domain.Status) *domain.Request {
	return &domain.Request{
		ID:             "r1",
		RequesterID:    "u1",
		RequesterName:  "Ada",
		RequesterEmail: "ada@example.com",
		Destination:    "Building A",
		Gate:           "228",
		FromDate:       time.Unix(1_700_000_000, 0),
		ToDate:         time.Unix(1_700_086_400, 0),
		Guests: []domain.Guest{
			{ID: "g1", RequestID: "r1", Name: "Grace", Email: "grace@example.com", Phone: "+905551112233"},
			{ID: "g2", RequestID: "r1", Name: "Linus"},
		},
		Status:    status,
		CreatedAt: time.Unix(1_699_900_000, 0),
	}
}

func TestSubmitRequestCreates(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	req := twoGuestRequest("")
	req.ID = ""
	req.Guests[0].ID = ""
	req.Guests[1].ID = ""

	if err := svc.SubmitRequest(context.Background(), twoStepSettings(), req); err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}

	if len(requests.created) != 1 {
		t.Fatalf("created %d requests, want 1", len(requests.created))
	}
	if req.Status != domain.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", req.Status)
	}
	if req.ID == "" {
		t.Fatal("request id was not assigned")
	}
	for i := range req.Guests {
		if req.Guests[i].ID == "" {
			t.Fatalf("guest %d id was not assigned", i)
		}
		if req.Guests[i].RequestID != req.ID {
			t.Fatalf("guest %d request id = %q, want %q", i, req.Guests[i].RequestID, req.ID)
		}
	}
}

func TestSubmitRequestBlacklistedGuest(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{}
	blacklist := &fakeBlacklistRepo{
		entries: []domain.BlacklistEntry{
			{ID: "b1", Name: "Grace", Email: "grace@example.com", Active: true},
		},
	}
	alerter := &fakeAlerter{}
	svc := newTestWorkflow(t, requests, blacklist, alerter, &fakeScheduler{})

	err := svc.SubmitRequest(context.Background(), twoStepSettings(), twoGuestRequest(""))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("SubmitRequest() error = %v, want ErrValidation", err)
	}

	if len(requests.created) != 0 {
		t.Fatal("blocked submission must not be persisted")
	}
	if len(alerter.events) != 1 {
		t.Fatalf("alerter got %d events, want 1", len(alerter.events))
	}
	if alerter.events[0].GuestName != "Grace" {
		t.Fatalf("alert guest = %q, want Grace", alerter.events[0].GuestName)
	}
}

func TestSubmitRequestAlertFailureStillBlocks(t *testing.T) {
	t.Parallel()

	blacklist := &fakeBlacklistRepo{
		entries: []domain.BlacklistEntry{{ID: "b1", Name: "Grace", Active: true}},
	}
	alerter := &fakeAlerter{err: errors.New("smtp down")}
	svc := newTestWorkflow(t, &fakeRequestRepo{}, blacklist, alerter, &fakeScheduler{})

	err := svc.SubmitRequest(context.Background(), twoStepSettings(), twoGuestRequest(""))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("SubmitRequest() error = %v, want ErrValidation", err)
	}
}

func TestApplyStageActionInputValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings domain.Settings
		input    ApplyStageActionInput
		wantErr  error
	}{
		{
			name:     "invalid stage",
			settings: twoStepSettings(),
			input:    ApplyStageActionInput{RequestID: "r1", Stage: 3, Action: domain.ActionApprove, GuestIDs: []string{"g1"}},
			wantErr:  domain.ErrValidation,
		},
		{
			name:     "invalid action",
			settings: twoStepSettings(),
			input:    ApplyStageActionInput{RequestID: "r1", Stage: domain.Stage1, Action: "escalate", GuestIDs: []string{"g1"}},
			wantErr:  domain.ErrValidation,
		},
		{
			name:     "stage 2 disabled in single step mode",
			settings: singleStepSettings(),
			input:    ApplyStageActionInput{RequestID: "r1", Stage: domain.Stage2, Action: domain.ActionApprove, GuestIDs: []string{"g1"}},
			wantErr:  domain.ErrValidation,
		},
		{
			name:     "empty selection",
			settings: twoStepSettings(),
			input:    ApplyStageActionInput{RequestID: "r1", Stage: domain.Stage1, Action: domain.ActionApprove},
			wantErr:  domain.ErrInvalidSelection,
		},
		{
			name:     "reject without comment",
			settings: twoStepSettings(),
			input:    ApplyStageActionInput{RequestID: "r1", Stage: domain.Stage1, Action: domain.ActionReject, GuestIDs: []string{"g1"}},
			wantErr:  domain.ErrCommentRequired,
		},
		{
			name:     "blacklist with blank comment",
			settings: twoStepSettings(),
			input:    ApplyStageActionInput{RequestID: "r1", Stage: domain.Stage1, Action: domain.ActionBlacklist, GuestIDs: []string{"g1"}, Comment: "   "},
			wantErr:  domain.ErrCommentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusSubmitted)}
			svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

			_, err := svc.ApplyStageAction(context.Background(), tt.settings, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyStageAction() error = %v, want %v", err, tt.wantErr)
			}
			if requests.mutateCalls != 0 {
				t.Fatal("input validation must reject before touching the request")
			}
		})
	}
}

func TestApplyStageActionPartialSelection(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusSubmitted)}
	scheduler := &fakeScheduler{}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, scheduler)

	updated, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
		RequestID: "r1",
		Stage:     domain.Stage1,
		Action:    domain.ActionApprove,
		GuestIDs:  []string{"g1"},
	})
	if err != nil {
		t.Fatalf("ApplyStageAction() error = %v", err)
	}

	if updated.Status != domain.StatusStage1Pending {
		t.Fatalf("status = %s, want stage1-pending", updated.Status)
	}
	if updated.GuestByID("g1").Stage1Decision != domain.DecisionApproved {
		t.Fatal("selected guest decision was not stamped")
	}
	if updated.GuestByID("g2").Stage1Decision != domain.DecisionUnset {
		t.Fatal("unselected guest must stay unprocessed")
	}
	if len(requests.bundles) != 0 {
		t.Fatal("partial processing must not notify the requester")
	}
	if len(scheduler.scheduled) != 0 {
		t.Fatal("nothing should be scheduled before the stage completes")
	}
}

func TestApplyStageActionTwoStepStage1AlwaysForwards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		actions map[string]domain.StageAction
	}{
		{name: "all approved", actions: map[string]domain.StageAction{"g1": domain.ActionApprove, "g2": domain.ActionApprove}},
		{name: "mixed decisions", actions: map[string]domain.StageAction{"g1": domain.ActionApprove, "g2": domain.ActionReject}},
		{name: "all rejected", actions: map[string]domain.StageAction{"g1": domain.ActionReject, "g2": domain.ActionReject}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusSubmitted)}
			scheduler := &fakeScheduler{}
			svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, scheduler)

			var updated *domain.Request
			var err error
			for guestID, action := range tt.actions {
				updated, err = svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
					RequestID: "r1",
					Stage:     domain.Stage1,
					Action:    action,
					GuestIDs:  []string{guestID},
					Comment:   "reviewed",
					ActorName: "First Approver",
				})
				if err != nil {
					t.Fatalf("ApplyStageAction(%s) error = %v", guestID, err)
				}
			}

			if updated.Status != domain.StatusStage2Pending {
				t.Fatalf("status = %s, want stage2-pending", updated.Status)
			}
			if updated.ApprovalNumber == nil {
				t.Fatal("completing stage 1 must assign an approval number")
			}
			for guestID, action := range tt.actions {
				if got := updated.GuestByID(guestID).Stage1Decision; got != action.Decision() {
					t.Fatalf("guest %s stage 1 decision = %s, want %s", guestID, got, action.Decision())
				}
			}
			if updated.Stage1.DecidedAt == nil || updated.Stage1.DecidedBy != "First Approver" {
				t.Fatal("stage 1 decision metadata was not stamped")
			}

			if len(requests.bundles) != 1 {
				t.Fatalf("got %d bundles, want 1", len(requests.bundles))
			}
			bundle := requests.bundles[0]
			if bundle.Notification.Type != domain.NotificationRequestForwarded {
				t.Fatalf("notification type = %s, want request_forwarded", bundle.Notification.Type)
			}
			if bundle.Notification.UserID != "u1" {
				t.Fatalf("notification recipient = %s, want requester u1", bundle.Notification.UserID)
			}
			if len(bundle.Dispatches) != 1 || bundle.Dispatches[0].Recipient != "ada@example.com" {
				t.Fatal("forwarding must queue an email dispatch to the requester")
			}
			if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != bundle.Notification.ID {
				t.Fatalf("scheduled = %v, want the created notification", scheduler.scheduled)
			}
		})
	}
}

func TestApplyStageActionSingleStepOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		actions    map[string]domain.StageAction
		wantStatus domain.Status
		wantType   string
		wantNumber bool
	}{
		{
			name:       "any approval wins",
			actions:    map[string]domain.StageAction{"g1": domain.ActionApprove, "g2": domain.ActionReject},
			wantStatus: domain.StatusStage2Approved,
			wantType:   domain.NotificationRequestApproved,
			wantNumber: true,
		},
		{
			name:       "all rejected",
			actions:    map[string]domain.StageAction{"g1": domain.ActionReject, "g2": domain.ActionReject},
			wantStatus: domain.StatusStage1Rejected,
			wantType:   domain.NotificationRequestRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusSubmitted)}
			svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

			var updated *domain.Request
			var err error
			for guestID, action := range tt.actions {
				updated, err = svc.ApplyStageAction(context.Background(), singleStepSettings(), ApplyStageActionInput{
					RequestID: "r1",
					Stage:     domain.Stage1,
					Action:    action,
					GuestIDs:  []string{guestID},
					Comment:   "reviewed",
				})
				if err != nil {
					t.Fatalf("ApplyStageAction(%s) error = %v", guestID, err)
				}
			}

			if updated.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", updated.Status, tt.wantStatus)
			}
			if tt.wantNumber != (updated.ApprovalNumber != nil) {
				t.Fatalf("approval number presence = %v, want %v", updated.ApprovalNumber != nil, tt.wantNumber)
			}
			if len(requests.bundles) != 1 {
				t.Fatalf("got %d bundles, want 1", len(requests.bundles))
			}
			if requests.bundles[0].Notification.Type != tt.wantType {
				t.Fatalf("notification type = %s, want %s", requests.bundles[0].Notification.Type, tt.wantType)
			}
		})
	}
}

func TestApplyStageActionStage2KeepsApprovalNumber(t *testing.T) {
	t.Parallel()

	number := "APV-EXISTING-1234"
	req := twoGuestRequest(domain.StatusStage2Pending)
	req.ApprovalNumber = &number
	req.Guests[0].Stage1Decision = domain.DecisionApproved
	req.Guests[1].Stage1Decision = domain.DecisionRejected

	requests := &fakeRequestRepo{req: req}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	updated, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
		RequestID: "r1",
		Stage:     domain.Stage2,
		Action:    domain.ActionApprove,
		GuestIDs:  []string{"g1", "g2"},
	})
	if err != nil {
		t.Fatalf("ApplyStageAction() error = %v", err)
	}

	if updated.Status != domain.StatusStage2Approved {
		t.Fatalf("status = %s, want stage2-approved", updated.Status)
	}
	if updated.ApprovalNumber == nil || *updated.ApprovalNumber != number {
		t.Fatalf("approval number = %v, want the stage 1 number preserved", updated.ApprovalNumber)
	}
}

func TestApplyStageActionStage2CountsStage1TerminalOnly(t *testing.T) {
	t.Parallel()

	req := twoGuestRequest(domain.StatusStage2Pending)
	req.Guests[0].Stage1Decision = domain.DecisionApproved
	// g2 carries no stage 1 decision and must not hold stage 2 open.

	requests := &fakeRequestRepo{req: req}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	updated, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
		RequestID: "r1",
		Stage:     domain.Stage2,
		Action:    domain.ActionReject,
		GuestIDs:  []string{"g1"},
		Comment:   "site closed",
	})
	if err != nil {
		t.Fatalf("ApplyStageAction() error = %v", err)
	}

	if updated.Status != domain.StatusStage2Rejected {
		t.Fatalf("status = %s, want stage2-rejected", updated.Status)
	}
}

func TestApplyStageActionStage2RequiresPendingStatus(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusSubmitted)}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	_, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
		RequestID: "r1",
		Stage:     domain.Stage2,
		Action:    domain.ActionApprove,
		GuestIDs:  []string{"g1"},
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("ApplyStageAction() error = %v, want ErrConflict", err)
	}
}

func TestApplyStageActionTerminalRequestConflicts(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{domain.StatusStage1Rejected, domain.StatusStage2Approved, domain.StatusStage2Rejected} {
		requests := &fakeRequestRepo{req: twoGuestRequest(status)}
		svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

		_, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
			RequestID: "r1",
			Stage:     domain.Stage1,
			Action:    domain.ActionApprove,
			GuestIDs:  []string{"g1"},
		})
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("status %s: error = %v, want ErrConflict", status, err)
		}
	}
}

func TestApplyStageActionInvalidSelectionMutatesNothing(t *testing.T) {
	t.Parallel()

	req := twoGuestRequest(domain.StatusSubmitted)
	req.Guests[1].Stage1Decision = domain.DecisionRejected

	tests := []struct {
		name     string
		guestIDs []string
	}{
		{name: "unknown guest", guestIDs: []string{"g1", "ghost"}},
		{name: "already processed guest", guestIDs: []string{"g1", "g2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requests := &fakeRequestRepo{req: cloneRequest(req)}
			svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

			_, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
				RequestID: "r1",
				Stage:     domain.Stage1,
				Action:    domain.ActionApprove,
				GuestIDs:  tt.guestIDs,
			})
			if !errors.Is(err, domain.ErrInvalidSelection) {
				t.Fatalf("ApplyStageAction() error = %v, want ErrInvalidSelection", err)
			}

			// The valid guest in the batch must stay untouched.
			if requests.req.GuestByID("g1").Stage1Decision != domain.DecisionUnset {
				t.Fatal("partial batch must not be applied")
			}
			if requests.req.Status != domain.StatusSubmitted {
				t.Fatalf("status = %s, want submitted", requests.req.Status)
			}
		})
	}
}

func TestApplyStageActionBlacklistUpserts(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusSubmitted)}
	blacklist := &fakeBlacklistRepo{}
	svc := newTestWorkflow(t, requests, blacklist, &fakeAlerter{}, &fakeScheduler{})

	updated, err := svc.ApplyStageAction(context.Background(), twoStepSettings(), ApplyStageActionInput{
		RequestID: "r1",
		Stage:     domain.Stage1,
		Action:    domain.ActionBlacklist,
		GuestIDs:  []string{"g1"},
		Comment:   "forged credentials",
	})
	if err != nil {
		t.Fatalf("ApplyStageAction() error = %v", err)
	}

	if updated.GuestByID("g1").Stage1Decision != domain.DecisionBlacklisted {
		t.Fatal("guest decision must be blacklisted")
	}
	if len(blacklist.upserts) != 1 {
		t.Fatalf("got %d blacklist upserts, want 1", len(blacklist.upserts))
	}
	entry := blacklist.upserts[0]
	if entry.Name != "Grace" || entry.Reason != "forged credentials" || !entry.Active {
		t.Fatalf("unexpected blacklist entry: %+v", entry)
	}
}

func TestCheckInGuest(t *testing.T) {
	t.Parallel()

	req := twoGuestRequest(domain.StatusStage2Approved)
	requests := &fakeRequestRepo{req: req}
	scheduler := &fakeScheduler{}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, scheduler)

	updated, err := svc.CheckInGuest(context.Background(), twoStepSettings(), "r1", "g1")
	if err != nil {
		t.Fatalf("CheckInGuest() error = %v", err)
	}
	if updated.GuestByID("g1").CheckInAt == nil {
		t.Fatal("check-in time was not stamped")
	}
	if len(requests.bundles) != 1 || requests.bundles[0].Notification.Type != domain.NotificationGuestCheckIn {
		t.Fatal("expected a guest_checkin notification for the requester")
	}
	if len(scheduler.scheduled) != 1 {
		t.Fatalf("scheduled = %v, want one notification", scheduler.scheduled)
	}

	// Second check-in conflicts.
	if _, err := svc.CheckInGuest(context.Background(), twoStepSettings(), "r1", "g1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second check-in error = %v, want ErrConflict", err)
	}
}

func TestCheckInGuestRequiresApproval(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusStage2Pending)}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	if _, err := svc.CheckInGuest(context.Background(), twoStepSettings(), "r1", "g1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("CheckInGuest() error = %v, want ErrConflict", err)
	}
}

func TestCheckOutGuest(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	req := twoGuestRequest(domain.StatusStage2Approved)
	req.Guests[0].CheckInAt = &now

	requests := &fakeRequestRepo{req: req}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	updated, err := svc.CheckOutGuest(context.Background(), twoStepSettings(), "r1", "g1")
	if err != nil {
		t.Fatalf("CheckOutGuest() error = %v", err)
	}
	if updated.GuestByID("g1").CheckOutAt == nil {
		t.Fatal("check-out time was not stamped")
	}

	if len(requests.bundles) != 1 {
		t.Fatalf("got %d bundles, want 1", len(requests.bundles))
	}
	bundle := requests.bundles[0]
	if bundle.Notification.Type != domain.NotificationGuestCheckoutConfirm {
		t.Fatalf("notification type = %s", bundle.Notification.Type)
	}

	// Confirmation goes to the guest over both enabled channels.
	if len(bundle.Dispatches) != 2 {
		t.Fatalf("got %d dispatches, want 2", len(bundle.Dispatches))
	}
	channels := map[domain.Channel]string{}
	for _, d := range bundle.Dispatches {
		channels[d.Channel] = d.Recipient
	}
	if channels[domain.ChannelEmail] != "grace@example.com" {
		t.Fatalf("email recipient = %q, want the guest", channels[domain.ChannelEmail])
	}
	if channels[domain.ChannelSMS] != "+905551112233" {
		t.Fatalf("sms recipient = %q, want the guest", channels[domain.ChannelSMS])
	}
}

func TestCheckOutGuestWithoutCheckIn(t *testing.T) {
	t.Parallel()

	requests := &fakeRequestRepo{req: twoGuestRequest(domain.StatusStage2Approved)}
	svc := newTestWorkflow(t, requests, &fakeBlacklistRepo{}, &fakeAlerter{}, &fakeScheduler{})

	if _, err := svc.CheckOutGuest(context.Background(), twoStepSettings(), "r1", "g1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("CheckOutGuest() error = %v, want ErrConflict", err)
	}
}

func cloneRequest(req *domain.Request) *domain.Request {
	cp := *req
	cp.Guests = append([]domain.Guest(nil), req.Guests...)
	return &cp
}

// --- fakes ---

type fakeRequestRepo struct {
	req         *domain.Request
	created     []*domain.Request
	bundles     []domain.NotificationBundle
	stale       []domain.Request
	mutateCalls int
}

func (f *fakeRequestRepo) Create(ctx context.Context, req *domain.Request) error {
	f.created = append(f.created, req)
	return nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if f.req == nil || f.req.ID != id {
		return nil, domain.ErrNotFound
	}
	return cloneRequest(f.req), nil
}

func (f *fakeRequestRepo) List(ctx context.Context, params repository.ListRequestParams) ([]domain.Request, int64, error) {
	if f.req == nil {
		return nil, 0, nil
	}
	return []domain.Request{*f.req}, 1, nil
}

// Mutate mirrors the transactional repo: a mutation error discards every
// in-place change.
func (f *fakeRequestRepo) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (*domain.Request, error) {
	if f.req == nil || f.req.ID != id {
		return nil, domain.ErrNotFound
	}
	f.mutateCalls++

	cp := cloneRequest(f.req)
	bundles, err := fn(cp)
	if err != nil {
		return nil, err
	}

	f.req = cp
	f.bundles = append(f.bundles, bundles...)
	return cloneRequest(cp), nil
}

func (f *fakeRequestRepo) StalePendingStage1(ctx context.Context, olderThan time.Time, limit int) ([]domain.Request, error) {
	return f.stale, nil
}

type fakeBlacklistRepo struct {
	entries []domain.BlacklistEntry
	upserts []domain.BlacklistEntry
}

func (f *fakeBlacklistRepo) ActiveEntries(ctx context.Context) ([]domain.BlacklistEntry, error) {
	return f.entries, nil
}

func (f *fakeBlacklistRepo) Upsert(ctx context.Context, entry *domain.BlacklistEntry) error {
	f.upserts = append(f.upserts, *entry)
	return nil
}

type fakeScheduler struct {
	scheduled []string
}

func (f *fakeScheduler) ScheduleProcessing(ctx context.Context, notificationID string) {
	f.scheduled = append(f.scheduled, notificationID)
}

type fakeAlerter struct {
	events []BlacklistAttemptEvent
	err    error
}

func (f *fakeAlerter) EmitBlacklistAttempt(ctx context.Context, settings domain.Settings, event BlacklistAttemptEvent) error {
	f.events = append(f.events, event)
	return f.err
}
