package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/provider"
	"github.com/visitflow/visitflow/internal/retry"
	"go.uber.org/zap"
)

func newTestDispatch(t *testing.T, notifications *fakeNotificationRepo, claims *fakeClaimer) *DispatchService {
	t.Helper()

	svc, err := NewDispatchService(
		notifications,
		&fakeSettingsRepo{settings: twoStepSettings()},
		claims,
		nil,
		nil,
		provider.Env{},
		1,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}

	svc.retry = retry.Options{Retries: 2, BaseDelay: time.Nanosecond, MaxDelay: time.Millisecond}
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }
	return svc
}

func queuedEmailDispatch(id string) domain.NotificationDispatch {
	subject := "Visit request approved"
	return domain.NotificationDispatch{
		ID:             id,
		NotificationID: "n1",
		Channel:        domain.ChannelEmail,
		Recipient:      "ada@example.com",
		Subject:        &subject,
		Body:           "approved",
		Status:         domain.DispatchQueued,
	}
}

func TestProcessNotificationClaimDenied(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{queued: []domain.NotificationDispatch{queuedEmailDispatch("d1")}}
	claims := &fakeClaimer{denied: true}
	svc := newTestDispatch(t, notifications, claims)

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}
	if notifications.queuedCalled {
		t.Fatal("a denied claim must skip without loading dispatches")
	}
	if len(claims.released) != 0 {
		t.Fatal("an unheld claim must not be released")
	}
}

func TestProcessNotificationTransientThenSuccess(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{queued: []domain.NotificationDispatch{queuedEmailDispatch("d1")}}
	claims := &fakeClaimer{}
	svc := newTestDispatch(t, notifications, claims)

	calls := 0
	svc.resolveEmail = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error) {
		return &fakeEmailProvider{
			name: "smtp",
			sendFn: func(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error) {
				calls++
				if calls < 3 {
					return nil, &provider.ProviderError{StatusCode: 503, Message: "upstream busy", Transient: true}
				}
				return &provider.SendResult{Provider: "smtp"}, nil
			},
		}, nil
	}

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	// Every provider call consumes an attempt, in-run retries included.
	if notifications.attempts["d1"] != 3 {
		t.Fatalf("attempts = %d, want 3", notifications.attempts["d1"])
	}
	if notifications.sent["d1"] != "smtp" {
		t.Fatalf("sent provider = %q, want smtp", notifications.sent["d1"])
	}
	if len(notifications.requeued) != 0 || len(notifications.failed) != 0 {
		t.Fatal("a delivered dispatch must not be requeued or failed")
	}
	if len(claims.released) != 1 || claims.released[0] != "n1" {
		t.Fatalf("released = %v, want the processed claim", claims.released)
	}
}

func TestProcessNotificationPermanentFailure(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{queued: []domain.NotificationDispatch{queuedEmailDispatch("d1")}}
	svc := newTestDispatch(t, notifications, &fakeClaimer{})

	calls := 0
	svc.resolveEmail = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error) {
		return &fakeEmailProvider{
			name: "resend",
			sendFn: func(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error) {
				calls++
				return nil, &provider.ProviderError{StatusCode: 401, Message: "bad api key"}
			},
		}, nil
	}

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	if calls != 1 {
		t.Fatalf("provider calls = %d, permanent errors must not be retried", calls)
	}
	if notifications.attempts["d1"] != 1 {
		t.Fatalf("attempts = %d, want 1", notifications.attempts["d1"])
	}
	if _, ok := notifications.failed["d1"]; !ok {
		t.Fatal("dispatch must be marked failed")
	}
	if len(notifications.requeued) != 0 {
		t.Fatal("permanent failures must not be requeued")
	}
}

func TestProcessNotificationTransientExhaustionRequeues(t *testing.T) {
	t.Parallel()

	dispatch := queuedEmailDispatch("d1")
	notifications := &fakeNotificationRepo{queued: []domain.NotificationDispatch{dispatch}}
	svc := newTestDispatch(t, notifications, &fakeClaimer{})
	svc.retry.Retries = 0

	svc.resolveEmail = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error) {
		return &fakeEmailProvider{
			name: "smtp",
			sendFn: func(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error) {
				return nil, &provider.ProviderError{StatusCode: 503, Message: "busy", Transient: true}
			},
		}, nil
	}

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	// One attempt of three consumed: the dispatch goes back to the queue.
	if notifications.attempts["d1"] != 1 {
		t.Fatalf("attempts = %d, want 1", notifications.attempts["d1"])
	}
	if _, ok := notifications.requeued["d1"]; !ok {
		t.Fatal("a transient failure under the attempt cap must be requeued")
	}
	if len(notifications.failed) != 0 {
		t.Fatal("requeued dispatch must not be marked failed")
	}
}

func TestProcessNotificationTransientAtAttemptCapFails(t *testing.T) {
	t.Parallel()

	dispatch := queuedEmailDispatch("d1")
	dispatch.Attempts = 2
	notifications := &fakeNotificationRepo{
		queued:   []domain.NotificationDispatch{dispatch},
		attempts: map[string]int{"d1": 2},
	}
	svc := newTestDispatch(t, notifications, &fakeClaimer{})

	svc.resolveEmail = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error) {
		return &fakeEmailProvider{
			name: "smtp",
			sendFn: func(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error) {
				return nil, &provider.ProviderError{StatusCode: 503, Message: "busy", Transient: true}
			},
		}, nil
	}

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	if notifications.attempts["d1"] != 3 {
		t.Fatalf("attempts = %d, want 3", notifications.attempts["d1"])
	}
	if _, ok := notifications.failed["d1"]; !ok {
		t.Fatal("exhausting the attempt cap must fail the dispatch")
	}
	if len(notifications.requeued) != 0 {
		t.Fatal("a dispatch at the cap must not be requeued")
	}
}

func TestProcessNotificationNotConfigured(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{queued: []domain.NotificationDispatch{queuedEmailDispatch("d1")}}
	svc := newTestDispatch(t, notifications, &fakeClaimer{})

	svc.resolveEmail = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error) {
		return nil, domain.ErrNotConfigured
	}

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	if notifications.attempts["d1"] != 0 {
		t.Fatal("no provider means no attempt is consumed")
	}
	if _, ok := notifications.failed["d1"]; !ok {
		t.Fatal("a missing provider must fail the dispatch permanently")
	}
}

func TestProcessNotificationSiblingIsolation(t *testing.T) {
	t.Parallel()

	smsDispatch := domain.NotificationDispatch{
		ID:             "d2",
		NotificationID: "n1",
		Channel:        domain.ChannelSMS,
		Recipient:      "+905551112233",
		Body:           "approved",
		Status:         domain.DispatchQueued,
	}
	notifications := &fakeNotificationRepo{
		queued: []domain.NotificationDispatch{queuedEmailDispatch("d1"), smsDispatch},
	}
	svc := newTestDispatch(t, notifications, &fakeClaimer{})

	svc.resolveEmail = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error) {
		return &fakeEmailProvider{
			name: "smtp",
			sendFn: func(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error) {
				return nil, errors.New("connection refused")
			},
		}, nil
	}
	svc.resolveSMS = func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.SMSProvider, error) {
		return &fakeSMSProvider{
			name: "sms-gateway",
			sendFn: func(ctx context.Context, payload provider.SMSPayload) (*provider.SendResult, error) {
				return &provider.SendResult{Provider: "sms-gateway"}, nil
			},
		}, nil
	}

	if err := svc.ProcessNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("ProcessNotification() error = %v", err)
	}

	if notifications.sent["d2"] != "sms-gateway" {
		t.Fatal("the sms sibling must be delivered despite the email failure")
	}
	if notifications.sent["d1"] != "" {
		t.Fatal("the failing email dispatch must not be marked sent")
	}
}

// --- fakes ---

type fakeClaimer struct {
	denied   bool
	acquired []string
	released []string
}

func (f *fakeClaimer) Acquire(ctx context.Context, notificationID string) (bool, error) {
	if f.denied {
		return false, nil
	}
	f.acquired = append(f.acquired, notificationID)
	return true, nil
}

func (f *fakeClaimer) Release(ctx context.Context, notificationID string) error {
	f.released = append(f.released, notificationID)
	return nil
}

type fakeSettingsRepo struct {
	settings domain.Settings
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	return f.settings, nil
}

func (f *fakeSettingsRepo) Update(ctx context.Context, settings domain.Settings) error {
	f.settings = settings
	return nil
}

type fakeEmailProvider struct {
	name   string
	sendFn func(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error)
}

func (f *fakeEmailProvider) Name() string { return f.name }

func (f *fakeEmailProvider) SendEmail(ctx context.Context, payload provider.EmailPayload) (*provider.SendResult, error) {
	return f.sendFn(ctx, payload)
}

type fakeSMSProvider struct {
	name   string
	sendFn func(ctx context.Context, payload provider.SMSPayload) (*provider.SendResult, error)
}

func (f *fakeSMSProvider) Name() string { return f.name }

func (f *fakeSMSProvider) SendSMS(ctx context.Context, payload provider.SMSPayload) (*provider.SendResult, error) {
	return f.sendFn(ctx, payload)
}
