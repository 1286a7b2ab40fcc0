package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/visitflow/visitflow/internal/domain"
	"github.com/visitflow/visitflow/internal/observability"
	"github.com/visitflow/visitflow/internal/provider"
	"github.com/visitflow/visitflow/internal/queue"
	"github.com/visitflow/visitflow/internal/repository"
	"github.com/visitflow/visitflow/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	sendTimeout          = 10 * time.Second
	scheduleTimeout      = 5 * time.Second
	fallbackTimeout      = time.Minute
)

// Claimer grants exclusive processing ownership of one notification.
type Claimer interface {
	Acquire(ctx context.Context, notificationID string) (bool, error)
	Release(ctx context.Context, notificationID string) error
}

// EmailResolver and SMSResolver pick the first configured provider for the
// given settings snapshot.
type EmailResolver func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.EmailProvider, error)

type SMSResolver func(ctx context.Context, settings domain.Settings, env provider.Env) (provider.SMSProvider, error)

type DispatchService struct {
	notifications repository.NotificationRepository
	settings      repository.SettingsRepository
	claims        Claimer
	publisher     queue.Publisher
	consumer      queue.Consumer
	env           provider.Env
	resolveEmail  EmailResolver
	resolveSMS    SMSResolver
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	retry         retry.Options
	now           func() time.Time
}

func NewDispatchService(
	notifications repository.NotificationRepository,
	settings repository.SettingsRepository,
	claims Claimer,
	publisher queue.Publisher,
	consumer queue.Consumer,
	env provider.Env,
	concurrency int,
	logger *zap.Logger,
) (*DispatchService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if claims == nil {
		return nil, fmt.Errorf("claimer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		notifications: notifications,
		settings:      settings,
		claims:        claims,
		publisher:     publisher,
		consumer:      consumer,
		env:           env,
		resolveEmail:  provider.ResolveEmail,
		resolveSMS:    provider.ResolveSMS,
		logger:        logger,
		concurrency:   concurrency,
		retry:         retry.Options{Retries: 2},
		now:           time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ScheduleProcessing hands the notification to the queue, falling back to an
// in-process goroutine when the broker is unavailable. Best effort: a
// scheduling failure never fails the caller.
func (s *DispatchService) ScheduleProcessing(ctx context.Context, notificationID string) {
	if s.publisher != nil {
		publishCtx, cancel := context.WithTimeout(ctx, scheduleTimeout)
		err := s.publisher.Publish(publishCtx, queue.WorkQueue, queue.ProcessingMessage{NotificationID: notificationID})
		cancel()
		if err == nil {
			return
		}

		s.logger.Warn("failed to publish processing message, falling back to in-process",
			zap.String("notificationId", notificationID),
			zap.Error(err),
		)
	}

	go func() {
		// Detached from the caller's lifetime on purpose.
		fallbackCtx, cancel := context.WithTimeout(context.Background(), fallbackTimeout)
		defer cancel()

		if err := s.ProcessNotification(fallbackCtx, notificationID); err != nil {
			s.logger.Error("in-process dispatch processing failed",
				zap.String("notificationId", notificationID),
				zap.Error(err),
			)
		}
	}()
}

// Start consumes the work queue until context cancellation.
func (s *DispatchService) Start(ctx context.Context) error {
	if s.consumer == nil {
		return fmt.Errorf("consumer is required to start workers")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("dispatch worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, queue.WorkQueue, func(ctx context.Context, msg queue.ProcessingMessage) error {
				return s.ProcessNotification(ctx, msg.NotificationID)
			})
			if err != nil {
				s.logger.Error("dispatch worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("dispatch worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// ProcessNotification drains the queued dispatch rows of one notification.
// The Redis claim guarantees at most one worker processes a notification at
// a time; losing the claim is a silent skip, not an error.
func (s *DispatchService) ProcessNotification(ctx context.Context, notificationID string) error {
	acquired, err := s.claims.Acquire(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to acquire processing claim: %w", err)
	}
	if !acquired {
		s.logger.Debug("notification already claimed, skipping",
			zap.String("notificationId", notificationID),
		)
		return nil
	}
	defer func() {
		if err := s.claims.Release(context.WithoutCancel(ctx), notificationID); err != nil {
			s.logger.Warn("failed to release processing claim",
				zap.String("notificationId", notificationID),
				zap.Error(err),
			)
		}
	}()

	dispatches, err := s.notifications.QueuedDispatches(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to load queued dispatches: %w", err)
	}
	if len(dispatches) == 0 {
		return nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	providers := newProviderCache(s, settings)

	// Sibling isolation: one failed dispatch must not abort the rest.
	g, groupCtx := errgroup.WithContext(ctx)
	for i := range dispatches {
		dispatch := dispatches[i]
		g.Go(func() error {
			s.processDispatch(groupCtx, providers, dispatch)
			return nil
		})
	}

	return g.Wait()
}

func (s *DispatchService) processDispatch(ctx context.Context, providers *providerCache, dispatch domain.NotificationDispatch) {
	channel := dispatch.Channel.String()
	if s.metrics != nil {
		s.metrics.IncDispatchInFlight(channel)
		defer s.metrics.DecDispatchInFlight(channel)
	}

	send, providerName, err := providers.senderFor(ctx, dispatch)
	if err != nil {
		// No provider is a permanent failure.
		s.markFailed(ctx, dispatch, err, "not_configured")
		return
	}

	attempts := dispatch.Attempts
	start := s.now()

	opts := s.retry
	opts.ShouldRetry = func(err error) bool {
		return provider.IsTransient(err) && attempts < domain.MaxDispatchAttempts
	}

	sendErr := retry.Do(ctx, opts, func(ctx context.Context) error {
		// The attempt is consumed before the send so a crash mid-send
		// still counts against the cap.
		n, err := s.notifications.IncrementAttempts(ctx, dispatch.ID)
		if err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}
		attempts = n

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		return send(sendCtx)
	})

	if s.metrics != nil {
		s.metrics.ObserveDispatchSendDuration(channel, s.now().Sub(start))
	}

	if sendErr == nil {
		if err := s.notifications.MarkDispatchSent(ctx, dispatch.ID, providerName); err != nil {
			s.logger.Error("failed to mark dispatch sent",
				zap.String("dispatchId", dispatch.ID),
				zap.Error(err),
			)
			return
		}
		if s.metrics != nil {
			s.metrics.IncDispatchSent(channel, providerName)
		}
		s.logger.Info("dispatch sent",
			zap.String("dispatchId", dispatch.ID),
			zap.String("channel", channel),
			zap.String("provider", providerName),
			zap.Int("attempts", attempts),
		)
		return
	}

	if provider.IsTransient(sendErr) && attempts < domain.MaxDispatchAttempts {
		if err := s.notifications.RequeueDispatch(ctx, dispatch.ID, sendErr.Error()); err != nil {
			s.logger.Error("failed to requeue dispatch",
				zap.String("dispatchId", dispatch.ID),
				zap.Error(err),
			)
			return
		}
		if s.metrics != nil {
			s.metrics.IncDispatchRequeued(channel)
		}
		s.logger.Warn("dispatch requeued after transient failure",
			zap.String("dispatchId", dispatch.ID),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		return
	}

	reason := "permanent_error"
	if provider.IsTransient(sendErr) {
		reason = "retry_exhausted"
	}
	s.markFailed(ctx, dispatch, sendErr, reason)
}

func (s *DispatchService) markFailed(ctx context.Context, dispatch domain.NotificationDispatch, cause error, reason string) {
	if err := s.notifications.MarkDispatchFailed(ctx, dispatch.ID, cause.Error()); err != nil {
		s.logger.Error("failed to mark dispatch failed",
			zap.String("dispatchId", dispatch.ID),
			zap.Error(err),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.IncDispatchFailed(dispatch.Channel.String(), reason)
	}
	s.logger.Warn("dispatch failed",
		zap.String("dispatchId", dispatch.ID),
		zap.String("channel", dispatch.Channel.String()),
		zap.String("reason", reason),
		zap.Error(cause),
	)
}

// providerCache resolves each channel's provider at most once per
// processing run. Safe for the concurrent dispatch goroutines.
type providerCache struct {
	svc      *DispatchService
	settings domain.Settings

	mu sync.Mutex

	email    provider.EmailProvider
	emailErr error
	emailSet bool

	sms    provider.SMSProvider
	smsErr error
	smsSet bool
}

func newProviderCache(svc *DispatchService, settings domain.Settings) *providerCache {
	return &providerCache{svc: svc, settings: settings}
}

func (c *providerCache) senderFor(ctx context.Context, dispatch domain.NotificationDispatch) (func(context.Context) error, string, error) {
	switch dispatch.Channel {
	case domain.ChannelEmail:
		c.mu.Lock()
		if !c.emailSet {
			c.email, c.emailErr = c.svc.resolveEmail(ctx, c.settings, c.svc.env)
			c.emailSet = true
		}
		p, resolveErr := c.email, c.emailErr
		c.mu.Unlock()
		if resolveErr != nil {
			return nil, "", resolveErr
		}

		payload := provider.EmailPayload{
			To:   dispatch.Recipient,
			Text: dispatch.Body,
		}
		if dispatch.Subject != nil {
			payload.Subject = *dispatch.Subject
		}

		return func(ctx context.Context) error {
			_, err := p.SendEmail(ctx, payload)
			return err
		}, p.Name(), nil

	case domain.ChannelSMS:
		c.mu.Lock()
		if !c.smsSet {
			c.sms, c.smsErr = c.svc.resolveSMS(ctx, c.settings, c.svc.env)
			c.smsSet = true
		}
		p, resolveErr := c.sms, c.smsErr
		c.mu.Unlock()
		if resolveErr != nil {
			return nil, "", resolveErr
		}

		return func(ctx context.Context) error {
			_, err := p.SendSMS(ctx, provider.SMSPayload{To: dispatch.Recipient, Message: dispatch.Body})
			return err
		}, p.Name(), nil
	}

	return nil, "", fmt.Errorf("%w: unsupported channel %q", domain.ErrValidation, dispatch.Channel)
}
