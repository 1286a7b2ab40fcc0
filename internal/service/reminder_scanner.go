package service

import (
	"context"
	"fmt"
	"time"

	"github.com/visitflow/visitflow/internal/repository"
	"go.uber.org/zap"
)

const defaultReminderScanInterval = time.Hour

// ReminderScanner periodically nudges approvers about requests that have sat
// in stage 1 for too long.
type ReminderScanner struct {
	events   *EventService
	settings repository.SettingsRepository
	logger   *zap.Logger
	interval time.Duration
}

func NewReminderScanner(
	events *EventService,
	settings repository.SettingsRepository,
	interval time.Duration,
	logger *zap.Logger,
) (*ReminderScanner, error) {
	if events == nil {
		return nil, fmt.Errorf("event service is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if interval <= 0 {
		interval = defaultReminderScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderScanner{
		events:   events,
		settings: settings,
		logger:   logger,
		interval: interval,
	}, nil
}

func (s *ReminderScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so overdue requests do not wait for the first
	// ticker edge.
	if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("reminder scanner initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("reminder scanner sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *ReminderScanner) sweep(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	emitted, err := s.events.SweepPendingReminders(ctx, settings)
	if err != nil {
		return err
	}
	if emitted > 0 {
		s.logger.Info("pending reminders emitted", zap.Int("count", emitted))
	}
	return nil
}
