package repository

import (
	"context"
	"errors"
	"time"

	"github.com/visitflow/visitflow/internal/domain"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	CreateBundle(ctx context.Context, bundle *domain.NotificationBundle) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	ReminderSentSince(ctx context.Context, requestID string, since time.Time) (bool, error)

	QueuedDispatches(ctx context.Context, notificationID string) ([]domain.NotificationDispatch, error)
	IncrementAttempts(ctx context.Context, dispatchID string) (int, error)
	MarkDispatchSent(ctx context.Context, dispatchID string, provider string) error
	MarkDispatchFailed(ctx context.Context, dispatchID string, lastError string) error
	RequeueDispatch(ctx context.Context, dispatchID string, lastError string) error
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

// CreateBundle inserts the notification and its outbox rows in one
// transaction, so a notification never exists without its dispatches.
func (r *GormNotificationRepo) CreateBundle(ctx context.Context, bundle *domain.NotificationBundle) error {
	if bundle == nil {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createBundle(tx, bundle)
	})
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var models []NotificationModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications, nil
}

func (r *GormNotificationRepo) MarkRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
}

// ReminderSentSince reports whether a stage-1 reminder for the request was
// already created after the given instant.
func (r *GormNotificationRepo) ReminderSentSince(ctx context.Context, requestID string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("request_id = ?", requestID).
		Where("type = ?", domain.NotificationStage1PendingReminder).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormNotificationRepo) QueuedDispatches(ctx context.Context, notificationID string) ([]domain.NotificationDispatch, error) {
	var models []DispatchModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Where("status = ?", string(domain.DispatchQueued)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	dispatches := make([]domain.NotificationDispatch, 0, len(models))
	for i := range models {
		dispatches = append(dispatches, *dispatchModelToDomain(&models[i]))
	}
	return dispatches, nil
}

// IncrementAttempts bumps the attempt counter before the send so a crash
// mid-send still counts the attempt. Returns the new count.
func (r *GormNotificationRepo) IncrementAttempts(ctx context.Context, dispatchID string) (int, error) {
	var attempts int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&DispatchModel{}).
			Where("id = ?", dispatchID).
			Update("attempts", gorm.Expr("attempts + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		var model DispatchModel
		if err := tx.Select("attempts").First(&model, "id = ?", dispatchID).Error; err != nil {
			return err
		}
		attempts = model.Attempts
		return nil
	})
	if err != nil {
		return 0, err
	}

	return attempts, nil
}

func (r *GormNotificationRepo) MarkDispatchSent(ctx context.Context, dispatchID string, provider string) error {
	return r.updateDispatch(ctx, dispatchID, map[string]interface{}{
		"status":     string(domain.DispatchSent),
		"provider":   provider,
		"last_error": nil,
	})
}

func (r *GormNotificationRepo) MarkDispatchFailed(ctx context.Context, dispatchID string, lastError string) error {
	return r.updateDispatch(ctx, dispatchID, map[string]interface{}{
		"status":     string(domain.DispatchFailed),
		"last_error": lastError,
	})
}

func (r *GormNotificationRepo) RequeueDispatch(ctx context.Context, dispatchID string, lastError string) error {
	return r.updateDispatch(ctx, dispatchID, map[string]interface{}{
		"status":     string(domain.DispatchQueued),
		"last_error": lastError,
	})
}

func (r *GormNotificationRepo) updateDispatch(ctx context.Context, dispatchID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&DispatchModel{}).
		Where("id = ?", dispatchID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
