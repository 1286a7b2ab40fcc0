package repository

import (
	"context"
	"errors"
	"time"

	"github.com/visitflow/visitflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListRequestParams struct {
	Status      *domain.Status
	Gate        string
	RequesterID string
	Page        int
	PageSize    int
}

// MutateFunc computes the next request state in place and returns the
// notification bundles to persist alongside it.
type MutateFunc func(req *domain.Request) ([]domain.NotificationBundle, error)

type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	List(ctx context.Context, params ListRequestParams) ([]domain.Request, int64, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Request, error)
	StalePendingStage1(ctx context.Context, olderThan time.Time, limit int) ([]domain.Request, error)
}

type GormRequestRepo struct {
	db *gorm.DB
}

func NewGormRequestRepo(db *gorm.DB) *GormRequestRepo {
	return &GormRequestRepo{db: db}
}

func (r *GormRequestRepo) Create(ctx context.Context, req *domain.Request) error {
	model := requestModelFromDomain(req)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if req != nil {
		*req = *requestModelToDomain(model)
	}
	return nil
}

func (r *GormRequestRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	var model RequestModel
	err := r.db.WithContext(ctx).Preload("Guests").First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return requestModelToDomain(&model), nil
}

func (r *GormRequestRepo) List(ctx context.Context, params ListRequestParams) ([]domain.Request, int64, error) {
	query := r.db.WithContext(ctx).Model(&RequestModel{})

	if params.Status != nil {
		query = query.Where("status = ?", statusToModel(*params.Status))
	}
	if params.Gate != "" {
		query = query.Where("gate = ?", params.Gate)
	}
	if params.RequesterID != "" {
		query = query.Where("requester_id = ?", params.RequesterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	var models []RequestModel
	err := query.
		Preload("Guests").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	requests := make([]domain.Request, 0, len(models))
	for i := range models {
		requests = append(requests, *requestModelToDomain(&models[i]))
	}
	return requests, total, nil
}

// Mutate loads the request with a row lock, applies fn, and persists the
// updated request, its guests, and any notification bundles in one
// transaction. The lock serializes concurrent stage actions on one request.
func (r *GormRequestRepo) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Request, error) {
	var updated *domain.Request

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model RequestModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Where("request_id = ?", id).Order("id").Find(&model.Guests).Error; err != nil {
			return err
		}

		req := requestModelToDomain(&model)
		bundles, err := fn(req)
		if err != nil {
			return err
		}

		next := requestModelFromDomain(req)
		if err := tx.Omit("Guests").Save(next).Error; err != nil {
			return err
		}
		for i := range next.Guests {
			if err := tx.Save(&next.Guests[i]).Error; err != nil {
				return err
			}
		}

		for i := range bundles {
			if err := createBundle(tx, &bundles[i]); err != nil {
				return err
			}
		}

		updated = requestModelToDomain(next)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *GormRequestRepo) StalePendingStage1(ctx context.Context, olderThan time.Time, limit int) ([]domain.Request, error) {
	if limit < 1 {
		limit = 200
	}

	stage1Statuses := []string{
		statusToModel(domain.StatusSubmitted),
		statusToModel(domain.StatusStage1Pending),
	}

	var models []RequestModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", stage1Statuses).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	requests := make([]domain.Request, 0, len(models))
	for i := range models {
		requests = append(requests, *requestModelToDomain(&models[i]))
	}
	return requests, nil
}

func createBundle(tx *gorm.DB, bundle *domain.NotificationBundle) error {
	notifModel := notificationModelFromDomain(&bundle.Notification)
	if err := tx.Create(notifModel).Error; err != nil {
		return err
	}

	for i := range bundle.Dispatches {
		dispatchModel := dispatchModelFromDomain(&bundle.Dispatches[i])
		if err := tx.Create(dispatchModel).Error; err != nil {
			return err
		}
	}

	return nil
}
