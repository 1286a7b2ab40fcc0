package repository

import (
	"context"
	"errors"

	"github.com/visitflow/visitflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, settings domain.Settings) error
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

// Get returns the singleton settings row, or the seeded defaults when the
// row does not exist yet.
func (r *GormSettingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	var model SettingsModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	return settingsModelToDomain(&model), nil
}

func (r *GormSettingsRepo) Update(ctx context.Context, settings domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	model := settingsModelFromDomain(settings)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}
