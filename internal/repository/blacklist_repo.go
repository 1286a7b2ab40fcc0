package repository

import (
	"context"
	"errors"

	"github.com/visitflow/visitflow/internal/domain"
	"gorm.io/gorm"
)

type BlacklistRepository interface {
	ActiveEntries(ctx context.Context) ([]domain.BlacklistEntry, error)
	Upsert(ctx context.Context, entry *domain.BlacklistEntry) error
}

type GormBlacklistRepo struct {
	db *gorm.DB
}

func NewGormBlacklistRepo(db *gorm.DB) *GormBlacklistRepo {
	return &GormBlacklistRepo{db: db}
}

func (r *GormBlacklistRepo) ActiveEntries(ctx context.Context) ([]domain.BlacklistEntry, error) {
	var models []BlacklistModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.BlacklistEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *blacklistModelToDomain(&models[i]))
	}
	return entries, nil
}

// Upsert creates the entry unless an active one with the same name and
// email already exists; an inactive duplicate is reactivated.
func (r *GormBlacklistRepo) Upsert(ctx context.Context, entry *domain.BlacklistEntry) error {
	if entry == nil {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing BlacklistModel
		err := tx.
			Where("LOWER(name) = LOWER(?)", entry.Name).
			Where("LOWER(email) = LOWER(?)", entry.Email).
			First(&existing).Error
		if err == nil {
			if existing.Active {
				*entry = *blacklistModelToDomain(&existing)
				return nil
			}
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"active": true,
				"reason": entry.Reason,
			}).Error; err != nil {
				return err
			}
			existing.Active = true
			existing.Reason = entry.Reason
			*entry = *blacklistModelToDomain(&existing)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		model := blacklistModelFromDomain(entry)
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		*entry = *blacklistModelToDomain(model)
		return nil
	})
}
