package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/visitflow/visitflow/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.UserModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.UserModel{})
			},
		},
		{
			ID: "000002_create_requests_and_guests",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.RequestModel{}, &repository.GuestModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_requests_status_created ON requests (status, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_requests_gate ON requests (gate)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.GuestModel{}, &repository.RequestModel{})
			},
		},
		{
			ID: "000003_create_notifications",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications (user_id, read)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NotificationModel{})
			},
		},
		{
			ID: "000004_create_notification_dispatches",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DispatchModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_dispatches_queued ON notification_dispatches (notification_id) WHERE status = 'queued'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DispatchModel{})
			},
		},
		{
			ID: "000005_create_blacklist_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.BlacklistModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BlacklistModel{})
			},
		},
		{
			ID: "000006_create_settings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.SettingsModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.SettingsModel{})
			},
		},
	})

	return m.Migrate()
}
