package rdb

import (
	"postquery/infrastructure/persistence/rdb/po"

	"gorm.io/gorm"
)

// AutoMigrate creates the read model tables. It is a development bootstrap,
// production schemas are managed outside this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&po.PostPO{},
		&po.CommentPO{},
		&po.ProjectionVersionPO{},
		&po.EventLogPO{},
		&po.SubscriptionPositionPO{},
	)
}
