package rdb

import (
	"context"
	"errors"

	"postquery/infrastructure/persistence"
	"postquery/infrastructure/persistence/rdb/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VersionRepository stores the last applied event version per aggregate.
type VersionRepository struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// LastVersion returns 0 for an aggregate never seen.
func (r *VersionRepository) LastVersion(ctx context.Context, aggregateID string) (int64, error) {
	var versionPO po.ProjectionVersionPO
	err := r.getDB(ctx).First(&versionPO, "aggregate_id = ?", aggregateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return versionPO.Version, nil
}

func (r *VersionRepository) SaveVersion(ctx context.Context, aggregateID string, version int64) error {
	return r.getDB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "aggregate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "updated_at"}),
		}).
		Create(&po.ProjectionVersionPO{AggregateID: aggregateID, Version: version}).Error
}
