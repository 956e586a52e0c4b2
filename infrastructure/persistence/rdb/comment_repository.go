package rdb

import (
	"context"

	"postquery/domain/post"
	"postquery/infrastructure/persistence"
	"postquery/infrastructure/persistence/rdb/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository GORM implementation of post.CommentRepository
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *CommentRepository) Add(ctx context.Context, c *post.Comment) (bool, error) {
	result := r.getDB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(po.FromCommentDomain(c))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *CommentRepository) Edit(ctx context.Context, postID, id, author, text string) (bool, error) {
	db := r.getDB(ctx)

	// RowsAffected is unreliable for no-op updates on MySQL, so check first.
	var count int64
	if err := db.Model(&po.CommentPO{}).Where("id = ? AND post_id = ?", id, postID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}

	err := db.Model(&po.CommentPO{}).Where("id = ? AND post_id = ?", id, postID).Updates(map[string]interface{}{
		"author": author,
		"text":   text,
		"edited": true,
	}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *CommentRepository) Remove(ctx context.Context, postID, id string) error {
	return r.getDB(ctx).Where("id = ? AND post_id = ?", id, postID).Delete(&po.CommentPO{}).Error
}

var _ post.CommentRepository = (*CommentRepository)(nil)
