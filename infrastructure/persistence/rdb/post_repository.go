package rdb

import (
	"context"
	"errors"

	"postquery/domain/post"
	"postquery/infrastructure/persistence"
	"postquery/infrastructure/persistence/rdb/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository GORM implementation of post.Repository.
// Comments are loaded with explicit queries; associations are not used.
type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// getDB returns the transaction from context if available, otherwise the default db
func (r *PostRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *PostRepository) ListAll(ctx context.Context) ([]*post.Post, error) {
	return r.list(ctx, r.getDB(ctx))
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*post.Post, error) {
	db := r.getDB(ctx)
	var postPO po.PostPO
	if err := db.First(&postPO, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, post.ErrPostNotFound
		}
		return nil, err
	}

	var commentPOs []po.CommentPO
	if err := db.Where("post_id = ?", id).Find(&commentPOs).Error; err != nil {
		return nil, err
	}
	return postPO.ToDomain(commentPOs), nil
}

// ListByAuthor narrows in SQL and then compares exactly, since MySQL
// collations fold case.
func (r *PostRepository) ListByAuthor(ctx context.Context, author string) ([]*post.Post, error) {
	posts, err := r.list(ctx, r.getDB(ctx).Where("author = ?", author))
	if err != nil {
		return nil, err
	}
	exact := posts[:0]
	for _, p := range posts {
		if p.Author == author {
			exact = append(exact, p)
		}
	}
	return exact, nil
}

func (r *PostRepository) ListWithComments(ctx context.Context) ([]*post.Post, error) {
	db := r.getDB(ctx).Where(
		"EXISTS (SELECT 1 FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL)",
	)
	return r.list(ctx, db)
}

func (r *PostRepository) ListWithLikesAtLeast(ctx context.Context, threshold int) ([]*post.Post, error) {
	return r.list(ctx, r.getDB(ctx).Where("likes >= ?", threshold))
}

// list runs the post query in db, then loads comments for the page in one
// batched query.
func (r *PostRepository) list(ctx context.Context, db *gorm.DB) ([]*post.Post, error) {
	var postPOs []po.PostPO
	if err := db.Order("date_created ASC").Order("id ASC").Find(&postPOs).Error; err != nil {
		return nil, err
	}
	if len(postPOs) == 0 {
		return []*post.Post{}, nil
	}

	ids := make([]string, len(postPOs))
	for i := range postPOs {
		ids[i] = postPOs[i].ID
	}
	var commentPOs []po.CommentPO
	if err := r.getDB(ctx).Where("post_id IN ?", ids).Find(&commentPOs).Error; err != nil {
		return nil, err
	}
	byPost := make(map[string][]po.CommentPO, len(postPOs))
	for _, c := range commentPOs {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}

	posts := make([]*post.Post, len(postPOs))
	for i := range postPOs {
		posts[i] = postPOs[i].ToDomain(byPost[postPOs[i].ID])
	}
	return posts, nil
}

func (r *PostRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.getDB(ctx).Model(&po.PostPO{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert ignores a conflicting id, including one held by a deleted post.
func (r *PostRepository) Insert(ctx context.Context, p *post.Post) (bool, error) {
	result := r.getDB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(po.FromPostDomain(p))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PostRepository) Update(ctx context.Context, id string, changes post.Changes) error {
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return post.ErrPostNotFound
	}
	if changes.IsEmpty() {
		return nil
	}

	updates := make(map[string]interface{}, 3)
	if changes.Author != nil {
		updates["author"] = *changes.Author
	}
	if changes.Title != nil {
		updates["title"] = *changes.Title
	}
	if changes.Description != nil {
		updates["description"] = *changes.Description
	}
	return r.getDB(ctx).Model(&po.PostPO{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PostRepository) IncrementLikes(ctx context.Context, id string) (bool, error) {
	result := r.getDB(ctx).
		Model(&po.PostPO{}).
		Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete soft-deletes the post and its comments. Outside a unit of work it
// opens its own transaction.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return r.deleteWithTx(tx, id)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.deleteWithTx(tx, id)
	})
}

func (r *PostRepository) deleteWithTx(tx *gorm.DB, id string) error {
	if err := tx.Where("post_id = ?", id).Delete(&po.CommentPO{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(&po.PostPO{}).Error
}

// Compile-time interface implementation check
var _ post.Repository = (*PostRepository)(nil)
