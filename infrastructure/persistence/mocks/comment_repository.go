package mocks

import (
	"context"

	"postquery/domain/post"
)

// MockCommentRepository in-memory implementation of post.CommentRepository
type MockCommentRepository struct {
	store *Store
}

func NewMockCommentRepository(store *Store) *MockCommentRepository {
	return &MockCommentRepository{store: store}
}

func (r *MockCommentRepository) Add(ctx context.Context, c *post.Comment) (bool, error) {
	var added bool
	r.store.write(ctx, func() {
		if _, ok := r.store.comments[c.ID]; ok || r.store.tombstones[c.ID] {
			return
		}
		stored := *c
		r.store.comments[c.ID] = &stored
		added = true
	})
	return added, nil
}

func (r *MockCommentRepository) Edit(ctx context.Context, postID, id, author, text string) (bool, error) {
	var found bool
	r.store.write(ctx, func() {
		c, ok := r.store.comments[id]
		if !ok || c.PostID != postID {
			return
		}
		c.Author = author
		c.Text = text
		c.Edited = true
		found = true
	})
	return found, nil
}

func (r *MockCommentRepository) Remove(ctx context.Context, postID, id string) error {
	r.store.write(ctx, func() {
		if c, ok := r.store.comments[id]; ok && c.PostID == postID {
			delete(r.store.comments, id)
			r.store.tombstones[id] = true
		}
	})
	return nil
}

var _ post.CommentRepository = (*MockCommentRepository)(nil)
