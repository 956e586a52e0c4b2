package mocks

import (
	"context"
	"sort"

	"postquery/domain/post"
)

// MockPostRepository in-memory implementation of post.Repository
type MockPostRepository struct {
	store *Store
}

func NewMockPostRepository(store *Store) *MockPostRepository {
	return &MockPostRepository{store: store}
}

func (r *MockPostRepository) filter(ctx context.Context, keep func(*post.Post) bool) []*post.Post {
	result := make([]*post.Post, 0)
	r.store.read(ctx, func() {
		for _, p := range r.store.posts {
			full := r.store.withComments(p)
			if keep(full) {
				result = append(result, full)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].DateCreated.Equal(result[j].DateCreated) {
			return result[i].ID < result[j].ID
		}
		return result[i].DateCreated.Before(result[j].DateCreated)
	})
	return result
}

func (r *MockPostRepository) ListAll(ctx context.Context) ([]*post.Post, error) {
	return r.filter(ctx, func(*post.Post) bool { return true }), nil
}

func (r *MockPostRepository) GetByID(ctx context.Context, id string) (*post.Post, error) {
	var found *post.Post
	r.store.read(ctx, func() {
		if p, ok := r.store.posts[id]; ok {
			found = r.store.withComments(p)
		}
	})
	if found == nil {
		return nil, post.ErrPostNotFound
	}
	return found, nil
}

func (r *MockPostRepository) ListByAuthor(ctx context.Context, author string) ([]*post.Post, error) {
	return r.filter(ctx, func(p *post.Post) bool { return p.Author == author }), nil
}

func (r *MockPostRepository) ListWithComments(ctx context.Context) ([]*post.Post, error) {
	return r.filter(ctx, (*post.Post).HasComments), nil
}

func (r *MockPostRepository) ListWithLikesAtLeast(ctx context.Context, threshold int) ([]*post.Post, error) {
	return r.filter(ctx, func(p *post.Post) bool { return p.Likes >= threshold }), nil
}

func (r *MockPostRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	r.store.read(ctx, func() {
		_, ok = r.store.posts[id]
	})
	return ok, nil
}

func (r *MockPostRepository) Insert(ctx context.Context, p *post.Post) (bool, error) {
	var inserted bool
	r.store.write(ctx, func() {
		if _, ok := r.store.posts[p.ID]; ok || r.store.tombstones[p.ID] {
			return
		}
		stored := *p
		stored.Comments = nil
		r.store.posts[p.ID] = &stored
		inserted = true
	})
	return inserted, nil
}

func (r *MockPostRepository) Update(ctx context.Context, id string, changes post.Changes) error {
	var err error
	r.store.write(ctx, func() {
		p, ok := r.store.posts[id]
		if !ok {
			err = post.ErrPostNotFound
			return
		}
		changes.Apply(p)
	})
	return err
}

func (r *MockPostRepository) IncrementLikes(ctx context.Context, id string) (bool, error) {
	var found bool
	r.store.write(ctx, func() {
		if p, ok := r.store.posts[id]; ok {
			p.Likes++
			found = true
		}
	})
	return found, nil
}

func (r *MockPostRepository) Delete(ctx context.Context, id string) error {
	r.store.write(ctx, func() {
		if _, ok := r.store.posts[id]; !ok {
			return
		}
		for cid, c := range r.store.comments {
			if c.PostID == id {
				delete(r.store.comments, cid)
				r.store.tombstones[cid] = true
			}
		}
		delete(r.store.posts, id)
		r.store.tombstones[id] = true
	})
	return nil
}

var _ post.Repository = (*MockPostRepository)(nil)
