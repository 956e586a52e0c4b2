// Package mocks holds in-memory implementations of the read model storage.
// They back the service when database.type is mock and are used in tests.
package mocks

import (
	"context"
	"sync"

	"postquery/domain/post"
)

type lockKey struct{}

// Store is the shared in-memory state behind the mock repositories.
// A unit of work holds the write lock for its whole duration; repositories
// called with its context do not lock again.
type Store struct {
	mu       sync.RWMutex
	posts    map[string]*post.Post
	comments map[string]*post.Comment
	// tombstones keep deleted ids taken, as the soft-deleted rows do in SQL
	tombstones map[string]bool
	versions   map[string]int64
}

func NewStore() *Store {
	return &Store{
		posts:      make(map[string]*post.Post),
		comments:   make(map[string]*post.Comment),
		tombstones: make(map[string]bool),
		versions:   make(map[string]int64),
	}
}

func (s *Store) holds(ctx context.Context) bool {
	owner, _ := ctx.Value(lockKey{}).(*Store)
	return owner == s
}

func (s *Store) read(ctx context.Context, fn func()) {
	if !s.holds(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn()
}

func (s *Store) write(ctx context.Context, fn func()) {
	if !s.holds(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

type snapshot struct {
	posts      map[string]post.Post
	comments   map[string]post.Comment
	tombstones map[string]bool
	versions   map[string]int64
}

// snapshot must be called with the write lock held.
func (s *Store) snapshot() snapshot {
	snap := snapshot{
		posts:      make(map[string]post.Post, len(s.posts)),
		comments:   make(map[string]post.Comment, len(s.comments)),
		tombstones: make(map[string]bool, len(s.tombstones)),
		versions:   make(map[string]int64, len(s.versions)),
	}
	for id, p := range s.posts {
		snap.posts[id] = *p
	}
	for id, c := range s.comments {
		snap.comments[id] = *c
	}
	for id := range s.tombstones {
		snap.tombstones[id] = true
	}
	for id, v := range s.versions {
		snap.versions[id] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.posts = make(map[string]*post.Post, len(snap.posts))
	for id, p := range snap.posts {
		p := p
		s.posts[id] = &p
	}
	s.comments = make(map[string]*post.Comment, len(snap.comments))
	for id, c := range snap.comments {
		c := c
		s.comments[id] = &c
	}
	s.tombstones = snap.tombstones
	s.versions = snap.versions
}

// withComments returns a copy of p carrying copies of its comments.
func (s *Store) withComments(p *post.Post) *post.Post {
	out := *p
	out.Comments = make([]*post.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == p.ID {
			cc := *c
			out.Comments = append(out.Comments, &cc)
		}
	}
	post.SortComments(out.Comments)
	return &out
}
