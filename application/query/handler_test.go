package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"postquery/domain/post"
	"postquery/infrastructure/persistence/mocks"
	"postquery/infrastructure/persistence/retry"
)

func seededRepository(t *testing.T) post.Repository {
	t.Helper()
	ctx := context.Background()
	store := mocks.NewStore()
	posts := mocks.NewMockPostRepository(store)
	comments := mocks.NewMockCommentRepository(store)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []struct {
		id, author string
		likes      int
	}{
		{"p1", "alice", 0},
		{"p2", "bob", 3},
		{"p3", "Alice", 5},
	}
	for i, s := range seed {
		posts.Insert(ctx, &post.Post{ID: s.id, Author: s.author, DateCreated: base.Add(time.Duration(i) * time.Minute)})
		for j := 0; j < s.likes; j++ {
			posts.IncrementLikes(ctx, s.id)
		}
	}
	comments.Add(ctx, &post.Comment{ID: "c1", PostID: "p2", Author: "alice", Text: "nice", DateCreated: base})
	return posts
}

func ids(posts []*post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestHandlerThroughDispatcher(t *testing.T) {
	h := NewHandler(seededRepository(t))
	d := NewDispatcher()
	if err := h.RegisterWith(d); err != nil {
		t.Fatalf("RegisterWith() error = %v", err)
	}
	d.Seal()

	testCases := []struct {
		name  string
		query Query
		want  []string
	}{
		{"find all", FindAll{}, []string{"p1", "p2", "p3"}},
		{"find by id", FindByID{ID: "p2"}, []string{"p2"}},
		{"find by id absent", FindByID{ID: "nope"}, []string{}},
		{"find by author exact", FindByAuthor{Author: "alice"}, []string{"p1"}},
		{"find by author case sensitive", FindByAuthor{Author: "ALICE"}, []string{}},
		{"find with comments", FindWithComments{}, []string{"p2"}},
		{"likes at least 3", FindWithLikes{Threshold: 3}, []string{"p2", "p3"}},
		{"likes at least 6", FindWithLikes{Threshold: 6}, []string{}},
		{"negative threshold is zero", FindWithLikes{Threshold: -4}, []string{"p1", "p2", "p3"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Dispatch(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if got == nil {
				t.Fatal("Dispatch() returned nil slice")
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tc.want) {
				t.Fatalf("ids = %v, want %v", gotIDs, tc.want)
			}
			for i := range gotIDs {
				if gotIDs[i] != tc.want[i] {
					t.Fatalf("ids = %v, want %v", gotIDs, tc.want)
				}
			}
		})
	}

	t.Run("comments loaded eagerly", func(t *testing.T) {
		got, _ := d.Dispatch(context.Background(), FindByID{ID: "p2"})
		if len(got[0].Comments) != 1 || got[0].Comments[0].Text != "nice" {
			t.Errorf("comments = %+v", got[0].Comments)
		}
	})
}

func TestHandlerRegisterWithTwiceFails(t *testing.T) {
	h := NewHandler(seededRepository(t))
	d := NewDispatcher()
	if err := h.RegisterWith(d); err != nil {
		t.Fatalf("RegisterWith() error = %v", err)
	}
	if err := h.RegisterWith(d); !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("second RegisterWith() error = %v", err)
	}
}

// flakyRepository fails ListAll a fixed number of times.
type flakyRepository struct {
	post.Repository
	failures int
	calls    int
	err      error
}

func (r *flakyRepository) ListAll(ctx context.Context) ([]*post.Post, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, r.err
	}
	return r.Repository.ListAll(ctx)
}

func TestHandlerRetriesTransientErrors(t *testing.T) {
	transient := errors.New("driver: bad connection")
	cfg := retry.Config{
		Enabled:        true,
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		BackoffFactor:  1,
		RetryPredicate: func(err error) bool { return errors.Is(err, transient) },
	}

	testCases := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls int
	}{
		{"recovers", 2, false, 3},
		{"budget exhausted", 5, true, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &flakyRepository{Repository: seededRepository(t), failures: tc.failures, err: transient}
			h := NewHandler(repo)
			h.SetRetryConfig(cfg)

			posts, err := h.FindAll(context.Background(), FindAll{})
			if (err != nil) != tc.wantErr {
				t.Fatalf("FindAll() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && len(posts) != 3 {
				t.Errorf("len = %d, want 3", len(posts))
			}
			if repo.calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", repo.calls, tc.wantCalls)
			}
		})
	}
}
