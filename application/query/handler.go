package query

import (
	"context"
	"time"

	"postquery/domain/post"
	"postquery/infrastructure/persistence/retry"
	"postquery/pkg/logger"

	"go.uber.org/zap"
)

// Handler answers each query variant from the read repository. It never
// writes. Empty results are empty slices, never errors.
type Handler struct {
	repo        post.Repository
	retryConfig retry.Config
}

func NewHandler(repo post.Repository) *Handler {
	return &Handler{
		repo:        repo,
		retryConfig: retry.DefaultConfig,
	}
}

// SetRetryConfig updates the retry configuration for repository reads
func (h *Handler) SetRetryConfig(config retry.Config) {
	h.retryConfig = config
}

// RegisterWith binds every variant on d.
func (h *Handler) RegisterWith(d *Dispatcher) error {
	if err := Register(d, h.FindAll); err != nil {
		return err
	}
	if err := Register(d, h.FindByID); err != nil {
		return err
	}
	if err := Register(d, h.FindByAuthor); err != nil {
		return err
	}
	if err := Register(d, h.FindWithComments); err != nil {
		return err
	}
	return Register(d, h.FindWithLikes)
}

func (h *Handler) FindAll(ctx context.Context, _ FindAll) ([]*post.Post, error) {
	return h.read(ctx, KindFindAll, h.repo.ListAll)
}

func (h *Handler) FindByID(ctx context.Context, q FindByID) ([]*post.Post, error) {
	return h.read(ctx, KindFindByID, func(ctx context.Context) ([]*post.Post, error) {
		p, err := h.repo.GetByID(ctx, q.ID)
		if post.IsNotFound(err) {
			return []*post.Post{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []*post.Post{p}, nil
	})
}

func (h *Handler) FindByAuthor(ctx context.Context, q FindByAuthor) ([]*post.Post, error) {
	return h.read(ctx, KindFindByAuthor, func(ctx context.Context) ([]*post.Post, error) {
		return h.repo.ListByAuthor(ctx, q.Author)
	})
}

func (h *Handler) FindWithComments(ctx context.Context, _ FindWithComments) ([]*post.Post, error) {
	return h.read(ctx, KindFindWithComments, h.repo.ListWithComments)
}

// FindWithLikes treats a negative threshold as 0.
func (h *Handler) FindWithLikes(ctx context.Context, q FindWithLikes) ([]*post.Post, error) {
	threshold := q.Threshold
	if threshold < 0 {
		threshold = 0
	}
	return h.read(ctx, KindFindWithLikes, func(ctx context.Context) ([]*post.Post, error) {
		return h.repo.ListWithLikesAtLeast(ctx, threshold)
	})
}

func (h *Handler) read(ctx context.Context, kind Kind, fn func(ctx context.Context) ([]*post.Post, error)) ([]*post.Post, error) {
	start := time.Now()
	var posts []*post.Post

	err := retry.ExecuteWithRetry(ctx, h.retryConfig, func(ctx context.Context) error {
		var err error
		posts, err = fn(ctx)
		return err
	})
	if err != nil {
		logger.Warn("Read model query failed",
			zap.Stringer("query", kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	if posts == nil {
		posts = []*post.Post{}
	}

	logger.Debug("Read model query served",
		zap.Stringer("query", kind),
		zap.Int("count", len(posts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return posts, nil
}
