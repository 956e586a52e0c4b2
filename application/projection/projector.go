// Package projection applies the write side's events to the post read model.
package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postquery/domain/event"
	"postquery/domain/post"
	"postquery/domain/shared"
	"postquery/infrastructure/persistence"
	"postquery/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "postquery/application/projection"

// ErrMissingAggregate is returned for an event that needs a post the read
// model has not seen yet. It is retryable: the creating event may still be
// in flight.
var ErrMissingAggregate = errors.New("aggregate not projected yet")

// VersionStore tracks the last event version applied per aggregate.
type VersionStore interface {
	LastVersion(ctx context.Context, aggregateID string) (int64, error)
	SaveVersion(ctx context.Context, aggregateID string, version int64) error
}

// Outcome says what Apply did with an event.
type Outcome int

const (
	Applied Outcome = iota + 1
	// Duplicate events carry a version at or below the last applied one.
	Duplicate
	// Ignored events targeted an absent post and changed nothing.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Projector applies one event per unit of work: the version check, the row
// changes and the version record commit together.
type Projector struct {
	uow      shared.UnitOfWork
	posts    post.Repository
	comments post.CommentRepository
	versions VersionStore
	tracer   trace.Tracer
	now      func() time.Time
}

func NewProjector(
	uow shared.UnitOfWork,
	posts post.Repository,
	comments post.CommentRepository,
	versions VersionStore,
) (*Projector, error) {
	if uow == nil {
		return nil, errors.New("unit of work cannot be nil")
	}
	if posts == nil || comments == nil {
		return nil, errors.New("repositories cannot be nil")
	}
	if versions == nil {
		return nil, errors.New("version store cannot be nil")
	}
	return &Projector{
		uow:      uow,
		posts:    posts,
		comments: comments,
		versions: versions,
		tracer:   otel.Tracer(instrumentationName),
		now:      time.Now,
	}, nil
}

// Apply decodes env and projects it. Decoding errors are permanent
// (event.IsPermanent); ErrMissingAggregate and storage errors are not.
func (p *Projector) Apply(ctx context.Context, env event.Envelope) (Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "projection.apply",
		trace.WithAttributes(
			attribute.String("event.type", string(env.Type)),
			attribute.String("event.aggregate_id", env.AggregateID),
			attribute.Int64("event.version", env.Version),
		),
	)
	defer span.End()

	outcome, err := p.apply(ctx, env)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.String("projection.outcome", outcome.String()))
	span.SetStatus(codes.Ok, "")

	logger.WithEvent(env.AggregateID, env.Version, string(env.Type)).
		Debug("Event projected", zap.Stringer("outcome", outcome))
	return outcome, nil
}

func (p *Projector) apply(ctx context.Context, env event.Envelope) (Outcome, error) {
	e, err := env.Decode()
	if err != nil {
		return 0, err
	}

	ctx = persistence.ContextWithAggregateID(ctx, env.AggregateID)
	var outcome Outcome

	err = p.uow.Execute(ctx, func(ctx context.Context) error {
		last, err := p.versions.LastVersion(ctx, env.AggregateID)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if env.Version <= last {
			outcome = Duplicate
			return nil
		}

		outcome, err = p.project(ctx, env, e, last)
		if err != nil {
			return err
		}
		if outcome == Ignored {
			return nil
		}
		if err := p.versions.SaveVersion(ctx, env.AggregateID, env.Version); err != nil {
			return fmt.Errorf("save version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// project mutates rows for one decoded event. last is the aggregate's last
// applied version; last > 0 with no live post means the post was deleted.
func (p *Projector) project(ctx context.Context, env event.Envelope, e event.Event, last int64) (Outcome, error) {
	id := env.AggregateID

	switch ev := e.(type) {
	case *event.PostCreated:
		_, err := p.posts.Insert(ctx, &post.Post{
			ID:          id,
			Author:      ev.Author,
			Title:       ev.Title,
			Description: ev.Description,
			DateCreated: p.timestamp(ev.DatePosted, env.OccurredOn),
		})
		if err != nil {
			return 0, fmt.Errorf("insert post: %w", err)
		}
		return Applied, nil

	case *event.PostUpdated:
		err := p.posts.Update(ctx, id, post.Changes{
			Author:      ev.Author,
			Title:       ev.Title,
			Description: ev.Description,
		})
		if post.IsNotFound(err) {
			return p.absent(last)
		}
		if err != nil {
			return 0, fmt.Errorf("update post: %w", err)
		}
		return Applied, nil

	case *event.PostLiked:
		found, err := p.posts.IncrementLikes(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("like post: %w", err)
		}
		if !found {
			return Ignored, nil
		}
		return Applied, nil

	case *event.PostRemoved:
		// Recorded even when the post is absent: the version is the
		// tombstone that turns a late PostCreated into a Duplicate.
		if err := p.posts.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("delete post: %w", err)
		}
		return Applied, nil

	case *event.CommentAdded:
		exists, err := p.posts.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return p.absent(last)
		}
		_, err = p.comments.Add(ctx, &post.Comment{
			ID:          ev.CommentID,
			PostID:      id,
			Author:      ev.Username,
			Text:        ev.Comment,
			DateCreated: p.timestamp(ev.CommentDate, env.OccurredOn),
		})
		if err != nil {
			return 0, fmt.Errorf("add comment: %w", err)
		}
		return Applied, nil

	case *event.CommentUpdated:
		exists, err := p.posts.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return Ignored, nil
		}
		if _, err := p.comments.Edit(ctx, id, ev.CommentID, ev.Username, ev.Comment); err != nil {
			return 0, fmt.Errorf("edit comment: %w", err)
		}
		return Applied, nil

	case *event.CommentRemoved:
		exists, err := p.posts.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return Ignored, nil
		}
		if err := p.comments.Remove(ctx, id, ev.CommentID); err != nil {
			return 0, fmt.Errorf("remove comment: %w", err)
		}
		return Applied, nil

	default:
		return 0, fmt.Errorf("%w: %s", event.ErrUnknownEventType, env.Type)
	}
}

// absent handles an event that needs a post which is not live. A post seen
// before was deleted and the event is moot; a post never seen may still be
// created by an event in flight.
func (p *Projector) absent(last int64) (Outcome, error) {
	if last > 0 {
		return Ignored, nil
	}
	return 0, ErrMissingAggregate
}

func (p *Projector) timestamp(candidates ...time.Time) time.Time {
	for _, t := range candidates {
		if !t.IsZero() {
			return t.UTC()
		}
	}
	return p.now().UTC()
}
