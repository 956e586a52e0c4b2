package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"postquery/domain/post"
	"postquery/domain/shared"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "postquery/application/query"

var (
	ErrDuplicateRegistration = shared.NewConfigurationError("query dispatcher", "handler already registered for query kind")
	ErrDispatcherSealed      = shared.NewConfigurationError("query dispatcher", "dispatcher is sealed")
	ErrUnregisteredQuery     = errors.New("no handler registered for query")
)

// UnregisteredQueryError names the kind nobody registered.
type UnregisteredQueryError struct {
	Kind Kind
}

func (e *UnregisteredQueryError) Error() string {
	return fmt.Sprintf("no handler registered for query %s", e.Kind)
}

func (e *UnregisteredQueryError) Is(target error) bool {
	return target == ErrUnregisteredQuery
}

// HandlerFunc answers one kind of query.
type HandlerFunc func(ctx context.Context, q Query) ([]*post.Post, error)

// Dispatcher routes queries by kind. Registration happens once at startup;
// after Seal the registry is read-only and Dispatch takes no lock.
type Dispatcher struct {
	mu       sync.Mutex
	sealed   atomic.Bool
	handlers map[Kind]HandlerFunc
	tracer   trace.Tracer
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Kind]HandlerFunc),
		tracer:   otel.Tracer(instrumentationName),
	}
}

// Register binds fn to kind. A kind can be bound only once.
func (d *Dispatcher) Register(kind Kind, fn HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("register %s: nil handler", kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed.Load() {
		return fmt.Errorf("register %s: %w", kind, ErrDispatcherSealed)
	}
	if _, exists := d.handlers[kind]; exists {
		return fmt.Errorf("register %s: %w", kind, ErrDuplicateRegistration)
	}
	d.handlers[kind] = fn
	return nil
}

// Register binds a handler typed on the query variant Q.
func Register[Q Query](d *Dispatcher, fn func(ctx context.Context, q Q) ([]*post.Post, error)) error {
	var zero Q
	return d.Register(zero.Kind(), func(ctx context.Context, q Query) ([]*post.Post, error) {
		typed, ok := q.(Q)
		if !ok {
			return nil, fmt.Errorf("query %s: unexpected type %T", zero.Kind(), q)
		}
		return fn(ctx, typed)
	})
}

// Seal freezes the registry. Further registration fails.
func (d *Dispatcher) Seal() {
	d.mu.Lock()
	d.sealed.Store(true)
	d.mu.Unlock()
}

// Kinds returns the registered kinds in ascending order.
func (d *Dispatcher) Kinds() []Kind {
	d.mu.Lock()
	defer d.mu.Unlock()

	kinds := make([]Kind, 0, len(d.handlers))
	for k := range d.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Dispatch runs the handler registered for q's kind and returns its result
// unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, q Query) ([]*post.Post, error) {
	if q == nil {
		return nil, &UnregisteredQueryError{}
	}
	kind := q.Kind()

	fn, ok := d.lookup(kind)
	if !ok {
		return nil, &UnregisteredQueryError{Kind: kind}
	}

	ctx, span := d.tracer.Start(ctx, "query.dispatch",
		trace.WithAttributes(attribute.String("query.kind", kind.String())),
	)
	defer span.End()

	posts, err := fn(ctx, q)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("query.result_count", len(posts)))
	span.SetStatus(codes.Ok, "")
	return posts, nil
}

func (d *Dispatcher) lookup(kind Kind) (HandlerFunc, bool) {
	if d.sealed.Load() {
		fn, ok := d.handlers[kind]
		return fn, ok
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fn, ok := d.handlers[kind]
	return fn, ok
}
