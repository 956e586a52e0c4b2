package shared

import "context"

// UnitOfWork runs fn inside one storage transaction. Repositories called with
// the ctx handed to fn join that transaction; any error rolls everything back.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}
