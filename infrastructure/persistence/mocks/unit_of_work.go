package mocks

import (
	"context"

	"postquery/domain/shared"
)

// MockUnitOfWork serializes units of work on the Store and restores the
// previous state when fn fails.
type MockUnitOfWork struct {
	store *Store
}

func NewMockUnitOfWork(store *Store) *MockUnitOfWork {
	return &MockUnitOfWork{store: store}
}

func (u *MockUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if u.store.holds(ctx) {
		return fn(ctx)
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	snap := u.store.snapshot()
	if err := fn(context.WithValue(ctx, lockKey{}, u.store)); err != nil {
		u.store.restore(snap)
		return err
	}
	return nil
}

// Compile-time check that MockUnitOfWork implements shared.UnitOfWork
var _ shared.UnitOfWork = (*MockUnitOfWork)(nil)
