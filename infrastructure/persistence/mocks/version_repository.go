package mocks

import "context"

// MockVersionRepository keeps projection versions in the shared Store.
type MockVersionRepository struct {
	store *Store
}

func NewMockVersionRepository(store *Store) *MockVersionRepository {
	return &MockVersionRepository{store: store}
}

func (r *MockVersionRepository) LastVersion(ctx context.Context, aggregateID string) (int64, error) {
	var v int64
	r.store.read(ctx, func() {
		v = r.store.versions[aggregateID]
	})
	return v, nil
}

func (r *MockVersionRepository) SaveVersion(ctx context.Context, aggregateID string, version int64) error {
	r.store.write(ctx, func() {
		r.store.versions[aggregateID] = version
	})
	return nil
}
