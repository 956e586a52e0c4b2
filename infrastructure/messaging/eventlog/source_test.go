package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"postquery/infrastructure/messaging"

	eventbus "github.com/jilio/ebu"
)

func appendEvents(t *testing.T, store eventbus.EventStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := store.Save(context.Background(), &eventbus.StoredEvent{
			Type:      "PostLikedEvent",
			Data:      json.RawMessage(`{"n":1}`),
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func newSource(t *testing.T, store eventbus.EventStore) *Source {
	t.Helper()
	src, err := NewSource(store, Config{SubscriptionID: "read-model", PollInterval: 5 * time.Millisecond, BatchSize: 2})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	return src
}

func TestFetchInOrderAcrossBatches(t *testing.T) {
	store := eventbus.NewMemoryStore()
	appendEvents(t, store, 5)
	src := newSource(t, store)

	for want := int64(1); want <= 5; want++ {
		msg, err := src.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if msg.Offset != want {
			t.Fatalf("Offset = %d, want %d", msg.Offset, want)
		}
	}
}

func TestFetchResumesAfterCommit(t *testing.T) {
	ctx := context.Background()
	store := eventbus.NewMemoryStore()
	appendEvents(t, store, 3)

	src := newSource(t, store)
	first, _ := src.Fetch(ctx)
	second, _ := src.Fetch(ctx)
	if err := src.Commit(ctx, first); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	_ = second

	// second was fetched but never committed, so it is delivered again
	restarted := newSource(t, store)
	msg, err := restarted.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if msg.Offset != 2 {
		t.Errorf("Offset after restart = %d, want 2", msg.Offset)
	}
}

func TestFetchWaitsForNewEvents(t *testing.T) {
	store := eventbus.NewMemoryStore()
	src := newSource(t, store)

	go func() {
		time.Sleep(20 * time.Millisecond)
		store.Save(context.Background(), &eventbus.StoredEvent{Type: "PostLikedEvent", Data: json.RawMessage(`{}`)})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if msg.Offset != 1 {
		t.Errorf("Offset = %d, want 1", msg.Offset)
	}
}

func TestFetchStopsOnCancel(t *testing.T) {
	src := newSource(t, eventbus.NewMemoryStore())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want deadline exceeded", err)
	}
}

func TestNewSourceValidatesConfig(t *testing.T) {
	store := eventbus.NewMemoryStore()
	testCases := []struct {
		name  string
		store eventbus.EventStore
		cfg   Config
	}{
		{"nil store", nil, Config{SubscriptionID: "s", PollInterval: time.Second, BatchSize: 1}},
		{"no subscription", store, Config{PollInterval: time.Second, BatchSize: 1}},
		{"no poll interval", store, Config{SubscriptionID: "s", BatchSize: 1}},
		{"no batch size", store, Config{SubscriptionID: "s", PollInterval: time.Second}},
		{"negative gap timeout", store, Config{SubscriptionID: "s", PollInterval: time.Second, BatchSize: 1, GapTimeout: -time.Second}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSource(tc.store, tc.cfg); err == nil {
				t.Error("NewSource() should fail")
			}
		})
	}
}

func TestCommitRejectsForeignMessage(t *testing.T) {
	src := newSource(t, eventbus.NewMemoryStore())
	if err := src.Commit(context.Background(), messaging.Message{Handle: "x"}); err == nil {
		t.Error("Commit() accepted a foreign message")
	}
}

// sparseStore hands out events at chosen positions, like an auto-increment
// log whose writers commit out of order.
type sparseStore struct {
	mu     sync.Mutex
	events map[int64]*eventbus.StoredEvent
	*eventbus.MemoryStore
}

func newSparseStore(positions ...int64) *sparseStore {
	s := &sparseStore{events: map[int64]*eventbus.StoredEvent{}, MemoryStore: eventbus.NewMemoryStore()}
	for _, p := range positions {
		s.put(p)
	}
	return s
}

func (s *sparseStore) put(position int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[position] = &eventbus.StoredEvent{Position: position, Type: "PostLikedEvent", Data: json.RawMessage(`{}`)}
}

func (s *sparseStore) Load(_ context.Context, from, to int64) ([]*eventbus.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*eventbus.StoredEvent
	for p := from; p <= to; p++ {
		if ev, ok := s.events[p]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func fetchOffsets(t *testing.T, src *Source, n int) []int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got []int64
	for i := 0; i < n; i++ {
		msg, err := src.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch() after %v error = %v", got, err)
		}
		got = append(got, msg.Offset)
	}
	return got
}

func TestFetchWaitsForLateLowerPosition(t *testing.T) {
	store := newSparseStore(1, 3, 4)
	src, err := NewSource(store, Config{SubscriptionID: "s", PollInterval: 2 * time.Millisecond, BatchSize: 10, GapTimeout: time.Minute})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	if got := fetchOffsets(t, src, 1); got[0] != 1 {
		t.Fatalf("first offset = %d, want 1", got[0])
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		store.put(2)
	}()

	got := fetchOffsets(t, src, 3)
	want := []int64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", got, want)
		}
	}
}

func TestFetchSkipsGapAfterTimeout(t *testing.T) {
	testCases := []struct {
		name    string
		timeout time.Duration
	}{
		{"single writer skips at once", 0},
		{"abandoned position skipped after timeout", 15 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := NewSource(newSparseStore(1, 3, 5), Config{SubscriptionID: "s", PollInterval: 2 * time.Millisecond, BatchSize: 10, GapTimeout: tc.timeout})
			if err != nil {
				t.Fatalf("NewSource() error = %v", err)
			}
			got := fetchOffsets(t, src, 3)
			want := []int64{1, 3, 5}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("offsets = %v, want %v", got, want)
				}
			}
		})
	}
}
