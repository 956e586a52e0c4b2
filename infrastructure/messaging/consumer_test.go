package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"postquery/application/projection"
	"postquery/domain/event"
	"postquery/infrastructure/messaging"
	"postquery/infrastructure/messaging/eventlog"
	"postquery/infrastructure/persistence/mocks"
	"postquery/infrastructure/persistence/retry"

	eventbus "github.com/jilio/ebu"
)

var testRetry = retry.Config{
	Enabled:       true,
	MaxAttempts:   3,
	InitialDelay:  time.Millisecond,
	MaxDelay:      2 * time.Millisecond,
	BackoffFactor: 2,
}

// fakeSource serves scripted records and fetch errors, then blocks.
type fakeSource struct {
	mu        sync.Mutex
	queue     []messaging.Message
	fetchErrs []error
	committed []int64
}

func (s *fakeSource) Fetch(ctx context.Context) (messaging.Message, error) {
	for {
		s.mu.Lock()
		if len(s.fetchErrs) > 0 {
			err := s.fetchErrs[0]
			s.fetchErrs = s.fetchErrs[1:]
			s.mu.Unlock()
			return messaging.Message{}, err
		}
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return messaging.Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *fakeSource) Commit(_ context.Context, msg messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msg.Offset)
	return nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type projectorFunc func(ctx context.Context, env event.Envelope) (projection.Outcome, error)

func (f projectorFunc) Apply(ctx context.Context, env event.Envelope) (projection.Outcome, error) {
	return f(ctx, env)
}

func record(t *testing.T, offset int64, aggregateID string, version int64, e event.Event) messaging.Message {
	t.Helper()
	data, err := event.Encode(aggregateID, version, e)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return messaging.Message{Key: []byte(aggregateID), Value: data, Offset: offset}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startConsumer(t *testing.T, src messaging.Source, p messaging.Projector) *messaging.Consumer {
	t.Helper()
	c, err := messaging.NewConsumer(src, p, testRetry, time.Second)
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c.Stop(ctx)
	})
	return c
}

func TestConsumerCommitsAfterApply(t *testing.T) {
	src := &fakeSource{}
	src.queue = []messaging.Message{
		record(t, 1, "P1", 1, &event.PostCreated{Author: "a"}),
		{Offset: 2, Value: []byte("not json")},
		record(t, 3, "P1", 2, &event.PostLiked{}),
	}

	var mu sync.Mutex
	var applied []int64
	c := startConsumer(t, src, projectorFunc(func(_ context.Context, env event.Envelope) (projection.Outcome, error) {
		mu.Lock()
		applied = append(applied, env.Version)
		mu.Unlock()
		return projection.Applied, nil
	}))

	waitFor(t, "three commits", func() bool { return len(src.commits()) == 3 })

	commits := src.commits()
	for i, want := range []int64{1, 2, 3} {
		if commits[i] != want {
			t.Fatalf("commits = %v, want [1 2 3]", commits)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(applied) != 2 {
		t.Errorf("applied versions = %v, malformed record must not reach the projector", applied)
	}
	stats := c.Stats()
	if stats.Applied != 2 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestConsumerRetriesTransientErrors(t *testing.T) {
	src := &fakeSource{queue: []messaging.Message{record(t, 7, "P1", 2, &event.PostLiked{})}}

	var calls int
	var mu sync.Mutex
	c := startConsumer(t, src, projectorFunc(func(context.Context, event.Envelope) (projection.Outcome, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return 0, projection.ErrMissingAggregate
		}
		return projection.Applied, nil
	}))

	waitFor(t, "commit", func() bool { return len(src.commits()) == 1 })
	stats := c.Stats()
	if stats.Applied != 1 || stats.Retries != 2 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestConsumerSkipsPoisonAfterBudget(t *testing.T) {
	src := &fakeSource{queue: []messaging.Message{
		record(t, 1, "P1", 2, &event.PostLiked{}),
		record(t, 2, "P2", 1, &event.PostCreated{Author: "b"}),
	}}

	var mu sync.Mutex
	attempts := map[string]int{}
	c := startConsumer(t, src, projectorFunc(func(_ context.Context, env event.Envelope) (projection.Outcome, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts[env.AggregateID]++
		if env.AggregateID == "P1" {
			return 0, errors.New("storage unavailable")
		}
		return projection.Applied, nil
	}))

	waitFor(t, "both commits", func() bool { return len(src.commits()) == 2 })

	mu.Lock()
	defer mu.Unlock()
	if attempts["P1"] != testRetry.MaxAttempts {
		t.Errorf("poison attempts = %d, want %d", attempts["P1"], testRetry.MaxAttempts)
	}
	if attempts["P2"] != 1 {
		t.Errorf("next record attempts = %d, want 1", attempts["P2"])
	}
	if stats := c.Stats(); stats.Skipped != 1 || stats.Applied != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestConsumerBacksOffOnFetchErrors(t *testing.T) {
	src := &fakeSource{
		fetchErrs: []error{errors.New("broker down"), errors.New("broker down")},
		queue:     []messaging.Message{record(t, 1, "P1", 1, &event.PostCreated{Author: "a"})},
	}
	startConsumer(t, src, projectorFunc(func(context.Context, event.Envelope) (projection.Outcome, error) {
		return projection.Applied, nil
	}))
	waitFor(t, "commit after fetch errors", func() bool { return len(src.commits()) == 1 })
}

func TestConsumerStopDrainsInFlightRecord(t *testing.T) {
	src := &fakeSource{queue: []messaging.Message{record(t, 1, "P1", 1, &event.PostCreated{Author: "a"})}}
	started := make(chan struct{})
	release := make(chan struct{})

	c, err := messaging.NewConsumer(src, projectorFunc(func(ctx context.Context, _ event.Envelope) (projection.Outcome, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return projection.Applied, nil
	}), testRetry, time.Second)
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- c.Stop(ctx)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned before the in-flight record finished")
	case <-time.After(30 * time.Millisecond):
	}
	if got := c.State(); got != messaging.StateProcessing {
		t.Errorf("State() = %s, want processing", got)
	}

	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if commits := src.commits(); len(commits) != 1 {
		t.Errorf("commits = %v, in-flight record must be committed", commits)
	}
	if got := c.State(); got != messaging.StateStopped {
		t.Errorf("State() = %s, want stopped", got)
	}
}

func TestConsumerStartTwice(t *testing.T) {
	c := startConsumer(t, &fakeSource{}, projectorFunc(func(context.Context, event.Envelope) (projection.Outcome, error) {
		return projection.Applied, nil
	}))
	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestNewConsumerValidatesArgs(t *testing.T) {
	p := projectorFunc(func(context.Context, event.Envelope) (projection.Outcome, error) { return projection.Applied, nil })
	testCases := []struct {
		name    string
		source  messaging.Source
		proj    messaging.Projector
		retry   retry.Config
		timeout time.Duration
	}{
		{"nil source", nil, p, testRetry, time.Second},
		{"nil projector", &fakeSource{}, nil, testRetry, time.Second},
		{"zero attempts", &fakeSource{}, p, retry.Config{}, time.Second},
		{"zero commit timeout", &fakeSource{}, p, testRetry, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := messaging.NewConsumer(tc.source, tc.proj, tc.retry, tc.timeout); err == nil {
				t.Error("NewConsumer() should fail")
			}
		})
	}
}

// Records flow from the event log through the projector; the repeated like
// carries the same version and changes nothing.
func TestConsumerEndToEndWithEventLog(t *testing.T) {
	ctx := context.Background()
	log := eventbus.NewMemoryStore()
	save := func(aggregateID string, version int64, e event.Event) {
		data, err := event.Encode(aggregateID, version, e)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := log.Save(ctx, &eventbus.StoredEvent{Type: string(e.EventType()), Data: json.RawMessage(data)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	save("P1", 1, &event.PostCreated{Author: "alice", Title: "hello"})
	save("P1", 2, &event.CommentAdded{CommentID: "C1", Comment: "first", Username: "bob"})
	save("P1", 3, &event.PostLiked{})
	save("P1", 3, &event.PostLiked{})

	store := mocks.NewStore()
	posts := mocks.NewMockPostRepository(store)
	projector, err := projection.NewProjector(
		mocks.NewMockUnitOfWork(store),
		posts,
		mocks.NewMockCommentRepository(store),
		mocks.NewMockVersionRepository(store),
	)
	if err != nil {
		t.Fatalf("NewProjector() error = %v", err)
	}
	src, err := eventlog.NewSource(log, eventlog.Config{SubscriptionID: "read-model", PollInterval: time.Millisecond, BatchSize: 10})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	startConsumer(t, src, projector)
	waitFor(t, "subscription at position 4", func() bool {
		pos, _ := log.LoadSubscriptionPosition(ctx, "read-model")
		return pos == 4
	})

	p, err := posts.GetByID(ctx, "P1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if p.Likes != 1 {
		t.Errorf("Likes = %d, duplicate like must be a no-op", p.Likes)
	}
	if len(p.Comments) != 1 || p.Comments[0].Author != "bob" {
		t.Errorf("comments = %+v", p.Comments)
	}
}
