// Package eventlog reads the event stream from an ebu EventStore: an ordered
// log with numbered positions and a stored read position per subscription.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postquery/infrastructure/messaging"
	"postquery/pkg/logger"

	eventbus "github.com/jilio/ebu"
	"go.uber.org/zap"
)

type Config struct {
	SubscriptionID string
	PollInterval   time.Duration
	BatchSize      int
	// GapTimeout is how long a missing position is waited for before it is
	// skipped. With several writers an auto-increment position can become
	// visible after a higher one; zero assumes a single writer and skips at once.
	GapTimeout time.Duration
}

// Source polls the store in batches starting after the subscription's
// committed position. Events are delivered in position order only; a gap
// holds back everything after it until it fills or GapTimeout passes.
// It is not safe for concurrent use.
type Source struct {
	store          eventbus.EventStore
	subscriptionID string
	pollInterval   time.Duration
	batchSize      int
	gapTimeout     time.Duration
	now            func() time.Time

	next     int64
	started  bool
	buffer   []*eventbus.StoredEvent
	gapAt    int64
	gapSince time.Time
}

func NewSource(store eventbus.EventStore, cfg Config) (*Source, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if cfg.GapTimeout < 0 {
		return nil, fmt.Errorf("gap timeout must not be negative")
	}

	return &Source{
		store:          store,
		subscriptionID: cfg.SubscriptionID,
		pollInterval:   cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		gapTimeout:     cfg.GapTimeout,
		now:            time.Now,
	}, nil
}

func (s *Source) Fetch(ctx context.Context) (messaging.Message, error) {
	if !s.started {
		committed, err := s.store.LoadSubscriptionPosition(ctx, s.subscriptionID)
		if err != nil {
			return messaging.Message{}, fmt.Errorf("load subscription position: %w", err)
		}
		s.next = committed + 1
		s.started = true
		logger.Info("Event log subscription resumed",
			zap.String("subscription_id", s.subscriptionID),
			zap.Int64("position", committed),
		)
	}

	for len(s.buffer) == 0 {
		events, err := s.store.Load(ctx, s.next, s.next+int64(s.batchSize)-1)
		if err != nil {
			return messaging.Message{}, fmt.Errorf("load events from %d: %w", s.next, err)
		}
		if len(events) > 0 && s.accept(events) {
			break
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return messaging.Message{}, ctx.Err()
		case <-timer.C:
		}
	}

	ev := s.buffer[0]
	s.buffer = s.buffer[1:]
	s.next = ev.Position + 1

	return messaging.Message{
		Key:    []byte(ev.Type),
		Value:  ev.Data,
		Offset: ev.Position,
		Handle: ev.Position,
	}, nil
}

// accept buffers the run of consecutive positions starting at s.next. A
// batch starting past s.next is held back until the gap times out.
func (s *Source) accept(events []*eventbus.StoredEvent) bool {
	first := events[0].Position
	if first > s.next {
		if !s.gapExpired() {
			return false
		}
		logger.Warn("Event log gap skipped",
			zap.String("subscription_id", s.subscriptionID),
			zap.Int64("from", s.next),
			zap.Int64("to", first-1),
			zap.Duration("waited", s.now().Sub(s.gapSince)),
		)
		s.next = first
	}
	s.gapAt = 0

	n := 1
	for n < len(events) && events[n].Position == events[n-1].Position+1 {
		n++
	}
	s.buffer = events[:n]
	return true
}

func (s *Source) gapExpired() bool {
	if s.gapAt != s.next {
		s.gapAt = s.next
		s.gapSince = s.now()
	}
	return s.now().Sub(s.gapSince) >= s.gapTimeout
}

// Commit stores msg's position as the subscription's read position.
func (s *Source) Commit(ctx context.Context, msg messaging.Message) error {
	position, ok := msg.Handle.(int64)
	if !ok {
		return errors.New("message was not fetched from the event log")
	}
	return s.store.SaveSubscriptionPosition(ctx, s.subscriptionID, position)
}

func (s *Source) Close() error {
	return nil
}

var _ messaging.Source = (*Source)(nil)
