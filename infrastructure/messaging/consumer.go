package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"postquery/application/projection"
	"postquery/domain/event"
	"postquery/infrastructure/persistence/retry"
	"postquery/pkg/logger"

	"go.uber.org/zap"
)

// State of the consumer loop, readable at any time through State.
type State int32

const (
	StateStopped State = iota
	StatePolling
	StateProcessing
	StateRetrying
	StateFaultedSkip
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateRetrying:
		return "retrying"
	case StateFaultedSkip:
		return "faulted_skip"
	default:
		return "unknown"
	}
}

// Projector applies one decoded envelope.
type Projector interface {
	Apply(ctx context.Context, env event.Envelope) (projection.Outcome, error)
}

// Stats counts records since the consumer was created.
type Stats struct {
	Applied  int64 `json:"applied"`
	Skipped  int64 `json:"skipped"`
	Retries  int64 `json:"retries"`
	Failures int64 `json:"commit_failures"`
}

// Consumer reads records from a Source, projects them and commits each
// record only after its projection committed.
//
// Permanent decode errors are logged and committed. Any other error is
// retried with backoff; when the budget runs out the record is logged as
// poison and committed so the stream keeps moving.
type Consumer struct {
	source        Source
	projector     Projector
	retryConfig   retry.Config
	commitTimeout time.Duration

	state    atomic.Int32
	applied  atomic.Int64
	skipped  atomic.Int64
	retries  atomic.Int64
	failures atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(
	source Source,
	projector Projector,
	retryConfig retry.Config,
	commitTimeout time.Duration,
) (*Consumer, error) {
	if source == nil {
		return nil, fmt.Errorf("event source is required")
	}
	if projector == nil {
		return nil, fmt.Errorf("projector is required")
	}
	if retryConfig.MaxAttempts <= 0 {
		return nil, fmt.Errorf("retry max attempts must be positive")
	}
	if commitTimeout <= 0 {
		return nil, fmt.Errorf("commit timeout must be positive")
	}

	return &Consumer{
		source:        source,
		projector:     projector,
		retryConfig:   retryConfig,
		commitTimeout: commitTimeout,
	}, nil
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Consumer) Stats() Stats {
	return Stats{
		Applied:  c.applied.Load(),
		Skipped:  c.skipped.Load(),
		Retries:  c.retries.Load(),
		Failures: c.failures.Load(),
	}
}

// Run consumes until ctx ends and returns ctx.Err(). A record whose
// projection started is finished and committed even if ctx ends meanwhile.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.setState(StateStopped)

	fetchFailures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.setState(StatePolling)
		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fetchFailures++
			delay := retry.ExponentialBackoffWithJitter(fetchFailures, c.retryConfig)
			logger.Warn("Event fetch failed, backing off",
				zap.Int("attempt", fetchFailures),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}
		fetchFailures = 0

		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg Message) {
	c.setState(StateProcessing)
	// shutdown must not interrupt an apply or its commit
	workCtx := context.WithoutCancel(ctx)

	env, err := event.DecodeEnvelope(msg.Value)
	if err != nil {
		c.skip(workCtx, msg, logger.Get(), "Malformed event record skipped", err)
		return
	}
	log := logger.WithEvent(env.AggregateID, env.Version, string(env.Type)).
		With(zap.Stringer("offset", msg))

	cfg := c.retryConfig
	cfg.RetryPredicate = func(err error) bool { return !event.IsPermanent(err) }
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.setState(StateRetrying)
		c.retries.Add(1)
		log.Warn("Event projection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var outcome projection.Outcome
	err = retry.ExecuteWithRetry(ctx, cfg, func(context.Context) error {
		c.setState(StateProcessing)
		var applyErr error
		outcome, applyErr = c.projector.Apply(workCtx, env)
		return applyErr
	})

	switch {
	case err == nil:
		c.applied.Add(1)
		log.Debug("Event consumed", zap.Stringer("outcome", outcome))
		c.commit(workCtx, msg, log)
	case event.IsPermanent(err):
		c.skip(workCtx, msg, log, "Undecodable event skipped", err)
	case ctx.Err() != nil:
		// stopped while backing off; the record is redelivered on restart
		log.Info("Consumer stopping, event left uncommitted", zap.Error(err))
	default:
		c.skip(workCtx, msg, log, "Poison event skipped after retries", err)
	}
}

func (c *Consumer) skip(ctx context.Context, msg Message, log *zap.Logger, reason string, err error) {
	c.setState(StateFaultedSkip)
	c.skipped.Add(1)
	log.Error(reason,
		zap.Stringer("offset", msg),
		zap.ByteString("key", msg.Key),
		zap.Error(err),
	)
	c.commit(ctx, msg, log)
}

func (c *Consumer) commit(ctx context.Context, msg Message, log *zap.Logger) {
	commitCtx, cancel := context.WithTimeout(ctx, c.commitTimeout)
	defer cancel()

	if err := c.source.Commit(commitCtx, msg); err != nil {
		c.failures.Add(1)
		log.Error("Failed to commit event offset", zap.Stringer("offset", msg), zap.Error(err))
	}
}

// Start runs the consumer on its own goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return errors.New("consumer already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := c.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumer exited", zap.Error(err))
		}
	}(c.done)
	return nil
}

// Stop cancels polling and waits for the record in flight, or until ctx ends.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer did not drain: %w", ctx.Err())
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
