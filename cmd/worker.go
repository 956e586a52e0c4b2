package cmd

import (
	"context"
	"errors"
	"fmt"

	"postquery/config"
	"postquery/infrastructure/messaging"
	"postquery/pkg/logger"

	"go.uber.org/zap"
)

// Worker runs the projection alone, without the lookup API.
type Worker struct {
	store    *readStore
	consumer *messaging.Consumer
	source   messaging.Source
}

func NewWorker(ctx context.Context, cfg *config.Config) (*Worker, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	consumer, source, err := newConsumer(cfg, store)
	if err != nil {
		_ = store.close()
		return nil, err
	}
	return &Worker{store: store, consumer: consumer, source: source}, nil
}

// Run consumes until ctx ends, then releases the source and database.
func (w *Worker) Run(ctx context.Context) error {
	runErr := w.consumer.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	stats := w.consumer.Stats()
	logger.Info("Projection worker stopped",
		zap.Int64("applied", stats.Applied),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("retries", stats.Retries),
		zap.Int64("failures", stats.Failures),
	)

	var errs []error
	if runErr != nil {
		errs = append(errs, fmt.Errorf("consumer exited with error: %w", runErr))
	}
	if err := w.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("source close: %w", err))
	}
	if err := w.store.close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	return errors.Join(errs...)
}
