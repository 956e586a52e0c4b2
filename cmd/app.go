package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"postquery/api"
	"postquery/application/query"
	"postquery/config"
	"postquery/infrastructure/messaging"
	"postquery/pkg/logger"

	"go.uber.org/zap"
)

// App is the read-side service: the lookup API and, when enabled, the
// event consumer keeping the read model current.
type App struct {
	config     *config.Config
	router     *api.Router
	server     *http.Server
	store      *readStore
	dispatcher *query.Dispatcher
	consumer   *messaging.Consumer
	source     messaging.Source
}

// Run serves until ctx ends, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
		logger.Info("Event consumer started", zap.String("source", a.config.Consumer.Source))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops accepting requests, drains the consumer and releases the
// source and database. It waits at most the configured shutdown timeout.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		stats := a.consumer.Stats()
		logger.Info("Event consumer stopped",
			zap.Int64("applied", stats.Applied),
			zap.Int64("skipped", stats.Skipped),
			zap.Int64("retries", stats.Retries),
			zap.Int64("failures", stats.Failures),
		)
	}
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close: %w", err))
		}
	}
	if err := a.store.close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	logger.Info("Server stopped")
	return errors.Join(errs...)
}

// Handler returns the HTTP handler (used by tests).
func (a *App) Handler() http.Handler {
	return a.router.GetEngine()
}

// Dispatcher returns the sealed query dispatcher.
func (a *App) Dispatcher() *query.Dispatcher {
	return a.dispatcher
}
