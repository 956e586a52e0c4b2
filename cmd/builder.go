package cmd

import (
	"context"
	"fmt"
	"net/http"

	"postquery/api"
	"postquery/api/health"
	"postquery/api/postlookup"
	"postquery/application/query"
	"postquery/config"
	"postquery/infrastructure/persistence/retry"
	"postquery/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppBuilder builds an App with customizable components
type AppBuilder struct {
	cfg             *config.Config
	controllers     []api.ControllerRegister
	middlewares     []api.MiddlewareRegister
	customRoutes    []api.Route
	consumerEnabled bool
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{
		cfg:             cfg,
		controllers:     []api.ControllerRegister{},
		middlewares:     []api.MiddlewareRegister{},
		customRoutes:    []api.Route{},
		consumerEnabled: cfg.Consumer.Enabled,
	}
}

// WithController adds a controller to the app
func (b *AppBuilder) WithController(c api.ControllerRegister) *AppBuilder {
	b.controllers = append(b.controllers, c)
	return b
}

// WithMiddleware adds a middleware to the app
func (b *AppBuilder) WithMiddleware(m api.MiddlewareRegister) *AppBuilder {
	b.middlewares = append(b.middlewares, m)
	return b
}

// WithRoute adds a custom route
func (b *AppBuilder) WithRoute(method, path string, handler gin.HandlerFunc) *AppBuilder {
	b.customRoutes = append(b.customRoutes, api.Route{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
	return b
}

// DisableConsumer serves queries only; projection runs in a separate worker.
func (b *AppBuilder) DisableConsumer() *AppBuilder {
	b.consumerEnabled = false
	return b
}

// Build creates the App instance. The logger must already be initialized.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	logger.Info("Building application",
		zap.String("app", b.cfg.App.Name),
		zap.String("version", b.cfg.App.Version),
		zap.String("env", b.cfg.App.Env))

	store, err := openStore(ctx, b.cfg)
	if err != nil {
		return nil, err
	}

	dispatcher, err := newDispatcher(b.cfg, store)
	if err != nil {
		_ = store.close()
		return nil, err
	}

	app := &App{
		config:     b.cfg,
		store:      store,
		dispatcher: dispatcher,
	}

	var consumerStatus health.ConsumerStatus
	if b.consumerEnabled {
		consumer, source, err := newConsumer(b.cfg, store)
		if err != nil {
			_ = store.close()
			return nil, err
		}
		app.consumer = consumer
		app.source = source
		consumerStatus = consumer
	}

	controllers := append([]api.ControllerRegister{
		health.NewController(b.cfg, store.ping(), consumerStatus),
		postlookup.NewController(dispatcher),
	}, b.controllers...)

	// Create router with controllers and middleware
	app.router = api.NewRouter(b.cfg, controllers, b.middlewares, b.customRoutes)
	app.router.SetupRoutes()

	// Create HTTP server
	app.server = &http.Server{
		Addr:         ":" + b.cfg.Server.Port,
		Handler:      app.router.GetEngine(),
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	return app, nil
}

// newDispatcher registers every lookup and seals the dispatcher.
func newDispatcher(cfg *config.Config, store *readStore) (*query.Dispatcher, error) {
	handler := query.NewHandler(store.posts)
	handler.SetRetryConfig(retry.FromConfig(cfg.Database.Retry))

	dispatcher := query.NewDispatcher()
	if err := handler.RegisterWith(dispatcher); err != nil {
		return nil, fmt.Errorf("failed to register query handlers: %w", err)
	}
	dispatcher.Seal()

	logger.Info("Query dispatcher ready", zap.Int("queries", len(dispatcher.Kinds())))
	return dispatcher, nil
}
