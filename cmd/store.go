package cmd

import (
	"context"
	"fmt"

	"postquery/application/projection"
	"postquery/config"
	"postquery/domain/post"
	"postquery/domain/shared"
	"postquery/infrastructure/messaging"
	"postquery/infrastructure/messaging/eventlog"
	"postquery/infrastructure/messaging/kafka"
	"postquery/infrastructure/persistence/mocks"
	"postquery/infrastructure/persistence/rdb"
	"postquery/infrastructure/persistence/retry"
	"postquery/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrate is replaced in tests.
var migrate = rdb.AutoMigrate

// readStore is the read model: repositories sharing one database (or one
// in-memory store) and the unit of work spanning them.
type readStore struct {
	db       *gorm.DB
	posts    post.Repository
	comments post.CommentRepository
	versions projection.VersionStore
	uow      shared.UnitOfWork
}

// ping is nil for the in-memory store.
func (s *readStore) ping() func(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return func(ctx context.Context) error { return rdb.Ping(ctx, s.db) }
}

func (s *readStore) close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// closeDB releases a connection pool that never made it into a readStore.
func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

// NewRDBConfig maps the database section onto the persistence config.
func NewRDBConfig(cfg *config.Config) *rdb.Config {
	return &rdb.Config{
		Driver:          cfg.Database.Type,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		Path:            cfg.Database.Path,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*readStore, error) {
	if cfg.Database.Type == "mock" {
		logger.Info("Using in-memory read model")
		store := mocks.NewStore()
		return &readStore{
			posts:    mocks.NewMockPostRepository(store),
			comments: mocks.NewMockCommentRepository(store),
			versions: mocks.NewMockVersionRepository(store),
			uow:      mocks.NewMockUnitOfWork(store),
		}, nil
	}

	db, err := NewRDBConfig(cfg).Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database.Type, err)
	}
	if err := rdb.Ping(ctx, db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Database.Type, err)
	}
	logger.Info("Connected to read model database", zap.String("driver", cfg.Database.Type))

	// Auto migration in development environment; sqlite has no other schema tooling
	if cfg.IsDevelopment() || cfg.Database.Type == rdb.DriverSQLite {
		if err := migrate(db); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	uow := rdb.NewUnitOfWork(db)
	uow.SetRetryConfig(retry.FromConfig(cfg.Database.Retry))

	return &readStore{
		db:       db,
		posts:    rdb.NewPostRepository(db),
		comments: rdb.NewCommentRepository(db),
		versions: rdb.NewVersionRepository(db),
		uow:      uow,
	}, nil
}

func openSource(cfg *config.Config, store *readStore) (messaging.Source, error) {
	switch cfg.Consumer.Source {
	case "kafka":
		return kafka.NewSource(kafka.Config{
			Brokers:  cfg.Consumer.Kafka.Brokers,
			Topic:    cfg.Consumer.Kafka.Topic,
			GroupID:  cfg.Consumer.Kafka.GroupID,
			MinBytes: cfg.Consumer.Kafka.MinBytes,
			MaxBytes: cfg.Consumer.Kafka.MaxBytes,
			MaxWait:  cfg.Consumer.Kafka.MaxWait,
		})
	case "eventlog":
		if store.db == nil {
			return nil, fmt.Errorf("eventlog source requires a relational database")
		}
		return eventlog.NewSource(rdb.NewEventLogStore(store.db), eventlog.Config{
			SubscriptionID: cfg.Consumer.EventLog.SubscriptionID,
			PollInterval:   cfg.Consumer.EventLog.PollInterval,
			BatchSize:      cfg.Consumer.EventLog.BatchSize,
			GapTimeout:     cfg.Consumer.EventLog.GapTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported consumer source %q", cfg.Consumer.Source)
	}
}

// newConsumer wires the projector over store to the configured source.
func newConsumer(cfg *config.Config, store *readStore) (*messaging.Consumer, messaging.Source, error) {
	projector, err := projection.NewProjector(store.uow, store.posts, store.comments, store.versions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create projector: %w", err)
	}

	source, err := openSource(cfg, store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event source: %w", err)
	}

	consumer, err := messaging.NewConsumer(source, projector, retry.FromConfig(cfg.Consumer.Retry), cfg.Consumer.CommitTimeout)
	if err != nil {
		_ = source.Close()
		return nil, nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return consumer, source, nil
}
