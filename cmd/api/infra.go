package main

import (
	"context"
	"database/sql"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"edms/internal/cache"
	"edms/internal/config"
	"edms/internal/database"
	"edms/internal/database/migration"
	"edms/internal/events"
	"edms/internal/logger"
	"edms/internal/model"
	"edms/internal/repository"
	"edms/internal/repository/memory"
	"edms/internal/repository/postgres"
	"edms/internal/storage"
)

// infra holds the backing services selected by configuration.
type infra struct {
	db        *sql.DB
	storage   storage.Storage
	documents repository.DocumentRepository
	versions  repository.VersionRepository
	users     repository.UserRepository
	cache     cache.DocumentCache
	events    events.Publisher

	closers []func()
}

func (i *infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

func openInfra(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (_ *infra, err error) {
	i := &infra{cache: cache.Noop{}, events: events.Noop{}}
	defer func() {
		if err != nil {
			i.Close()
		}
	}()

	if err := i.openRepositories(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := i.openStorage(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := i.openCache(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := i.openEvents(ctx, cfg, log); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *infra) openRepositories(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	if cfg.Backend == config.BackendMemory {
		store := memory.NewStore()
		for _, u := range cfg.Users {
			store.PutUser(model.User{ID: u.ID, Email: u.Email, Role: u.Role})
		}
		i.documents, i.versions, i.users = store.Documents(), store.Versions(), store.Users()
		log.Info("memory backend ready", zap.Int("users", len(cfg.Users)))
		return nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	i.db = db
	i.closers = append(i.closers, func() { _ = db.Close() })

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return err
	}
	if len(cfg.Users) > 0 {
		seed := make([]migration.User, 0, len(cfg.Users))
		for _, u := range cfg.Users {
			seed = append(seed, migration.User{ID: u.ID, Email: u.Email, Role: u.Role})
		}
		if err := migration.SeedUsers(ctx, db, seed); err != nil {
			return err
		}
	}

	i.documents = postgres.NewDocumentPostgres(db)
	i.versions = postgres.NewVersionPostgres(db)
	i.users = postgres.NewUserPostgres(db)
	return nil
}

// openStorage uses MinIO when an endpoint is configured and process memory otherwise.
func (i *infra) openStorage(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	if cfg.MinIO.Endpoint == "" {
		if cfg.Backend != config.BackendMemory {
			return fmt.Errorf("MINIO_ENDPOINT is required for the %s backend", cfg.Backend)
		}
		i.storage = storage.NewMemory()
		return nil
	}
	s, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}
	i.storage = s
	log.Info("object storage ready", zap.String("endpoint", cfg.MinIO.Endpoint), zap.String("bucket", cfg.MinIO.Bucket))
	return nil
}

func (i *infra) openCache(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.cache = cache.NewRedisDocumentCache(client, cfg.ViewTTL())
	log.Info("document cache ready", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.ViewTTL()))
	return nil
}

func (i *infra) openEvents(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	if cfg.RabbitMQ.URL == "" {
		return nil
	}
	conn, err := events.Dial(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, func() { _ = conn.Close() })
	i.events = events.NewAMQPPublisher(conn, cfg.RabbitMQ.EventsQueue)

	if cfg.RabbitMQ.RunWorker {
		return i.startWorker(ctx, conn, cfg.RabbitMQ.EventsQueue, log)
	}
	return nil
}

func (i *infra) startWorker(ctx context.Context, conn *amqp.Connection, queue string, log *zap.Logger) error {
	wlog := logger.Component(log, "notification-worker")
	w := events.NewNotificationWorker(conn, queue, events.LogNotifier{Logger: wlog}, wlog)
	if err := w.Start(ctx); err != nil {
		return err
	}
	i.closers = append(i.closers, w.Close)
	return nil
}
