// Package bootstrap opens the infrastructure shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rollcall/internal/attendance"
	"rollcall/internal/cloudinary"
	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/store"
	"rollcall/internal/worker"
)

// Infra holds the long-lived connections. DB is nil with the memory store and
// Redis is nil when REDIS_ADDR is empty.
type Infra struct {
	DB    *store.DB
	Redis *store.Redis
	Store attendance.Store
	Queue queue.Queue
}

// Open connects the store, redis and the event queue described by cfg.
func Open(ctx context.Context, cfg config.App, logger *slog.Logger) (*Infra, error) {
	infra := &Infra{Redis: store.NewRedis(cfg.RedisAddr)}

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.WarnContext(ctx, "using in-memory store; data is lost on restart")
		infra.Store = attendance.NewMemoryStore()
	default:
		if cfg.MigrateOnStart {
			if err := store.Migrate(cfg.DatabaseURL, "up"); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.InfoContext(ctx, "migrations applied")
		}
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		infra.DB = db
		infra.Store = attendance.NewRepository(db.Client, 0)
	}

	rdb := infra.Redis
	opts := queue.Options{
		Name:         cfg.QueueName,
		RabbitMQURL:  cfg.RabbitMQURL,
		KafkaBrokers: cfg.Brokers(),
		KafkaGroupID: cfg.KafkaGroupID,
	}
	if rdb != nil {
		opts.Redis = rdb.Client
	}
	q, err := queue.New(cfg.QueueBackend, opts)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	infra.Queue = q
	logger.InfoContext(ctx, "infrastructure ready", "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
	return infra, nil
}

// Close releases every connection, returning the joined errors.
func (i *Infra) Close() error {
	var errs []error
	if i.Queue != nil {
		errs = append(errs, i.Queue.Close())
	}
	errs = append(errs, i.Redis.Close(), i.DB.Close())
	return errors.Join(errs...)
}

// Archiver returns the Cloudinary archive, or nil when it is not configured.
func Archiver(cfg config.App, logger *slog.Logger) worker.Archiver {
	if !cfg.CloudinaryEnabled() {
		logger.Info("cloudinary not configured; reports will not be archived")
		return nil
	}
	logger.Info("cloudinary configured", "cloud", cfg.CloudinaryCloud)
	return cloudinary.New(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryFolder, logger)
}
