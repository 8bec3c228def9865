package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/voice-relay/internal/account"
	"github.com/eleven-am/voice-relay/internal/metrics"
	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func ProvideAccountStore(db *gorm.DB) *account.Store {
	return account.NewStore(db)
}

func ProvideSessionStore(redisClient *redis.Client) *session.Store {
	return session.NewStore(redisClient)
}

func ProvideSessionRecorder(lc fx.Lifecycle, store *session.Store, logger *slog.Logger) *session.Recorder {
	rec := session.NewRecorder(store, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			rec.Close()
			return nil
		},
	})
	return rec
}

func ProvideRegistry(m *metrics.Metrics, rec *session.Recorder, logger *slog.Logger) *pairing.Registry {
	return pairing.NewRegistry(pairing.Observers{m, rec}, logger)
}

func RunMigrations(ctx context.Context, store *account.Store, cfg *Config, logger *slog.Logger) error {
	if err := store.Migrate(); err != nil {
		return err
	}
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD not set, no admin account seeded")
		return nil
	}
	return store.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRedisClient,
		ProvideDatabase,
		metrics.New,
		ProvideAccountStore,
		ProvideSessionStore,
		ProvideSessionRecorder,
		ProvideRegistry,
	),
	fx.Invoke(func(store *account.Store, cfg *Config, logger *slog.Logger) error {
		return RunMigrations(context.Background(), store, cfg, logger)
	}),
)
