package app

import (
	"fmt"

	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/memory"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/postgres"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/redis"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/sqlite"
)

// OpenStore opens the configured driver and applies its migrations.
func OpenStore(cfg Config, codec *store.Codec) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.StoreDriver {
	case "memory":
		st = memory.NewStore()
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.DatabaseFile)
		st, err = sqlite.NewStore(dsn, codec)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("SESSION_POSTGRES_DSN is required for the postgres store")
		}
		st, err = postgres.Open(cfg.PostgresDSN, codec)
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("SESSION_REDIS_URL is required for the redis store")
		}
		st, err = redis.Open(cfg.RedisURL, codec, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply %s migrations: %w", cfg.StoreDriver, err)
	}
	return st, nil
}
