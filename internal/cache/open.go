package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go-jobharvest/internal/config"
)

// Open builds the cache backend named in cfg.
func Open(ctx context.Context, cfg config.CacheConfig) (*Cache, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case "", "file":
		backend, err = NewFileBackend(cfg.Dir)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
			dsn = filepath.Join(cfg.Dir, "cache.db") + "?_busy_timeout=5000&_journal_mode=WAL"
		}
		backend, err = OpenSQLite(dsn)
	case "postgres":
		backend, err = ConnectPostgres(ctx, cfg.DSN)
	case "redis":
		backend = NewRedisBackend(cfg.RedisAddr, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return New(backend,
		WithForceRefresh(cfg.ForceRefresh),
		WithNormalizer(NewNormalizer(cfg.TrackingParams...)),
	), nil
}
