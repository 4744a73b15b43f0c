package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresBackend struct {
	db *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, connString string) (*PostgresBackend, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// Transaction-mode poolers (PgBouncer) break prepared statements; disable the statement cache.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	b := &PostgresBackend{db: pool}
	if err := b.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) initSchema(ctx context.Context) error {
	_, err := b.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			site       TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to init cache schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Load(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := b.db.QueryRow(ctx,
		"SELECT key, url, site, content, fetched_at FROM cache_entries WHERE key = $1", key).
		Scan(&e.Key, &e.URL, &e.Site, &e.Content, &e.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}
	return &e, nil
}

func (b *PostgresBackend) Store(ctx context.Context, e *Entry, overwrite bool) (bool, error) {
	query := `
		INSERT INTO cache_entries (key, url, site, content, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING`
	if overwrite {
		query = `
			INSERT INTO cache_entries (key, url, site, content, fetched_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key) DO UPDATE SET
				url = EXCLUDED.url,
				site = EXCLUDED.site,
				content = EXCLUDED.content,
				fetched_at = EXCLUDED.fetched_at`
	}

	tag, err := b.db.Exec(ctx, query, e.Key, e.URL, e.Site, e.Content, e.FetchedAt)
	if err != nil {
		return false, fmt.Errorf("failed to store cache entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.Exec(ctx, "DELETE FROM cache_entries WHERE key = $1", key)
	return err
}

func (b *PostgresBackend) Close() error {
	if b.db != nil {
		b.db.Close()
	}
	return nil
}
