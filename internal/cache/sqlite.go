package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens a go-sqlite3 DSN, e.g. "cache/cache.db?_busy_timeout=5000".
func OpenSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			site       TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Load(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := b.db.QueryRowContext(ctx,
		"SELECT key, url, site, content, fetched_at FROM cache_entries WHERE key = ?", key).
		Scan(&e.Key, &e.URL, &e.Site, &e.Content, &e.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *SQLiteBackend) Store(ctx context.Context, e *Entry, overwrite bool) (bool, error) {
	query := `INSERT OR IGNORE INTO cache_entries (key, url, site, content, fetched_at) VALUES (?, ?, ?, ?, ?)`
	if overwrite {
		query = `INSERT INTO cache_entries (key, url, site, content, fetched_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET url = excluded.url, site = excluded.site,
				content = excluded.content, fetched_at = excluded.fetched_at`
	}

	res, err := b.db.ExecContext(ctx, query, e.Key, e.URL, e.Site, e.Content, e.FetchedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }
