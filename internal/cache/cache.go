// Package cache is the content-addressed store of fetched job pages. Entries are keyed by the
// SHA-256 of the normalized URL, are write-once unless a refresh is forced, and never expire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMiss         = errors.New("cache miss")
	ErrEmptyContent = errors.New("refusing to cache empty content")
)

type Entry struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Site      string    `json:"site,omitempty"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Backend persists entries. Store must not replace an existing key unless overwrite is set,
// and reports whether it wrote.
type Backend interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Store(ctx context.Context, e *Entry, overwrite bool) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Cache is safe for concurrent use when its backend is.
type Cache struct {
	backend Backend
	norm    *Normalizer
	force   bool
	now     func() time.Time
}

type Option func(*Cache)

// WithForceRefresh makes Put overwrite existing entries.
func WithForceRefresh(force bool) Option {
	return func(c *Cache) { c.force = force }
}

func WithNormalizer(n *Normalizer) Option {
	return func(c *Cache) { c.norm = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{backend: backend, norm: defaultNormalizer, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Normalize(rawURL string) string { return c.norm.Normalize(rawURL) }

// Key is the content address for rawURL.
func (c *Cache) Key(rawURL string) string { return HashKey(c.norm.Normalize(rawURL)) }

// Get returns the entry for rawURL or ErrMiss.
func (c *Cache) Get(ctx context.Context, rawURL string) (*Entry, error) {
	return c.backend.Load(ctx, c.Key(rawURL))
}

// Has reports a hit; backend errors count as a miss.
func (c *Cache) Has(ctx context.Context, rawURL string) bool {
	_, err := c.Get(ctx, rawURL)
	return err == nil
}

// Put stores content for rawURL if no entry exists yet (or always, with force refresh).
// It reports whether anything was written.
func (c *Cache) Put(ctx context.Context, site, rawURL, content string) (bool, error) {
	if strings.TrimSpace(content) == "" {
		return false, ErrEmptyContent
	}
	normalized := c.norm.Normalize(rawURL)
	entry := &Entry{
		Key:       HashKey(normalized),
		URL:       normalized,
		Site:      site,
		Content:   content,
		FetchedAt: c.now().UTC(),
	}
	written, err := c.backend.Store(ctx, entry, c.force)
	if err != nil {
		return false, fmt.Errorf("cache write %s: %w", normalized, err)
	}
	return written, nil
}

// Delete removes the entry for rawURL; deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, rawURL string) error {
	return c.backend.Delete(ctx, c.Key(rawURL))
}

func (c *Cache) Close() error { return c.backend.Close() }
