package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jobharvest/internal/config"
)

func cacheConfig(backend, dir string) config.CacheConfig {
	return config.CacheConfig{Backend: backend, Dir: dir}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trailing slash", in: "https://acme.example/jobs/123/", want: "https://acme.example/jobs/123"},
		{name: "host case and fragment", in: "HTTPS://Acme.Example/Jobs#apply", want: "https://acme.example/Jobs"},
		{name: "default port", in: "https://acme.example:443/jobs", want: "https://acme.example/jobs"},
		{name: "custom port kept", in: "http://acme.example:8080/jobs", want: "http://acme.example:8080/jobs"},
		{name: "tracking params", in: "https://acme.example/jobs?id=7&utm_source=x&utm_medium=y&gclid=abc", want: "https://acme.example/jobs?id=7"},
		{name: "query order", in: "https://acme.example/jobs?b=2&a=1", want: "https://acme.example/jobs?a=1&b=2"},
		{name: "only tracking", in: "https://acme.example/?fbclid=1", want: "https://acme.example/"},
		{name: "bare host", in: "https://acme.example", want: "https://acme.example/"},
		{name: "not a url", in: "  job-42 ", want: "job-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestNormalize_IdempotentOnAwkwardInput(t *testing.T) {
	inputs := []string{
		"https://acme.example/a%20b/?q=x+y&utm_campaign=z#frag",
		"https://acme.example//double//slash//",
		"https://[::1]:8443/jobs/",
		"https://acme.example/jobs?",
		"http://acme.example:80",
		"mailto:jobs@acme.example",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestNormalizer_ExtraParams(t *testing.T) {
	n := NewNormalizer("sessionid", "src_*")
	assert.Equal(t, "https://acme.example/jobs?id=1", n.Normalize("https://acme.example/jobs?id=1&sessionid=9&src_page=home"))
}

func TestKey_CollapsesEquivalentURLs(t *testing.T) {
	c := New(newMemBackend())
	assert.Equal(t, c.Key("https://acme.example/jobs/1"), c.Key("https://ACME.example/jobs/1/?utm_source=mail"))
	assert.NotEqual(t, c.Key("https://acme.example/jobs/1"), c.Key("https://acme.example/jobs/2"))
	assert.Len(t, c.Key("https://acme.example/jobs/1"), 64)
}

// backendCases runs the same contract against each local backend.
func backendCases(t *testing.T) map[string]Backend {
	dir := t.TempDir()
	files, err := NewFileBackend(filepath.Join(dir, "files"))
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Backend{
		"file":   files,
		"sqlite": db,
		"redis":  NewRedisBackendWithClient(newFakeRedis(), "test:"),
		"memory": newMemBackend(),
	}
}

func TestCache_WriteOnceWins(t *testing.T) {
	for name, backend := range backendCases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(backend)

			written, err := c.Put(ctx, "acme", "https://acme.example/jobs/1", "content A")
			require.NoError(t, err)
			assert.True(t, written)

			written, err = c.Put(ctx, "acme", "https://acme.example/jobs/1/", "content B")
			require.NoError(t, err)
			assert.False(t, written)

			e, err := c.Get(ctx, "https://acme.example/jobs/1")
			require.NoError(t, err)
			assert.Equal(t, "content A", e.Content)
			assert.Equal(t, "https://acme.example/jobs/1", e.URL)
			assert.Equal(t, "acme", e.Site)
		})
	}
}

func TestCache_ForceRefreshOverwrites(t *testing.T) {
	for name, backend := range backendCases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := New(backend).Put(ctx, "acme", "https://acme.example/jobs/1", "old")
			require.NoError(t, err)

			c := New(backend, WithForceRefresh(true))
			written, err := c.Put(ctx, "acme", "https://acme.example/jobs/1", "new")
			require.NoError(t, err)
			assert.True(t, written)

			e, err := c.Get(ctx, "https://acme.example/jobs/1")
			require.NoError(t, err)
			assert.Equal(t, "new", e.Content)
		})
	}
}

func TestCache_MissAndDelete(t *testing.T) {
	for name, backend := range backendCases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(backend)

			_, err := c.Get(ctx, "https://acme.example/nope")
			assert.ErrorIs(t, err, ErrMiss)
			assert.False(t, c.Has(ctx, "https://acme.example/nope"))

			_, err = c.Put(ctx, "acme", "https://acme.example/jobs/9", "x")
			require.NoError(t, err)
			assert.True(t, c.Has(ctx, "https://acme.example/jobs/9"))

			require.NoError(t, c.Delete(ctx, "https://acme.example/jobs/9"))
			assert.False(t, c.Has(ctx, "https://acme.example/jobs/9"))
			assert.NoError(t, c.Delete(ctx, "https://acme.example/jobs/9"))
		})
	}
}

func TestCache_RejectsEmptyContent(t *testing.T) {
	c := New(newMemBackend())
	_, err := c.Put(context.Background(), "acme", "https://acme.example/jobs/1", "  \n ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestCache_TimestampFromClock(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(newMemBackend(), WithClock(func() time.Time { return ts }))
	_, err := c.Put(context.Background(), "acme", "https://acme.example/jobs/1", "x")
	require.NoError(t, err)

	e, err := c.Get(context.Background(), "https://acme.example/jobs/1")
	require.NoError(t, err)
	assert.True(t, ts.Equal(e.FetchedAt))
}

func TestFileBackend_OneFilePerKey(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	c := New(backend)

	_, err = c.Put(context.Background(), "acme", "https://acme.example/jobs/1", "hello")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, c.Key("https://acme.example/jobs/1")+".json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileBackend_ConcurrentPutsKeepFirstWriter(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	c := New(backend)

	var wg sync.WaitGroup
	var mu sync.Mutex
	writes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.Put(context.Background(), "acme", "https://acme.example/jobs/1", "same")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				writes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, writes)
}

func TestOpen_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "c")
	c, err := Open(context.Background(), cacheConfig("file", dir))
	require.NoError(t, err)
	defer c.Close()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), cacheConfig("mongo", t.TempDir()))
	assert.Error(t, err)
}

// integration: requires a reachable postgres
func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("CACHE_TEST_DSN")
	if testing.Short() || dsn == "" {
		t.Skip("set CACHE_TEST_DSN to run postgres integration test")
	}
	ctx := context.Background()
	pg, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pg.Close()

	c := New(pg)
	url := "https://acme.example/pg/" + time.Now().Format("150405.000000000")
	written, err := c.Put(ctx, "acme", url, "A")
	require.NoError(t, err)
	assert.True(t, written)
	written, err = c.Put(ctx, "acme", url, "B")
	require.NoError(t, err)
	assert.False(t, written)
	require.NoError(t, c.Delete(ctx, url))
}

// memBackend is a map-backed Backend.
type memBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newMemBackend() *memBackend { return &memBackend{entries: map[string]Entry{}} }

func (m *memBackend) Load(ctx context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	return &e, nil
}

func (m *memBackend) Store(ctx context.Context, e *Entry, overwrite bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; ok && !overwrite {
		return false, nil
	}
	m.entries[e.Key] = *e
	return true, nil
}

func (m *memBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memBackend) Close() error { return nil }

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error { return nil }
