package calculations

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	db, err := sql.Open("sqlite", t.TempDir()+"/cache.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache, err := NewCache(db, zerolog.Nop())
	require.NoError(t, err)
	return cache
}

type sampleResult struct {
	Score  float64
	Labels []string
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	in := sampleResult{Score: 42.5, Labels: []string{"a", "b"}}
	require.NoError(t, cache.Set("risk:abc", in, time.Minute))

	var out sampleResult
	require.NoError(t, cache.Get("risk:abc", &out))
	assert.Equal(t, in, out)
}

func TestCacheMiss(t *testing.T) {
	cache := newTestCache(t)

	var out sampleResult
	err := cache.Get("absent", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheExpiration(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("short", sampleResult{Score: 1}, -time.Second))

	var out sampleResult
	err := cache.Get("short", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheDeleteByPrefix(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("risk:1", sampleResult{Score: 1}, time.Minute))
	require.NoError(t, cache.Set("risk:2", sampleResult{Score: 2}, time.Minute))
	require.NoError(t, cache.Set("perf:1", sampleResult{Score: 3}, time.Minute))

	require.NoError(t, cache.DeleteByPrefix("risk:"))

	var out sampleResult
	assert.ErrorIs(t, cache.Get("risk:1", &out), ErrCacheMiss)
	assert.ErrorIs(t, cache.Get("risk:2", &out), ErrCacheMiss)
	assert.NoError(t, cache.Get("perf:1", &out))
}

func TestCacheCleanup(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("expired", sampleResult{}, -time.Minute))
	require.NoError(t, cache.Set("fresh", sampleResult{}, time.Minute))

	deleted, err := cache.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var out sampleResult
	assert.NoError(t, cache.Get("fresh", &out))
}
