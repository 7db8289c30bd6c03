// Package calculations provides a persistent TTL cache for expensive
// derived results (risk assessments, performance metrics). Values are
// msgpack-encoded blobs keyed by caller-supplied strings.
package calculations

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a SQLite-backed key-value cache with per-entry expiration.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS calc_cache (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calc_cache_expires ON calc_cache(expires_at);
`

// NewCache creates the cache, initializing its schema.
func NewCache(db *sql.DB, log zerolog.Logger) (*Cache, error) {
	if _, err := db.Exec(cacheSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Cache{
		db:  db,
		log: log.With().Str("component", "calc_cache").Logger(),
	}, nil
}

// Set stores a value under key with the given TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = c.db.Exec(`
		INSERT INTO calc_cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, data, expiresAt)
	return err
}

// Get retrieves a value into dest. Returns ErrCacheMiss when the key is
// absent or expired.
func (c *Cache) Get(key string, dest interface{}) error {
	var data []byte
	var expiresAt int64
	err := c.db.QueryRow("SELECT value, expires_at FROM calc_cache WHERE key = ?", key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	if time.Now().Unix() >= expiresAt {
		return ErrCacheMiss
	}

	return msgpack.Unmarshal(data, dest)
}

// Delete removes a cache entry.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM calc_cache WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all entries whose key matches the prefix.
func (c *Cache) DeleteByPrefix(prefix string) error {
	_, err := c.db.Exec("DELETE FROM calc_cache WHERE key LIKE ?", prefix+"%")
	return err
}

// Cleanup removes expired entries and returns how many were deleted.
// Runs on a schedule; see the cleanup job in internal/scheduler.
func (c *Cache) Cleanup() (int64, error) {
	res, err := c.db.Exec("DELETE FROM calc_cache WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		c.log.Debug().Int64("deleted", deleted).Msg("Removed expired cache entries")
	}
	return deleted, nil
}
