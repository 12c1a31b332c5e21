package store

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tasoulis/riskbench/internal/database"
)

// CacheSchema creates the result cache table.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS result_cache (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_result_cache_expiry ON result_cache(expires_at);
`

// DefaultResultTTL is how long a computed risk artifact stays reusable.
const DefaultResultTTL = 24 * time.Hour

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = sql.ErrNoRows

// ResultCache stores msgpack-encoded computation results keyed by a
// deterministic hash of inputs, with expiry.
type ResultCache struct {
	db *database.DB
}

// NewResultCache wraps an opened cache database.
func NewResultCache(db *database.DB) *ResultCache {
	return &ResultCache{db: db}
}

// Migrate applies the cache schema.
func (c *ResultCache) Migrate() error {
	return c.db.Migrate(CacheSchema)
}

// Key builds a deterministic cache key: a namespace plus the SHA-256 of
// the sorted asset list and any extra parameters. Sorting makes the key
// independent of caller ordering.
func Key(namespace string, assets []string, params ...string) string {
	sorted := append([]string(nil), assets...)
	sort.Strings(sorted)

	combined := strings.Join(sorted, "|")
	if len(params) > 0 {
		combined += "::" + strings.Join(params, "|")
	}
	h := sha256.Sum256([]byte(combined))
	return fmt.Sprintf("%s:%x", namespace, h[:8])
}

// Set stores value under key with the given TTL.
func (c *ResultCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = c.db.Exec(`
		INSERT INTO result_cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, data, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

// Get loads key into dest. Returns ErrCacheMiss when absent or expired.
func (c *ResultCache) Get(key string, dest interface{}) error {
	var data []byte
	var expiresAt int64
	err := c.db.QueryRow(
		"SELECT value, expires_at FROM result_cache WHERE key = ?", key,
	).Scan(&data, &expiresAt)
	if err != nil {
		return err
	}

	if time.Now().Unix() >= expiresAt {
		return ErrCacheMiss
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes one entry.
func (c *ResultCache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM result_cache WHERE key = ?", key)
	return err
}

// Prune removes all expired entries and reports how many were dropped.
func (c *ResultCache) Prune() (int64, error) {
	res, err := c.db.Exec("DELETE FROM result_cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return res.RowsAffected()
}
