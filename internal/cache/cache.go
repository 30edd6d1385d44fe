// Package cache provides a durable key-value store with TTL expiry, used to
// memoize fetched diffs and computed review artifacts so repeated tool calls
// for the same revision short-circuit expensive network and LLM calls.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed TTL store. It is safe for concurrent use from
// multiple tool invocations; duplicate concurrent writes for the same key
// are last-write-wins, which is acceptable for memoization.
type Cache struct {
	conn   *sql.DB
	logger *slog.Logger
	ttl    time.Duration
}

// Open opens or creates the cache database at path. defaultTTL applies to
// Set calls that pass zero.
func Open(path string, defaultTTL time.Duration, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
	`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	return &Cache{conn: conn, logger: logger, ttl: defaultTTL}, nil
}

// Get retrieves a value. An expired entry behaves identically to a miss
// and is lazily evicted; no stale read is ever returned.
func (c *Cache) Get(key string) (string, bool, error) {
	var value, expiresAt string
	err := c.conn.QueryRow(
		"SELECT value, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}

	expiry, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return "", false, fmt.Errorf("invalid expires_at for key %q: %w", key, err)
	}

	if time.Now().After(expiry) {
		if _, err := c.conn.Exec("DELETE FROM cache_entries WHERE key = ?", key); err != nil {
			c.logger.Warn("evicting expired cache entry failed", "key", key, "error", err)
		}
		return "", false, nil
	}

	return value, true, nil
}

// Set stores a value. ttl of zero uses the cache default; expiry is
// wall-clock time from now.
func (c *Cache) Set(key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	now := time.Now()

	_, err := c.conn.Exec(`
		INSERT OR REPLACE INTO cache_entries (key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		key, value,
		now.Add(ttl).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// GetJSON retrieves a value and unmarshals it into v.
func (c *Cache) GetJSON(key string, v any) (bool, error) {
	raw, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding cached value for %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func (c *Cache) SetJSON(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding value for %q: %w", key, err)
	}
	return c.Set(key, string(data), ttl)
}

// likeEscaper neutralizes SQL LIKE metacharacters so only "*" acts as a
// wildcard. Keys contain arbitrary revision ids (branch names with "_",
// for one) that must match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Invalidate removes entries whose keys match pattern. A trailing or
// embedded "*" matches any suffix/substring; every other character
// matches literally. Returns the number removed.
func (c *Cache) Invalidate(pattern string) (int, error) {
	like := strings.ReplaceAll(likeEscaper.Replace(pattern), "*", "%")
	res, err := c.conn.Exec(`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, like)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
