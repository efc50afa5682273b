// Package cache persists identification responses per audio segment so
// re-running an analysis does not repeat paid provider calls.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tracklistify/internal/logger"
)

// Cache stores segment identification payloads in SQLite with a TTL. A nil
// Cache misses on every lookup and drops every store.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log *logger.Logger
}

// Open initializes or connects to the segment cache database under dir.
func Open(dir string, ttl time.Duration, log *logger.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, "segments.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS segments (
        key TEXT PRIMARY KEY,
        payload TEXT NOT NULL,
        cached_at INTEGER NOT NULL
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create segments table: %w", err)
	}

	return &Cache{db: db, ttl: ttl, log: log}, nil
}

// Get returns the cached payload for key. Absent, expired, and unreadable
// entries all report a miss; expired rows are purged on the way out.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.db == nil {
		return "", false
	}

	var payload string
	var cachedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, cached_at FROM segments WHERE key = ?`, key,
	).Scan(&payload, &cachedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) && c.log != nil {
			c.log.Debug("cache read for %s failed: %v", key, err)
		}
		return "", false
	}

	if c.ttl > 0 && time.Since(time.Unix(cachedAt, 0)) > c.ttl {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM segments WHERE key = ?`, key); err != nil && c.log != nil {
			c.log.Debug("cache purge for %s failed: %v", key, err)
		}
		return "", false
	}

	return payload, true
}

// Set stores the payload for key, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, key, payload string) error {
	if c == nil || c.db == nil {
		return nil
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO segments (key, payload, cached_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		key, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache write for %s: %w", key, err)
	}
	return nil
}

// Clear removes every cached segment.
func (c *Cache) Clear(ctx context.Context) error {
	if c == nil || c.db == nil {
		return nil
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM segments`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Count returns the number of cached segments.
func (c *Cache) Count(ctx context.Context) (int, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
