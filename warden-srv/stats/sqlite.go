package stats

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wardenproxy/warden/warden-srv/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS connections (
	id INTEGER PRIMARY KEY,
	remote_addr TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME,
	bytes_sent INTEGER NOT NULL DEFAULT 0,
	bytes_received INTEGER NOT NULL DEFAULT 0,
	close_reason TEXT
);
CREATE TABLE IF NOT EXISTS requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	method TEXT NOT NULL,
	host TEXT NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	blocked BOOLEAN NOT NULL DEFAULT 0,
	at DATETIME NOT NULL
);
`

// SQLiteCollector persists connection and request counters to a local SQLite
// file, grounded on the teacher's sqlite-backed stats collector (same
// driver, same schema-on-init pattern).
type SQLiteCollector struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteCollector opens (creating if necessary) a SQLite database at dsn
// and ensures its schema exists.
func NewSQLiteCollector(dsn string) (*SQLiteCollector, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite stats db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite stats schema: %w", err)
	}
	return &SQLiteCollector{db: db}, nil
}

func (c *SQLiteCollector) StartConnection(_ context.Context, connectionID int64, remoteAddr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO connections (id, remote_addr, started_at) VALUES (?, ?, ?)`,
		connectionID, remoteAddr, time.Now(),
	)
	return err
}

func (c *SQLiteCollector) RecordDataTransfer(_ context.Context, connectionID int64, sentDelta, receivedDelta int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`UPDATE connections SET bytes_sent = bytes_sent + ?, bytes_received = bytes_received + ? WHERE id = ?`,
		sentDelta, receivedDelta, connectionID,
	)
	return err
}

func (c *SQLiteCollector) EndConnection(_ context.Context, connectionID int64, totalSent, totalReceived int64, _ time.Duration, closeReason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`UPDATE connections SET bytes_sent = ?, bytes_received = ?, ended_at = ?, close_reason = ? WHERE id = ?`,
		totalSent, totalReceived, time.Now(), closeReason, connectionID,
	)
	return err
}

func (c *SQLiteCollector) RecordRequest(_ context.Context, method, host string, cacheHit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO requests (method, host, cache_hit, blocked, at) VALUES (?, ?, ?, 0, ?)`,
		method, host, cacheHit, time.Now(),
	)
	return err
}

func (c *SQLiteCollector) RecordBlocked(_ context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(
		`INSERT INTO requests (method, host, cache_hit, blocked, at) VALUES ('', ?, 0, 1, ?)`,
		host, time.Now(),
	)
	return err
}

func (c *SQLiteCollector) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteCollector) Close() error {
	logger.Debug("closing sqlite stats collector")
	return c.db.Close()
}
