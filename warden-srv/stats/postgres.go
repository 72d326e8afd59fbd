package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/wardenproxy/warden/warden-srv/logger"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS connections (
	id BIGINT PRIMARY KEY,
	remote_addr TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ,
	bytes_sent BIGINT NOT NULL DEFAULT 0,
	bytes_received BIGINT NOT NULL DEFAULT 0,
	close_reason TEXT
);
CREATE TABLE IF NOT EXISTS requests (
	id BIGSERIAL PRIMARY KEY,
	method TEXT NOT NULL,
	host TEXT NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	blocked BOOLEAN NOT NULL DEFAULT FALSE,
	at TIMESTAMPTZ NOT NULL
);
`

// PostgresCollector persists connection and request counters to Postgres,
// the same schema-on-init shape as SQLiteCollector, for deployments that
// already run a shared Postgres instance for other services.
type PostgresCollector struct {
	db *sql.DB
}

// NewPostgresCollector opens a connection pool for dsn and ensures the schema exists.
func NewPostgresCollector(dsn string) (*PostgresCollector, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres stats db: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init postgres stats schema: %w", err)
	}
	return &PostgresCollector{db: db}, nil
}

func (c *PostgresCollector) StartConnection(ctx context.Context, connectionID int64, remoteAddr string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO connections (id, remote_addr, started_at) VALUES ($1, $2, $3)`,
		connectionID, remoteAddr, time.Now(),
	)
	return err
}

func (c *PostgresCollector) RecordDataTransfer(ctx context.Context, connectionID int64, sentDelta, receivedDelta int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE connections SET bytes_sent = bytes_sent + $1, bytes_received = bytes_received + $2 WHERE id = $3`,
		sentDelta, receivedDelta, connectionID,
	)
	return err
}

func (c *PostgresCollector) EndConnection(ctx context.Context, connectionID int64, totalSent, totalReceived int64, _ time.Duration, closeReason string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE connections SET bytes_sent = $1, bytes_received = $2, ended_at = $3, close_reason = $4 WHERE id = $5`,
		totalSent, totalReceived, time.Now(), closeReason, connectionID,
	)
	return err
}

func (c *PostgresCollector) RecordRequest(ctx context.Context, method, host string, cacheHit bool) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO requests (method, host, cache_hit, blocked, at) VALUES ($1, $2, $3, FALSE, $4)`,
		method, host, cacheHit, time.Now(),
	)
	return err
}

func (c *PostgresCollector) RecordBlocked(ctx context.Context, host string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO requests (method, host, cache_hit, blocked, at) VALUES ('', $1, FALSE, TRUE, $2)`,
		host, time.Now(),
	)
	return err
}

func (c *PostgresCollector) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *PostgresCollector) Close() error {
	logger.Debug("closing postgres stats collector")
	return c.db.Close()
}
