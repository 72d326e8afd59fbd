// Package stats implements warden's optional statistics collector: counters
// for connections, bytes transferred, blocked hosts, and cache hits, with a
// handful of persistence backends to choose from. It is additive
// instrumentation — nothing in the request-handling path inspects or gates
// on its return values.
//
// Trimmed from the teacher's stats.Collector, which also exposed a dashboard
// query surface (per-domain stats, security events, bandwidth timeseries)
// with no equivalent feature in this proxy; see DESIGN.md.
package stats

import (
	"context"
	"time"
)

// Collector records proxy activity. Implementations must be safe for
// concurrent use: every worker goroutine and tunnel relay task holds its own
// reference to the same Collector.
type Collector interface {
	// StartConnection records the beginning of a client connection.
	StartConnection(ctx context.Context, connectionID int64, remoteAddr string) error

	// RecordDataTransfer records an incremental number of bytes sent and
	// received on a connection since the last report.
	RecordDataTransfer(ctx context.Context, connectionID int64, sentDelta, receivedDelta int64) error

	// EndConnection records the final byte counts and duration of a
	// connection that has just closed.
	EndConnection(ctx context.Context, connectionID int64, totalSent, totalReceived int64, duration time.Duration, closeReason string) error

	// RecordRequest records a forwarded or tunneled request.
	RecordRequest(ctx context.Context, method, host string, cacheHit bool) error

	// RecordBlocked records a request refused because its host was on the blocklist.
	RecordBlocked(ctx context.Context, host string) error

	// HealthCheck reports whether the backing store (if any) is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources (database handles, flush goroutines) held
	// by the collector.
	Close() error
}
