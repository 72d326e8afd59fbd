package proxy

import (
	"context"
	"net"
	"time"

	"github.com/wardenproxy/warden/warden-srv/block"
	"github.com/wardenproxy/warden/warden-srv/cache"
	"github.com/wardenproxy/warden/warden-srv/stats"
)

// requestCtx is used for the Collector calls on the per-request hot path,
// which carry no cancellation of their own (the connection's lifetime is
// already bounded by the worker that owns it).
var requestCtx = context.Background()

// dialTimeout bounds how long the forwarder and tunnel wait to open a
// connection to an origin server. The reference design has no explicit
// timeouts (§5); this is the permitted deviation the design notes call out.
const dialTimeout = 10 * time.Second

// Handler holds the dependencies every accepted connection needs: the
// shared blocklist, the shared LRU cache, an optional statistics collector,
// and the dialer used to reach origin servers. One Handler is shared by
// every worker (§3: "CacheIndex and BlockSet are process-wide, shared by all
// workers").
type Handler struct {
	blockSet *block.Set
	patterns *block.PatternMatcher
	cache    *cache.LRU
	stats    stats.Collector
	dial     func(network, address string) (net.Conn, error)
}

// NewHandler constructs a request Handler. dial is the function used to
// open origin connections; pass nil to use net.Dial (the dispatcher
// supplies a resolver-aware dialer when a custom DNS config is enabled).
func NewHandler(blockSet *block.Set, patterns *block.PatternMatcher, c *cache.LRU, collector stats.Collector, dial func(network, address string) (net.Conn, error)) *Handler {
	if collector == nil {
		collector = stats.NewDummyCollector()
	}
	if dial == nil {
		dialer := &net.Dialer{Timeout: dialTimeout}
		dial = dialer.Dial
	}
	return &Handler{blockSet: blockSet, patterns: patterns, cache: c, stats: collector, dial: dial}
}

// isBlocked reports whether host is blocked either by the exact-hostname
// BlockSet or, if configured, the supplemented wildcard PatternMatcher.
func (h *Handler) isBlocked(host string) bool {
	if h.blockSet != nil && h.blockSet.Contains(host) {
		return true
	}
	if h.patterns != nil {
		normalized, ok := block.Normalize(host)
		if ok && h.patterns.MatchesHost(normalized) {
			return true
		}
	}
	return false
}
