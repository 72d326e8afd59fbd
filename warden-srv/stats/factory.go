package stats

import (
	"fmt"

	"github.com/wardenproxy/warden/warden-srv/config"
)

// NewCollector builds the Collector selected by cfg.Backend, mirroring the
// teacher's CollectorFactory.CreateCollector switch — minus the buffered
// wrapper, which existed to batch the teacher's much heavier dashboard
// writes; warden's counters are cheap enough to write inline.
func NewCollector(cfg config.StatisticsConfig) (Collector, error) {
	switch cfg.Backend {
	case "", "dummy":
		return NewDummyCollector(), nil
	case "sqlite":
		return NewSQLiteCollector(cfg.DSN)
	case "postgres":
		return NewPostgresCollector(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown statistics backend: %q", cfg.Backend)
	}
}
