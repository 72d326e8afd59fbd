package stats

import (
	"context"
	"time"
)

// DummyCollector implements Collector as a complete no-op. It is the default
// backend: a proxy that never configures statistics pays no overhead for
// them beyond an interface call.
type DummyCollector struct{}

// NewDummyCollector returns a Collector that discards everything it's told.
func NewDummyCollector() *DummyCollector {
	return &DummyCollector{}
}

func (d *DummyCollector) StartConnection(_ context.Context, _ int64, _ string) error {
	return nil
}

func (d *DummyCollector) RecordDataTransfer(_ context.Context, _ int64, _, _ int64) error {
	return nil
}

func (d *DummyCollector) EndConnection(_ context.Context, _ int64, _, _ int64, _ time.Duration, _ string) error {
	return nil
}

func (d *DummyCollector) RecordRequest(_ context.Context, _, _ string, _ bool) error {
	return nil
}

func (d *DummyCollector) RecordBlocked(_ context.Context, _ string) error {
	return nil
}

func (d *DummyCollector) HealthCheck(_ context.Context) error {
	return nil
}

func (d *DummyCollector) Close() error {
	return nil
}
