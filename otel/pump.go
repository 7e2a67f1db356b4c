package otel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/marquee-labs/marquee/bus"
)

// MetricsPump feeds activity events from the bus into a MetricsHandler.
type MetricsPump struct {
	bus     bus.EventBus
	handler *MetricsHandler
	logger  *slog.Logger

	mu   sync.Mutex
	sub  bus.Subscription
	done chan struct{}
}

// NewMetricsPump creates a pump between the given bus and handler.
func NewMetricsPump(eventBus bus.EventBus, handler *MetricsHandler, logger *slog.Logger) (*MetricsPump, error) {
	if eventBus == nil {
		return nil, errors.New("metrics pump bus is nil")
	}
	if handler == nil {
		return nil, errors.New("metrics pump handler is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsPump{bus: eventBus, handler: handler, logger: logger}, nil
}

// Start subscribes to the bus and begins recording metrics.
func (p *MetricsPump) Start(ctx context.Context) error {
	if p == nil {
		return errors.New("metrics pump is nil")
	}

	p.mu.Lock()
	if p.sub != nil {
		p.mu.Unlock()
		return nil
	}
	sub := p.bus.SubscribeAll()
	done := make(chan struct{})
	p.sub = sub
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		for event := range sub.Events() {
			p.handler.Handle(event)
		}
	}()

	_ = ctx
	return nil
}

// Stop unsubscribes and waits for the recording loop to drain.
func (p *MetricsPump) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	sub := p.sub
	done := p.done
	p.sub = nil
	p.done = nil
	p.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Close(); err != nil {
		p.logger.Warn("metrics pump unsubscribe failed", "error", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
