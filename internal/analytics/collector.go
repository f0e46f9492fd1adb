// Package analytics tracks topic-query events: the inference service
// publishes them to Kafka fire-and-forget, the analytics service consumes
// and aggregates them.
package analytics

import (
	"context"
	"log/slog"

	"github.com/wikitopics/topic-platform/pkg/kafka"
	"github.com/wikitopics/topic-platform/pkg/resilience"
)

// Collector buffers events in memory and publishes them to Kafka from a
// background goroutine. Track never blocks the request path; when the
// buffer is full the event is dropped. A circuit breaker sheds events
// instead of hammering an unreachable broker.
type Collector struct {
	producer *kafka.Producer
	breaker  *resilience.CircuitBreaker
	eventCh  chan interface{}
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker("analytics-publish", resilience.CircuitBreakerConfig{}),
		eventCh:  make(chan interface{}, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.publish(ctx, event); err != nil {
					c.logger.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event interface{}) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			if err := c.publish(context.Background(), event); err != nil {
				c.logger.Error("failed to publish remaining event", "error", err)
			}
		default:
			return
		}
	}
}

func (c *Collector) publish(ctx context.Context, event interface{}) error {
	return c.breaker.Execute(func() error {
		return c.producer.Publish(ctx, kafka.Event{
			Key:   "analytics",
			Value: event,
		})
	})
}
