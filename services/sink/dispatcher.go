package sink

import (
	"context"

	"github.com/halcyonsec/camrelay/internal/observability"
	"go.uber.org/zap"
)

// Dispatcher decouples ingest from sink delivery with a bounded queue.
// Enqueue never blocks: when the queue is full the event is dropped and
// counted, keeping sink backpressure out of the ingest hot path. The
// buffer still retains every admitted frame, so a dropped hand-off is
// recoverable through extraction.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	logger  *zap.Logger
	metrics *observability.Metrics
	done    chan struct{}
}

// NewDispatcher creates a dispatcher with the given queue capacity
func NewDispatcher(sink Sink, queueSize int, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, queueSize),
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Enqueue offers an event to the delivery queue, reporting whether it
// was accepted.
func (d *Dispatcher) Enqueue(event Event) bool {
	select {
	case d.queue <- event:
		return true
	default:
		d.metrics.SinkDropped.Inc()
		d.logger.Warn("sink queue full, dropping frame",
			zap.String("tenant_id", event.TenantID.String()),
			zap.Uint64("sequence", event.Frame.Sequence))
		return false
	}
}

// Run delivers queued events until the context is cancelled, then
// drains what is already queued before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("sink dispatcher started", zap.Int("queue_capacity", cap(d.queue)))

	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-ctx.Done():
			d.drain()
			d.logger.Info("sink dispatcher stopped")
			return
		}
	}
}

// QueueDepth reports current queue occupancy and capacity.
func (d *Dispatcher) QueueDepth() (used, capacity int) {
	return len(d.queue), cap(d.queue)
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	if err := d.sink.Push(pushCtx, event); err != nil {
		d.metrics.SinkFailed.Inc()
		d.logger.Warn("sink delivery failed",
			zap.String("tenant_id", event.TenantID.String()),
			zap.Uint64("sequence", event.Frame.Sequence),
			zap.Error(err))
		return
	}
	d.metrics.SinkDelivered.Inc()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}
