package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
)

// AsyncEmitter buffers events in memory and hands them to a Sink from a single goroutine.
// When the buffer is full the event is dropped and counted.
type AsyncEmitter struct {
	events  chan Event
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
	timeout time.Duration
}

// NewAsyncEmitter constructs an emitter with the given buffer size.
func NewAsyncEmitter(sink Sink, buffer int, logger *slog.Logger, metrics *observability.Metrics) *AsyncEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncEmitter{
		events:  make(chan Event, buffer),
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		timeout: 5 * time.Second,
	}
}

// LogSecurityEvent implements Emitter.
func (e *AsyncEmitter) LogSecurityEvent(subjectID, action, resourceType string, details map[string]any) {
	ev := Event{
		SubjectID:    subjectID,
		Action:       action,
		ResourceType: resourceType,
		Details:      copyDetails(details),
		At:           e.now().UTC(),
	}
	select {
	case e.events <- ev:
		e.metrics.AuditEvent("queued")
	default:
		e.metrics.AuditEvent("dropped")
		e.logger.Warn("audit buffer full, event dropped",
			slog.String("action", action),
			slog.String("subject_id", subjectID))
	}
}

// Run delivers buffered events until ctx is cancelled, then drains what is left.
func (e *AsyncEmitter) Run(ctx context.Context) {
	for {
		select {
		case ev := <-e.events:
			e.deliver(ctx, ev)
		case <-ctx.Done():
			e.drain()
			return
		}
	}
}

func (e *AsyncEmitter) drain() {
	ctx := context.Background()
	for {
		select {
		case ev := <-e.events:
			e.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (e *AsyncEmitter) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	if err := e.sink.Deliver(ctx, ev); err != nil {
		e.metrics.AuditEvent("failed")
		e.logger.Error("deliver audit event",
			slog.String("action", ev.Action),
			slog.String("subject_id", ev.SubjectID),
			slog.Any("error", err))
		return
	}
	e.metrics.AuditEvent("delivered")
}

func copyDetails(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Emitter = (*AsyncEmitter)(nil)
