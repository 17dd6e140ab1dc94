package audit

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

const (
	// QueueAudit is the asynq queue carrying security events.
	QueueAudit = "audit"
	// TaskSecurityEvent persists one event.
	TaskSecurityEvent = "audit:security_event"
	// TaskPrune removes events past retention.
	TaskPrune = "audit:prune"
)

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewSecurityEventTask encodes ev as an asynq task.
func NewSecurityEventTask(ev Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSecurityEvent, data, asynq.Queue(QueueAudit), asynq.MaxRetry(5)), nil
}

// DecodeSecurityEvent parses a TaskSecurityEvent payload.
func DecodeSecurityEvent(t *asynq.Task) (Event, error) {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("audit: decode task: %w", err)
	}
	if ev.Action == "" || ev.ResourceType == "" {
		return Event{}, fmt.Errorf("audit: task missing action or resource type")
	}
	return ev, nil
}

// QueueSink hands events to the worker through asynq.
type QueueSink struct {
	client Enqueuer
}

// NewQueueSink constructs a QueueSink.
func NewQueueSink(client Enqueuer) *QueueSink {
	return &QueueSink{client: client}
}

// Deliver implements Sink.
func (q *QueueSink) Deliver(ctx context.Context, ev Event) error {
	task, err := NewSecurityEventTask(ev)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	return nil
}

var _ Sink = (*QueueSink)(nil)
