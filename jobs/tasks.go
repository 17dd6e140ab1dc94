package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	jobmetrics "github.com/odyssey-erp/odyssey-tenancy/internal/jobs"
)

// DefaultRetention keeps security events for ninety days.
const DefaultRetention = 90 * 24 * time.Hour

// AuditStore persists and prunes security events. *audit.Store satisfies it.
type AuditStore interface {
	Record(ctx context.Context, ev audit.Event) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PrunePayload carries the retention window for TaskPrune.
type PrunePayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewPruneTask constructs the retention task.
func NewPruneTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	data, err := json.Marshal(PrunePayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(audit.TaskPrune, data, asynq.Queue(audit.QueueAudit)), nil
}

// AuditJobs handles the audit tasks consumed by the worker.
type AuditJobs struct {
	store   AuditStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewAuditJobs constructs the audit task handlers.
func NewAuditJobs(store AuditStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditJobs{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// Handlers lists the task registrations for NewWorker.
func (j *AuditJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: audit.TaskSecurityEvent, Handler: j.HandleSecurityEvent},
		{Type: audit.TaskPrune, Handler: j.HandlePrune},
	}
}

// HandleSecurityEvent persists one queued event. Undecodable payloads are not retried.
func (j *AuditJobs) HandleSecurityEvent(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(audit.TaskSecurityEvent)
	ev, err := audit.DecodeSecurityEvent(t)
	if err != nil {
		j.logger.Warn("drop audit task", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	if err := j.store.Record(ctx, ev); err != nil {
		return tracker.End(fmt.Errorf("jobs: record security event: %w", err))
	}
	return tracker.End(nil)
}

// HandlePrune removes events older than the payload's retention window.
func (j *AuditJobs) HandlePrune(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(audit.TaskPrune)
	var payload PrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	if payload.RetentionHours <= 0 {
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, errors.New("retention must be positive")))
	}
	cutoff := j.now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	removed, err := j.store.Prune(ctx, cutoff)
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: prune security events: %w", err))
	}
	j.metrics.AddPruned(removed)
	j.logger.Info("pruned security events", slog.Int64("removed", removed), slog.Time("before", cutoff))
	return tracker.End(nil)
}
