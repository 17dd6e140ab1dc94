package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists security events in the directory database.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Deliver implements Sink.
func (s *Store) Deliver(ctx context.Context, ev Event) error {
	return s.Record(ctx, ev)
}

// Record persists the event.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if s == nil || s.pool == nil {
		return errors.New("audit store not initialised")
	}
	if ev.Action == "" || ev.ResourceType == "" {
		return errors.New("audit event requires action and resource type")
	}
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	var at *time.Time
	if !ev.At.IsZero() {
		at = &ev.At
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO security_audit_logs (subject_id, action, resource_type, details, occurred_at)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`, ev.SubjectID, ev.Action, ev.ResourceType, details, at)
	return err
}

// Prune deletes events older than the cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM security_audit_logs WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const timelineSQL = `SELECT subject_id, action, resource_type, details, occurred_at
FROM security_audit_logs
WHERE occurred_at >= $1 AND occurred_at < $2
  AND ($3::text IS NULL OR subject_id = $3)
  AND ($4::text IS NULL OR action = $4)
ORDER BY occurred_at DESC
OFFSET $5 LIMIT $6`

// Window implements Repository.
func (s *Store) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, timelineSQL,
		filters.From, filters.To, optional(filters.Subject), optional(filters.Action), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var (
			ev      Event
			details []byte
		)
		if err := rows.Scan(&ev.SubjectID, &ev.Action, &ev.ResourceType, &details, &ev.At); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &ev.Details); err != nil {
				return nil, fmt.Errorf("audit: decode details: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

var (
	_ Sink       = (*Store)(nil)
	_ Repository = (*Store)(nil)
)
