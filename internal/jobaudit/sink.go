package jobaudit

import (
	"context"
	"encoding/json"

	"github.com/castiron-io/etlworker/internal/logging"
	"github.com/castiron-io/etlworker/internal/producer"
)

// Sink wraps a real MessageProducer and durably persists every call to
// Postgres, best-effort: a write failure is logged and never blocks or
// fails the file pipeline (SPEC_FULL.md §7).
type Sink struct {
	db      *DB
	wrapped producer.MessageProducer
	log     *logging.Logger
}

// NewSink wraps producer with durable persistence via db.
func NewSink(db *DB, wrapped producer.MessageProducer, log *logging.Logger) *Sink {
	if log == nil {
		log = logging.New(nil)
	}
	return &Sink{db: db, wrapped: wrapped, log: log.WithComponent("jobaudit")}
}

func (s *Sink) record(ctx context.Context, jobID, kind string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal job event payload", map[string]interface{}{"job_id": jobID, "kind": kind, "error": err.Error()})
		return
	}

	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO job_events (job_id, kind, payload) VALUES ($1, $2, $3)`,
		jobID, kind, data)
	if err != nil {
		s.log.Warn("failed to persist job event", map[string]interface{}{"job_id": jobID, "kind": kind, "error": err.Error()})
	}
}

func (s *Sink) JobCreated(ctx context.Context, jobID, filename, handler, uploader string) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO jobs (job_id, data_key, config_key, handler, uploader, status)
		 VALUES ($1, $2, $3, $4, $5, 'running')
		 ON CONFLICT (job_id) DO NOTHING`,
		jobID, filename, handler, handler, uploader)
	if err != nil {
		s.log.Warn("failed to persist job_created", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}
	s.record(ctx, jobID, "job_created", map[string]string{"filename": filename, "handler": handler, "uploader": uploader})
	return s.wrapped.JobCreated(ctx, jobID, filename, handler, uploader)
}

func (s *Sink) JobTask(ctx context.Context, jobID, taskName string) error {
	s.record(ctx, jobID, "job_task", map[string]string{"task": taskName})
	return s.wrapped.JobTask(ctx, jobID, taskName)
}

func (s *Sink) JobProgress(ctx context.Context, jobID string, progress float64) error {
	s.record(ctx, jobID, "job_progress", map[string]float64{"progress": progress})
	return s.wrapped.JobProgress(ctx, jobID, progress)
}

func (s *Sink) JobCommitted(ctx context.Context, jobID string, count int) error {
	s.record(ctx, jobID, "job_committed", map[string]int{"committed": count})
	return s.wrapped.JobCommitted(ctx, jobID, count)
}

func (s *Sink) JobStatus(ctx context.Context, jobID string, success bool) error {
	status := "failure"
	if success {
		status = "success"
	}

	_, err := s.db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = NOW() WHERE job_id = $2`,
		status, jobID)
	if err != nil {
		s.log.Warn("failed to persist job status", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}

	s.record(ctx, jobID, "job_status", map[string]string{"status": status})
	return s.wrapped.JobStatus(ctx, jobID, success)
}

var _ producer.MessageProducer = (*Sink)(nil)
