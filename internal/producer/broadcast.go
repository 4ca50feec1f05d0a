package producer

import (
	"context"
	"sync"
)

// Message is the JSON shape emitted onto the progress topic, matching
// spec.md's outbound message schema exactly.
type Message struct {
	Type       string   `json:"type"`
	JobID      string   `json:"job_id"`
	Filename   string   `json:"filename,omitempty"`
	Handler    string   `json:"handler,omitempty"`
	Uploader   string   `json:"uploader,omitempty"`
	Task       string   `json:"task,omitempty"`
	Progress   *float64 `json:"progress,omitempty"`
	Committed  *int     `json:"committed,omitempty"`
	Status     string   `json:"status,omitempty"`
}

// Sink receives every Message emitted by a Tee, used by the dashboard's
// WebSocketSink to observe the stream without the engine knowing it
// exists.
type Sink interface {
	Publish(msg Message)
}

// Tee is a MessageProducer that fans every call out to a wrapped producer
// (the real message bus) and to zero or more Sinks, grounded on
// cmd/noisefs-webui's non-blocking per-client broadcast pattern. Each
// sink's Publish is called synchronously, so a sink must not block;
// WebSocketSink's Publish never does.
type Tee struct {
	wrapped MessageProducer
	mu      sync.RWMutex
	sinks   []Sink
}

// NewTee wraps producer, defaulting to NoOp if nil.
func NewTee(wrapped MessageProducer) *Tee {
	if wrapped == nil {
		wrapped = NoOp{}
	}
	return &Tee{wrapped: wrapped}
}

// AddSink registers a sink to receive every future message.
func (t *Tee) AddSink(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

func (t *Tee) publish(msg Message) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.sinks {
		s.Publish(msg)
	}
}

func (t *Tee) JobCreated(ctx context.Context, jobID, filename, handler, uploader string) error {
	t.publish(Message{Type: "job_created", JobID: jobID, Filename: filename, Handler: handler, Uploader: uploader})
	return t.wrapped.JobCreated(ctx, jobID, filename, handler, uploader)
}

func (t *Tee) JobTask(ctx context.Context, jobID, taskName string) error {
	t.publish(Message{Type: "job_update", JobID: jobID, Task: taskName})
	return t.wrapped.JobTask(ctx, jobID, taskName)
}

func (t *Tee) JobProgress(ctx context.Context, jobID string, progress float64) error {
	p := progress
	t.publish(Message{Type: "job_update", JobID: jobID, Progress: &p})
	return t.wrapped.JobProgress(ctx, jobID, progress)
}

func (t *Tee) JobCommitted(ctx context.Context, jobID string, count int) error {
	c := count
	t.publish(Message{Type: "job_update", JobID: jobID, Committed: &c})
	return t.wrapped.JobCommitted(ctx, jobID, count)
}

func (t *Tee) JobStatus(ctx context.Context, jobID string, success bool) error {
	status := "failure"
	if success {
		status = "success"
	}
	t.publish(Message{Type: "job_update", JobID: jobID, Status: status})
	return t.wrapped.JobStatus(ctx, jobID, success)
}

var _ MessageProducer = (*Tee)(nil)
