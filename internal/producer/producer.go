// Package producer defines the downstream message bus interface (component
// 4.D) plus a couple of concrete producers: a no-op, a fan-out tee, and a
// websocket broadcaster for the operator dashboard.
package producer

import (
	"context"
)

// MessageProducer emits job lifecycle and progress events, in order, over
// a single topic. Delivery may be asynchronous; the engine never awaits
// acknowledgement before advancing the file pipeline.
type MessageProducer interface {
	JobCreated(ctx context.Context, jobID, filename, handler, uploader string) error
	JobTask(ctx context.Context, jobID, taskName string) error
	JobProgress(ctx context.Context, jobID string, progress float64) error
	JobCommitted(ctx context.Context, jobID string, count int) error
	JobStatus(ctx context.Context, jobID string, success bool) error
}

// NoOp discards every message. It is the zero-dependency default when no
// message bus endpoint is configured.
type NoOp struct{}

func (NoOp) JobCreated(context.Context, string, string, string, string) error { return nil }
func (NoOp) JobTask(context.Context, string, string) error                   { return nil }
func (NoOp) JobProgress(context.Context, string, float64) error              { return nil }
func (NoOp) JobCommitted(context.Context, string, int) error                 { return nil }
func (NoOp) JobStatus(context.Context, string, bool) error                   { return nil }

var _ MessageProducer = NoOp{}
