// Package tasksink defines the task-sink interface (component 4.E): the
// external collaborator that delivers raw notification payloads to the
// engine's dispatch callback, one at a time.
package tasksink

import "context"

// Callback receives a single raw notification payload. The sink guarantees
// it is invoked sequentially, never concurrently with itself.
type Callback func(ctx context.Context, raw []byte)

// TaskSink begins delivering raw notification payloads to callback when
// Start is called, until ctx is cancelled.
type TaskSink interface {
	Start(ctx context.Context, callback Callback) error
}
