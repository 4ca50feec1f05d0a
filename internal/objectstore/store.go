// Package objectstore defines the object-store interface the engine
// consumes, plus in-memory and local-filesystem reference implementations.
// The concrete S3-compatible driver is an external collaborator; only its
// contract is specified here.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/castiron-io/etlworker/internal/objectid"
)

// EventType distinguishes a Put from a Delete notification.
type EventType int

const (
	Put EventType = iota
	Delete
)

func (e EventType) String() string {
	if e == Put {
		return "Put"
	}
	return "Delete"
}

// ObjectEvent is produced by the driver from a raw notification payload.
type ObjectEvent struct {
	ObjectID objectid.ID
	Type     EventType
}

// ErrCode enumerates stable error classifications returned by Store
// operations, mirroring how transport errors are told apart from
// not-found conditions.
type ErrCode string

const (
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrTransport        ErrCode = "TRANSPORT_ERROR"
	ErrInvalidPayload   ErrCode = "INVALID_PAYLOAD"
)

// StoreError wraps a Store operation failure with a stable code.
type StoreError struct {
	Code    ErrCode
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StoreError) Unwrap() error { return e.Cause }

func newStoreError(code ErrCode, message string, cause error) *StoreError {
	return &StoreError{Code: code, Message: message, Cause: cause}
}

// Store is the object-store interface the engine consumes (component 4.C).
// All operations may fail with a *StoreError, which the engine treats as
// non-fatal to the worker but fatal to the current file pipeline.
type Store interface {
	List(ctx context.Context, namespace, prefix string, recursive bool) ([]objectid.ID, error)
	Read(ctx context.Context, obj objectid.ID) ([]byte, error)
	Write(ctx context.Context, obj objectid.ID, data []byte) error
	Download(ctx context.Context, obj objectid.ID, localPath string) error
	Upload(ctx context.Context, localPath string, obj objectid.ID) error
	Move(ctx context.Context, src, dst objectid.ID) error
	Delete(ctx context.Context, obj objectid.ID) error
	Metadata(ctx context.Context, obj objectid.ID) (map[string]string, error)
	EnsureDirectory(ctx context.Context, dir objectid.ID) error
	ParseNotification(raw []byte) (ObjectEvent, error)
}

// Notification is the minimal shape of a raw S3-style notification payload.
type Notification struct {
	Key       string `json:"Key"`
	EventName string `json:"EventName"`
}

// parseNotification is the shared ParseNotification logic for the
// reference Store implementations in this package.
func parseNotification(raw []byte) (ObjectEvent, error) {
	var n Notification
	if err := jsonUnmarshal(raw, &n); err != nil {
		return ObjectEvent{}, newStoreError(ErrInvalidPayload, "malformed notification payload", err)
	}
	parts := splitBucketKey(n.Key)
	if parts == nil {
		return ObjectEvent{}, newStoreError(ErrInvalidPayload, fmt.Sprintf("notification key missing bucket separator: %q", n.Key), nil)
	}

	var eventType EventType
	switch {
	case containsFold(n.EventName, "Removed"):
		eventType = Delete
	case containsFold(n.EventName, "Created"):
		eventType = Put
	default:
		return ObjectEvent{}, newStoreError(ErrInvalidPayload, fmt.Sprintf("unrecognized event name: %q", n.EventName), nil)
	}

	return ObjectEvent{
		ObjectID: objectid.New(parts[0], parts[1]),
		Type:     eventType,
	}, nil
}

// sentinelName is the zero-byte placeholder written by EnsureDirectory.
const sentinelName = ".keep"

func sentinelFor(dir objectid.ID) objectid.ID {
	return dir.Join(sentinelName)
}

// NewConnectionError constructs a transport-classified StoreError, for
// implementations that wrap a real network client.
func NewConnectionError(cause error) *StoreError {
	return newStoreError(ErrTransport, "object store transport error", cause)
}

func fmtNotFound(obj objectid.ID) *StoreError {
	return newStoreError(ErrNotFound, fmt.Sprintf("object not found: %s", obj), nil)
}

// now exists so tests can keep timestamps deterministic if ever needed;
// kept as a trivial wrapper rather than threading a clock through every
// implementation.
func now() time.Time { return time.Now() }

func jsonUnmarshal(raw []byte, v *Notification) error {
	return json.Unmarshal(raw, v)
}

func splitBucketKey(k string) []string {
	parts := strings.SplitN(k, "/", 2)
	if len(parts) != 2 {
		return nil
	}
	return parts
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
