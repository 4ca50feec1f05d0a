package tasksink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/castiron-io/etlworker/internal/logging"
)

// FSNotifySink watches a directory tree on the local filesystem and
// translates create/remove events into the same S3-style notification
// payload shape a real bucket would deliver. It stands in for the real
// managed notification subscription during local development and testing
// (that subscription runtime is an external collaborator per spec.md).
type FSNotifySink struct {
	root      string
	namespace string
	watcher   *fsnotify.Watcher
	log       *logging.Logger
}

// NewFSNotifySink creates a sink watching root recursively, reporting
// events under the given namespace (bucket name).
func NewFSNotifySink(root, namespace string, log *logging.Logger) (*FSNotifySink, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addRecursive(watcher, root); err != nil {
		watcher.Close()
		return nil, err
	}

	if log == nil {
		log = logging.New(nil)
	}

	return &FSNotifySink{root: root, namespace: namespace, watcher: watcher, log: log.WithComponent("tasksink.fsnotify")}, nil
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}

// Start begins translating filesystem events into notification callbacks
// until ctx is cancelled.
func (s *FSNotifySink) Start(ctx context.Context, callback Callback) error {
	go func() {
		defer s.watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-s.watcher.Events:
				if !ok {
					return
				}
				s.handleEvent(ctx, event, callback)
			case err, ok := <-s.watcher.Errors:
				if !ok {
					return
				}
				s.log.Error("filesystem watch error", map[string]interface{}{"error": err.Error()})
			}
		}
	}()
	return nil
}

func (s *FSNotifySink) handleEvent(ctx context.Context, event fsnotify.Event, callback Callback) {
	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	var eventName string
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			s.watcher.Add(event.Name)
			return
		}
		eventName = "s3:ObjectCreated:Put"
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventName = "s3:ObjectCreated:Put"
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		eventName = "s3:ObjectRemoved:Delete"
	default:
		return
	}

	payload, err := json.Marshal(struct {
		Key       string `json:"Key"`
		EventName string `json:"EventName"`
	}{
		Key:       s.namespace + "/" + strings.TrimPrefix(rel, "/"),
		EventName: eventName,
	})
	if err != nil {
		return
	}

	callback(ctx, payload)
}

var _ TaskSink = (*FSNotifySink)(nil)
