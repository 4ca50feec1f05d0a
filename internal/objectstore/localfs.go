package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/castiron-io/etlworker/internal/objectid"
)

// LocalFS is a Store backed by a directory on the host filesystem, one
// subdirectory per namespace (bucket). It exists for local development and
// integration testing in place of a real S3-compatible driver.
type LocalFS struct {
	root string
	mu   sync.RWMutex
}

// NewLocalFS creates a LocalFS rooted at root, creating it if necessary.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, newStoreError(ErrTransport, "failed to create store root", err)
	}
	return &LocalFS{root: root}, nil
}

func (l *LocalFS) hostPath(obj objectid.ID) string {
	return filepath.Join(l.root, obj.Namespace, filepath.FromSlash(obj.Path))
}

func (l *LocalFS) List(ctx context.Context, namespace, prefix string, recursive bool) ([]objectid.ID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	base := filepath.Join(l.root, namespace)
	var out []objectid.ID
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasSuffix(rel, "/"+sentinelName) || rel == sentinelName {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			return nil
		}
		if !recursive {
			rest := strings.TrimPrefix(rel, prefix)
			if strings.Contains(strings.TrimPrefix(rest, "/"), "/") {
				return nil
			}
		}
		out = append(out, objectid.New(namespace, rel))
		return nil
	})
	if err != nil {
		return nil, newStoreError(ErrTransport, "failed to list objects", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *LocalFS) Read(ctx context.Context, obj objectid.ID) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, err := os.ReadFile(l.hostPath(obj))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmtNotFound(obj)
		}
		return nil, newStoreError(ErrTransport, "failed to read object", err)
	}
	return data, nil
}

func (l *LocalFS) Write(ctx context.Context, obj objectid.ID, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.hostPath(obj)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return newStoreError(ErrTransport, "failed to create parent directory", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return newStoreError(ErrTransport, "failed to write object", err)
	}
	return nil
}

func (l *LocalFS) Download(ctx context.Context, obj objectid.ID, localPath string) error {
	data, err := l.Read(ctx, obj)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return newStoreError(ErrTransport, "failed to create local directory", err)
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return newStoreError(ErrTransport, "failed to write local file", err)
	}
	return nil
}

func (l *LocalFS) Upload(ctx context.Context, localPath string, obj objectid.ID) error {
	src, err := os.Open(localPath)
	if err != nil {
		return newStoreError(ErrTransport, "failed to open local file", err)
	}
	defer src.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	dstPath := l.hostPath(obj)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return newStoreError(ErrTransport, "failed to create parent directory", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return newStoreError(ErrTransport, "failed to create object", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return newStoreError(ErrTransport, "failed to upload object", err)
	}
	return nil
}

// Move copies src to dst then deletes src, matching the copy-then-delete
// contract of component 4.C and tolerating re-delivery of the same move.
func (l *LocalFS) Move(ctx context.Context, src, dst objectid.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	srcPath, dstPath := l.hostPath(src), l.hostPath(dst)
	data, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Stat(dstPath); statErr == nil {
				return nil
			}
			return fmtNotFound(src)
		}
		return newStoreError(ErrTransport, "failed to read source object", err)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return newStoreError(ErrTransport, "failed to create destination directory", err)
	}
	if err := os.WriteFile(dstPath, data, 0644); err != nil {
		return newStoreError(ErrTransport, "failed to write destination object", err)
	}
	if err := os.Remove(srcPath); err != nil && !os.IsNotExist(err) {
		return newStoreError(ErrTransport, "failed to remove source object", err)
	}
	return nil
}

func (l *LocalFS) Delete(ctx context.Context, obj objectid.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.hostPath(obj)); err != nil && !os.IsNotExist(err) {
		return newStoreError(ErrTransport, "failed to delete object", err)
	}
	return nil
}

func (l *LocalFS) Metadata(ctx context.Context, obj objectid.ID) (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, err := os.Stat(l.hostPath(obj))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmtNotFound(obj)
		}
		return nil, newStoreError(ErrTransport, "failed to stat object", err)
	}
	return map[string]string{
		"size":     fmt.Sprintf("%d", info.Size()),
		"mod_time": info.ModTime().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func (l *LocalFS) EnsureDirectory(ctx context.Context, dir objectid.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	dirPath := l.hostPath(dir)
	entries, err := os.ReadDir(dirPath)
	if err != nil && !os.IsNotExist(err) {
		return newStoreError(ErrTransport, "failed to read directory", err)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return newStoreError(ErrTransport, "failed to create directory", err)
	}
	sentinel := filepath.Join(dirPath, sentinelName)
	if _, err := os.Stat(sentinel); os.IsNotExist(err) {
		if err := os.WriteFile(sentinel, []byte{}, 0644); err != nil {
			return newStoreError(ErrTransport, "failed to write directory sentinel", err)
		}
	}
	return nil
}

func (l *LocalFS) ParseNotification(raw []byte) (ObjectEvent, error) {
	return parseNotification(raw)
}

var _ Store = (*LocalFS)(nil)
