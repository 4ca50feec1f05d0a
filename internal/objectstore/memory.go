package objectstore

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/castiron-io/etlworker/internal/objectid"
)

// Memory is an in-memory Store, grounded on the same map+mutex shape as a
// typical LRU cache, minus eviction since test fixtures are small and
// bounded by the test itself.
type Memory struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	metadata  map[string]map[string]string
}

// NewMemory creates an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func key(obj objectid.ID) string {
	return obj.Namespace + "/" + obj.Path
}

func (m *Memory) List(ctx context.Context, namespace, prefix string, recursive bool) ([]objectid.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []objectid.ID
	nsPrefix := namespace + "/"
	for k := range m.objects {
		if !strings.HasPrefix(k, nsPrefix) {
			continue
		}
		p := strings.TrimPrefix(k, nsPrefix)
		if strings.HasSuffix(p, "/"+sentinelName) || p == sentinelName {
			continue
		}
		if prefix != "" && !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive {
			rest := strings.TrimPrefix(p, prefix)
			if strings.Contains(strings.TrimPrefix(rest, "/"), "/") {
				continue
			}
		}
		out = append(out, objectid.New(namespace, p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) Read(ctx context.Context, obj objectid.ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key(obj)]
	if !ok {
		return nil, fmtNotFound(obj)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Write(ctx context.Context, obj objectid.ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key(obj)] = cp
	return nil
}

func (m *Memory) Download(ctx context.Context, obj objectid.ID, localPath string) error {
	data, err := m.Read(ctx, obj)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return newStoreError(ErrTransport, "failed to write local file", err)
	}
	return nil
}

func (m *Memory) Upload(ctx context.Context, localPath string, obj objectid.ID) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return newStoreError(ErrTransport, "failed to read local file", err)
	}
	return m.Write(ctx, obj, data)
}

// Move copies src to dst then deletes src. Idempotent in effect: calling
// it twice with the same src/dst after the first call simply finds src
// already absent and dst already present.
func (m *Memory) Move(ctx context.Context, src, dst objectid.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	srcKey, dstKey := key(src), key(dst)
	data, ok := m.objects[srcKey]
	if !ok {
		if _, stillThere := m.objects[dstKey]; stillThere {
			return nil
		}
		return fmtNotFound(src)
	}
	m.objects[dstKey] = data
	if meta, ok := m.metadata[srcKey]; ok {
		m.metadata[dstKey] = meta
		delete(m.metadata, srcKey)
	}
	delete(m.objects, srcKey)
	return nil
}

func (m *Memory) Delete(ctx context.Context, obj objectid.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key(obj))
	delete(m.metadata, key(obj))
	return nil
}

func (m *Memory) Metadata(ctx context.Context, obj objectid.ID) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key(obj)]; !ok {
		return nil, fmtNotFound(obj)
	}
	meta := m.metadata[key(obj)]
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out, nil
}

// SetMetadata is a test helper for seeding metadata on an existing object.
func (m *Memory) SetMetadata(obj objectid.ID, meta map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key(obj)] = meta
}

func (m *Memory) EnsureDirectory(ctx context.Context, dir objectid.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := key(dir) + "/"
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			return nil
		}
	}
	m.objects[key(sentinelFor(dir))] = []byte{}
	return nil
}

func (m *Memory) ParseNotification(raw []byte) (ObjectEvent, error) {
	return parseNotification(raw)
}

// Exists reports whether an object is present (test helper).
func (m *Memory) Exists(obj objectid.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key(obj)]
	return ok
}

var _ Store = (*Memory)(nil)
