package engine

import (
	"sort"
	"sync"

	"github.com/castiron-io/etlworker/internal/objectid"
	"github.com/castiron-io/etlworker/internal/procconfig"
)

// registryEntry pairs a registered config with the object it was read
// from.
type registryEntry struct {
	configObj objectid.ID
	cfg       *procconfig.Config
}

// Registry holds every enabled processor config, keyed by the config
// object's id. It is read and mutated only from the dispatch path (see
// SPEC_FULL.md §4.G invariants): the mutex here guards against the
// dashboard's read-only snapshot calls, not against concurrent writers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Put registers or replaces cfg under configObj's id.
func (r *Registry) Put(configObj objectid.ID, cfg *procconfig.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[configObj.String()] = &registryEntry{configObj: configObj, cfg: cfg}
}

// Remove drops any registration under configObj's id.
func (r *Registry) Remove(configObj objectid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, configObj.String())
}

// Get returns the config registered under configObj's id, if any.
func (r *Registry) Get(configObj objectid.ID) (*procconfig.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[configObj.String()]
	if !ok {
		return nil, false
	}
	return entry.cfg, true
}

// Size reports the number of registered configs.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot describes one registered config for dashboard consumption.
type Snapshot struct {
	Key     string `json:"key"`
	Glob    string `json:"glob"`
	Enabled bool   `json:"enabled"`
	Handler string `json:"handler"`
}

// Snapshots returns every registered config summarized for the dashboard,
// in the same lexicographic-by-key order iteration uses (Open Question 3).
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.entries))
	for key, entry := range r.entries {
		handler := "none"
		switch entry.cfg.Handler() {
		case procconfig.HandlerShell:
			handler = "shell"
		case procconfig.HandlerPython:
			handler = "python"
		}
		out = append(out, Snapshot{
			Key:     key,
			Glob:    entry.cfg.Glob,
			Enabled: entry.cfg.Enabled,
			Handler: handler,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// forEachOrdered invokes fn for every registered entry in lexicographic
// order by config object key, the deterministic tiebreak Open Question 3
// specifies for overlapping globs.
func (r *Registry) forEachOrdered(fn func(configObj objectid.ID, cfg *procconfig.Config) bool) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	entries := make(map[string]*registryEntry, len(r.entries))
	for k, e := range r.entries {
		keys = append(keys, k)
		entries[k] = e
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		entry := entries[k]
		if !fn(entry.configObj, entry.cfg) {
			return
		}
	}
}
