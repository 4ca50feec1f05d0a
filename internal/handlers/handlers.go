// Package handlers is the compile-time registry of in-process handler
// functions, standing in for the dotted Python module path a config's
// `[python]` section names (see SPEC_FULL.md §9's dynamic-handler-resolution
// note).
package handlers

import (
	"context"
	"fmt"
	"sync"
)

// Options carries the conditional keyword arguments the execute phase
// passes to a handler, gated by the handler's own declared capability
// flags in the processor config.
type Options struct {
	PizzaTrackerPath string
	FileMetadata     map[string]string
}

// Func is the signature every registered handler must implement.
type Func func(ctx context.Context, localPath string, opts Options) error

var (
	mu       sync.RWMutex
	registry = make(map[string]Func)
)

// Register adds a named handler, keyed by the dotted module string a
// processor config's `python.module` field names. Intended to be called
// from package init functions at program start.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup returns the handler registered under name, per spec.md's
// replacement note: unknown names are rejected at config-registration
// time, not at execute time.
func Lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// ErrUnknownHandler reports a python.module name with no registered
// handler.
func ErrUnknownHandler(name string) error {
	return fmt.Errorf("handlers: no in-process handler registered for %q", name)
}
