package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one task kind
type Handler interface {
	// Execute runs the task logic. The context carries the attempt deadline.
	Execute(ctx context.Context, args Args) (interface{}, error)
}

// HandlerFunc is a function adapter that implements the Handler interface
type HandlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Execute implements the Handler interface
func (f HandlerFunc) Execute(ctx context.Context, args Args) (interface{}, error) {
	return f(ctx, args)
}

func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return true
	}
	return false
}

// Registry maps task names to handlers so callers can submit by name
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any earlier binding
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if isNilHandler(h) {
		return fmt.Errorf("register %q: %w", name, ErrNilHandler)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler bound to name
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
